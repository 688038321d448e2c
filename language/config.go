package language

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/google/shlex"
)

// CommandConfig overrides one command of a language. Command lines are
// split with shell quoting rules.
type CommandConfig struct {
	Command   string   `yaml:"command"`
	Env       []string `yaml:"env"`
	ProcLimit uint64   `yaml:"procLimit"`
}

// Override replaces parts of a built-in adapter
type Override struct {
	SourceFile string         `yaml:"sourceFile"`
	Compile    *CommandConfig `yaml:"compile"`
	Run        *CommandConfig `yaml:"run"`
}

// Overrides is the content of languages.yaml
type Overrides struct {
	Languages map[string]Override `yaml:"languages"`
}

// defaultEnv is the process environment of every sandboxed command
var defaultEnv = []string{
	"PATH=/usr/local/bin:/usr/bin:/bin",
	"HOME=/w",
}

// LoadOverrides reads languages.yaml. A missing file yields no overrides.
func LoadOverrides(p string) (*Overrides, error) {
	if p == "" {
		return nil, nil
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var o Overrides
	if err := yaml.Unmarshal(b, &o); err != nil {
		return nil, fmt.Errorf("language config %s: %w", p, err)
	}
	return &o, nil
}

// NewRegistryWithOverrides registers the built-in adapters after applying
// the overrides
func NewRegistryWithOverrides(o *Overrides) (*Registry, error) {
	overrides := make(map[Language]Override)
	if o != nil {
		for name, ov := range o.Languages {
			l, err := Parse(name)
			if err != nil {
				return nil, fmt.Errorf("language config: %w", err)
			}
			overrides[l] = ov
		}
	}

	r := NewRegistry()
	for _, a := range builtin() {
		if ov, ok := overrides[a.lang]; ok {
			if err := a.apply(ov); err != nil {
				return nil, fmt.Errorf("language %s: %w", a.lang, err)
			}
		}
		if err := a.resolve(exec.LookPath); err != nil {
			return nil, fmt.Errorf("language %s: %w", a.lang, err)
		}
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func builtin() []*adapter {
	return []*adapter{
		newPython(),
		newRust(),
		newJavaScript(),
		newJava(),
		newCPP(),
	}
}

func (a *adapter) apply(o Override) error {
	if o.SourceFile != "" {
		if !filepath.IsLocal(o.SourceFile) || strings.ContainsRune(o.SourceFile, '/') {
			return fmt.Errorf("invalid source file %q", o.SourceFile)
		}
		a.source = o.SourceFile
	}
	if o.Compile != nil {
		c, err := parseCommand(*o.Compile)
		if err != nil {
			return fmt.Errorf("compile: %w", err)
		}
		a.compile = c
	}
	if o.Run != nil {
		c, err := parseCommand(*o.Run)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		if c == nil {
			return fmt.Errorf("run: empty command")
		}
		a.run = *c
	}
	return nil
}

// parseCommand returns nil for an empty command line, which disables the
// compile stage
func parseCommand(c CommandConfig) (*Command, error) {
	args, err := shlex.Split(c.Command)
	if err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return nil, nil
	}
	return &Command{
		Args:      args,
		Env:       append(append([]string{}, defaultEnv...), c.Env...),
		ProcLimit: c.ProcLimit,
	}, nil
}

// resolve turns bare executable names into absolute host paths. Paths with
// a slash are kept, ./main refers to the sandbox work dir.
func (a *adapter) resolve(lookPath func(string) (string, error)) error {
	if a.compile != nil {
		if err := resolveCommand(a.compile, lookPath); err != nil {
			return err
		}
	}
	return resolveCommand(&a.run, lookPath)
}

func resolveCommand(c *Command, lookPath func(string) (string, error)) error {
	if len(c.Args) == 0 {
		return fmt.Errorf("empty command")
	}
	exe := c.Args[0]
	if strings.ContainsRune(exe, '/') {
		return nil
	}
	p, err := lookPath(exe)
	if err != nil {
		// not installed on this host, the sandbox reports it at execve
		p = filepath.Join("/usr/bin", exe)
	} else if p, err = filepath.Abs(p); err != nil {
		return err
	}
	args := append([]string{p}, c.Args[1:]...)
	c.Args = args
	return nil
}
