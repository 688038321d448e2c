package env

import (
	"fmt"
	"os"
	"path"

	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/goccy/go-yaml"
)

// Mount is one entry of the mount config, Type is bind or tmpfs
type Mount struct {
	Type     string `yaml:"type"`
	Source   string `yaml:"source"`
	Target   string `yaml:"target"`
	Readonly bool   `yaml:"readonly"`
	Data     string `yaml:"data"`
}

// Mounts replaces the default toolchain mounts. The execution directory is
// always bind mounted at WorkDir on top of them.
type Mounts struct {
	Mount      []Mount `yaml:"mount"`
	WorkDir    string  `yaml:"workDir"`
	HostName   string  `yaml:"hostName"`
	DomainName string  `yaml:"domainName"`
	Proc       bool    `yaml:"proc"`
}

// toolchainBinds are mounted read only. Missing sources are filtered out
// when the builder starts.
var toolchainBinds = []string{
	"/bin",
	"/lib",
	"/lib64",
	"/usr",
	// compilers installed through update-alternatives
	"/etc/alternatives",
	// openjdk keeps its security and logging config outside of /usr
	"/etc/java-17-openjdk",
	"/etc/java-21-openjdk",
	// rustup toolchains when installed system wide
	"/usr/local/rustup",
	"/usr/local/cargo",
}

// deviceBinds are writable. node reads /dev/urandom at start up.
var deviceBinds = []string{
	"/dev/null",
	"/dev/urandom",
	"/dev/zero",
}

func readMountConfig(p string) (*Mounts, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	m := new(Mounts)
	if err := yaml.Unmarshal(b, m); err != nil {
		return nil, fmt.Errorf("mount config %s: %w", p, err)
	}
	return m, nil
}

// sandboxTarget turns an absolute target into a path relative to the new root
func sandboxTarget(p string) string {
	return path.Clean(path.Join(".", p))
}

func parseMountConfig(m *Mounts) (*mount.Builder, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	b := mount.NewBuilder()
	for _, mt := range m.Mount {
		target := sandboxTarget(mt.Target)
		switch mt.Type {
		case "bind":
			src := mt.Source
			if !path.IsAbs(src) {
				src = path.Join(wd, src)
			}
			b.WithBind(src, target, mt.Readonly)
		case "tmpfs":
			b.WithTmpfs(target, mt.Data)
		default:
			return nil, fmt.Errorf("mount %s: unknown type %q", mt.Target, mt.Type)
		}
	}
	if m.Proc {
		b.WithProc()
	}
	return b, nil
}

// getDefaultMount exposes the toolchains, /proc for the jvm and node, and
// a private /tmp
func getDefaultMount(tmpFsConf string) *mount.Builder {
	b := mount.NewBuilder()
	for _, p := range toolchainBinds {
		b.WithBind(p, sandboxTarget(p), true)
	}
	for _, p := range deviceBinds {
		b.WithBind(p, sandboxTarget(p), false)
	}
	return b.WithProc().WithTmpfs("tmp", tmpFsConf)
}
