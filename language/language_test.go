package language

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kaiju-coding/codejudge/envexec"
)

func TestParse(t *testing.T) {
	for _, s := range []string{"python", "Rust", " javascript ", "JAVA", "cpp"} {
		if _, err := Parse(s); err != nil {
			t.Errorf("Parse(%q): %v", s, err)
		}
	}
	for _, s := range []string{"", "go", "c++", "py"} {
		if _, err := Parse(s); err == nil {
			t.Errorf("Parse(%q) succeeded", s)
		}
	}
}

func TestDefaultRegistry(t *testing.T) {
	r, err := NewDefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	ls := r.Languages()
	if len(ls) != 5 {
		t.Fatalf("languages = %v", ls)
	}
	for _, l := range ls {
		a, ok := r.Get(l)
		if !ok {
			t.Fatalf("missing %s", l)
		}
		if a.SourceFile() == "" {
			t.Fatalf("%s has no source file", l)
		}
		cmds := []Command{a.Run()}
		if c := a.Compile(); c != nil {
			cmds = append(cmds, *c)
		}
		for _, c := range cmds {
			if !filepath.IsAbs(c.Args[0]) && c.Args[0][:2] != "./" {
				t.Fatalf("%s: executable %q is not resolved", l, c.Args[0])
			}
		}
	}
	py, _ := r.Get(Python)
	if py.Compile() != nil {
		t.Fatal("python should not compile")
	}
	cpp, _ := r.Get(CPP)
	if cpp.Compile() == nil {
		t.Fatal("cpp should compile")
	}
}

type nopAdapter struct{ l Language }

func (n nopAdapter) Language() Language                   { return n.l }
func (n nopAdapter) SourceFile() string                   { return "main" }
func (n nopAdapter) Compile() *Command                    { return nil }
func (n nopAdapter) Run() Command                         { return Command{Args: []string{"/bin/true"}} }
func (n nopAdapter) ClassifyError(Outcome) Classification { return Classification{} }

func TestRegisterRejectsDuplicateAndNil(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(nil); err == nil {
		t.Fatal("nil adapter registered")
	}
	if err := r.Register(nopAdapter{Python}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(nopAdapter{Python}); err == nil {
		t.Fatal("duplicate adapter registered")
	}
	if _, ok := r.Get(Rust); ok {
		t.Fatal("unexpected adapter")
	}
}

func TestOverrides(t *testing.T) {
	p := filepath.Join(t.TempDir(), "languages.yaml")
	conf := `
languages:
  cpp:
    compile:
      command: /usr/bin/g++ -O0 "-std=c++20" -o main main.cpp
      procLimit: 8
  python:
    sourceFile: solution.py
    run:
      command: /usr/bin/python3 solution.py
      env: [PYTHONHASHSEED=0]
`
	if err := os.WriteFile(p, []byte(conf), 0o644); err != nil {
		t.Fatal(err)
	}
	o, err := LoadOverrides(p)
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewRegistryWithOverrides(o)
	if err != nil {
		t.Fatal(err)
	}
	cpp, _ := r.Get(CPP)
	c := cpp.Compile()
	if c.Args[2] != "-std=c++20" || c.ProcLimit != 8 {
		t.Fatalf("compile = %+v", c)
	}
	py, _ := r.Get(Python)
	if py.SourceFile() != "solution.py" || py.Run().Args[1] != "solution.py" {
		t.Fatalf("python = %s %v", py.SourceFile(), py.Run().Args)
	}
	if env := py.Run().Env; env[len(env)-1] != "PYTHONHASHSEED=0" {
		t.Fatalf("env = %v", env)
	}
}

func TestOverridesInvalid(t *testing.T) {
	for _, o := range []*Overrides{
		{Languages: map[string]Override{"cobol": {}}},
		{Languages: map[string]Override{"python": {SourceFile: "../main.py"}}},
		{Languages: map[string]Override{"python": {Run: &CommandConfig{}}}},
		{Languages: map[string]Override{"python": {Run: &CommandConfig{Command: `python3 "main.py`}}}},
	} {
		if _, err := NewRegistryWithOverrides(o); err == nil {
			t.Errorf("overrides %+v accepted", o.Languages)
		}
	}
}

func TestLoadOverridesMissing(t *testing.T) {
	o, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || o != nil {
		t.Fatalf("o = %v, err = %v", o, err)
	}
}

func TestClassifyError(t *testing.T) {
	r, err := NewDefaultRegistry()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		lang    Language
		stage   Stage
		stderr  string
		want    Category
		message string
	}{
		{Python, StageRun, "  File \"main.py\", line 1\n    print(\n         ^\nSyntaxError: '(' was never closed\n", CategoryCompileError, "SyntaxError: '(' was never closed"},
		{Python, StageRun, "  File \"/w/main.py\", line 2\n    x = 1\nIndentationError: unexpected indent\n", CategoryCompileError, "IndentationError: unexpected indent"},
		// eval of bad input fails while the program runs
		{Python, StageRun, "Traceback (most recent call last):\n  File \"/w/main.py\", line 1, in <module>\n    eval(\"1 +\")\n  File \"<string>\", line 1\n    1 +\n       ^\nSyntaxError: invalid syntax\n", CategoryRuntimeError, "SyntaxError: invalid syntax"},
		{Python, StageRun, "Traceback (most recent call last):\n  File \"main.py\", line 1\nMemoryError\n", CategoryMemoryLimitExceeded, "MemoryError"},
		{Python, StageRun, "Traceback (most recent call last):\n  File \"main.py\", line 1, in <module>\nZeroDivisionError: division by zero\n", CategoryRuntimeError, "ZeroDivisionError: division by zero"},
		{JavaScript, StageRun, "/w/main.js:1\nSyntaxError: Unexpected token ')'\n", CategoryCompileError, "SyntaxError: Unexpected token ')'"},
		{JavaScript, StageRun, "/w/main.js:1\nconsole.log(\n            ^\n\nSyntaxError: missing ) after argument list\n    at internalCompileFunction (node:internal/vm:76:18)\n    at wrapSafe (node:internal/modules/cjs/loader:1283:20)\n    at Module._compile (node:internal/modules/cjs/loader:1328:27)\n    at node:internal/main/run_main_module:28:49\n", CategoryCompileError, "SyntaxError: missing ) after argument list"},
		// JSON.parse of bad input throws from the program
		{JavaScript, StageRun, "undefined:1\nabc\n^\n\nSyntaxError: Unexpected token 'a', \"abc\" is not valid JSON\n    at JSON.parse (<anonymous>)\n    at Object.<anonymous> (/w/main.js:1:6)\n    at Module._compile (node:internal/modules/cjs/loader:1328:27)\n", CategoryRuntimeError, "SyntaxError: Unexpected token 'a', \"abc\" is not valid JSON"},
		{JavaScript, StageRun, "FATAL ERROR: Reached heap limit Allocation failed - JavaScript heap out of memory\n", CategoryMemoryLimitExceeded, "FATAL ERROR: Reached heap limit Allocation failed - JavaScript heap out of memory"},
		{Java, StageRun, "Exception in thread \"main\" java.lang.OutOfMemoryError: Java heap space\n", CategoryMemoryLimitExceeded, "Exception in thread \"main\" java.lang.OutOfMemoryError: Java heap space"},
		{Java, StageCompile, "Main.java:1: error: ';' expected\n1 error\n", CategoryCompileError, "Main.java:1: error: ';' expected\n1 error"},
		{Rust, StageRun, "memory allocation of 8589934592 bytes failed\n", CategoryMemoryLimitExceeded, "memory allocation of 8589934592 bytes failed"},
		{Rust, StageRun, "thread 'main' panicked at main.rs:2:5:\nexplicit panic\nnote: run with `RUST_BACKTRACE=1`\n", CategoryRuntimeError, "thread 'main' panicked at main.rs:2:5:"},
		{CPP, StageRun, "terminate called after throwing an instance of 'std::bad_alloc'\n  what():  std::bad_alloc\n", CategoryMemoryLimitExceeded, "terminate called after throwing an instance of 'std::bad_alloc'"},
		{CPP, StageRun, "", CategoryRuntimeError, "Process exited with code 3"},
	}
	for _, tc := range tests {
		a, _ := r.Get(tc.lang)
		o := Outcome{
			Stage:      tc.stage,
			Status:     envexec.StatusNonzeroExitStatus,
			ExitStatus: 3,
			Stderr:     []byte(tc.stderr),
		}
		got := a.ClassifyError(o)
		if got.Category != tc.want || got.Message != tc.message {
			t.Errorf("%s %s: got %v %q, want %v %q", tc.lang, tc.stage, got.Category, got.Message, tc.want, tc.message)
		}
		// classification depends only on the outcome
		if again := a.ClassifyError(o); again != got {
			t.Errorf("%s: classification is not deterministic", tc.lang)
		}
	}
}

func TestClassifySignal(t *testing.T) {
	a := newCPP()
	got := a.ClassifyError(Outcome{Stage: StageRun, Status: envexec.StatusSignalled, ExitStatus: 11})
	if got.Category != CategoryRuntimeError || got.Message != "Process terminated by signal 11" {
		t.Fatalf("got %+v", got)
	}
}
