package language

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/kaiju-coding/codejudge/envexec"
)

// maxMessageLen bounds the classified message, the complete output is
// still available as stderr
const maxMessageLen = 1 << 10

// rule maps a marker in stderr of a stage to a category. A rule with a
// non nil when applies only if when accepts the whole stderr.
type rule struct {
	stage    Stage
	marker   string
	category Category
	when     func(stderr []byte) bool
}

// adapter is the table driven Adapter shared by all built-in languages
type adapter struct {
	lang    Language
	source  string
	compile *Command
	run     Command

	// rules are checked in order, the first match wins
	rules []rule
	// hints locate the most relevant runtime error line
	hints []string
}

var _ Adapter = &adapter{}

func (a *adapter) Language() Language {
	return a.lang
}

func (a *adapter) SourceFile() string {
	return a.source
}

func (a *adapter) Compile() *Command {
	if a.compile == nil {
		return nil
	}
	c := *a.compile
	return &c
}

func (a *adapter) Run() Command {
	return a.run
}

func (a *adapter) ClassifyError(o Outcome) Classification {
	for _, r := range a.rules {
		if r.stage != o.Stage || (r.when != nil && !r.when(o.Stderr)) {
			continue
		}
		if line, ok := findLine(o.Stderr, r.marker); ok {
			return Classification{Category: r.category, Message: line}
		}
	}
	if o.Stage == StageCompile {
		msg := strings.TrimSpace(string(o.Stderr))
		if msg == "" {
			msg = exitMessage(o)
		}
		return Classification{Category: CategoryCompileError, Message: truncate(msg)}
	}
	for _, h := range a.hints {
		if line, ok := findLine(o.Stderr, h); ok {
			return Classification{Category: CategoryRuntimeError, Message: line}
		}
	}
	if line, ok := lastLine(o.Stderr); ok {
		return Classification{Category: CategoryRuntimeError, Message: line}
	}
	return Classification{Category: CategoryRuntimeError, Message: exitMessage(o)}
}

func exitMessage(o Outcome) string {
	switch o.Status {
	case envexec.StatusSignalled:
		return fmt.Sprintf("Process terminated by signal %d", o.ExitStatus)
	case envexec.StatusDangerousSyscall:
		return "Process attempted a forbidden system call"
	case envexec.StatusOutputLimitExceeded:
		return "Process exceeded the file size limit"
	}
	return fmt.Sprintf("Process exited with code %d", o.ExitStatus)
}

// withoutTraceback matches a python interpreter that failed before running
// any line of the program, errors raised by eval or compile at run time
// come with a traceback
func withoutTraceback(stderr []byte) bool {
	return !bytes.Contains(stderr, []byte("Traceback (most recent call last):"))
}

// noFrameAfter matches stderr whose first marker line is not followed by a
// stack frame inside source. Node prints frames of the program only when
// the error was thrown while it was running.
func noFrameAfter(marker, source string) func([]byte) bool {
	return func(stderr []byte) bool {
		seen := false
		for _, l := range bytes.Split(stderr, []byte("\n")) {
			if !seen {
				seen = bytes.Contains(l, []byte(marker))
				continue
			}
			l = bytes.TrimSpace(l)
			if bytes.HasPrefix(l, []byte("at ")) && bytes.Contains(l, []byte(source+":")) {
				return false
			}
		}
		return true
	}
}

func findLine(b []byte, marker string) (string, bool) {
	for _, l := range bytes.Split(b, []byte("\n")) {
		if bytes.Contains(l, []byte(marker)) {
			return truncate(strings.TrimSpace(string(l))), true
		}
	}
	return "", false
}

func lastLine(b []byte) (string, bool) {
	lines := bytes.Split(bytes.TrimSpace(b), []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(string(lines[i])); l != "" {
			return truncate(l), true
		}
	}
	return "", false
}

func truncate(s string) string {
	if len(s) > maxMessageLen {
		return s[:maxMessageLen]
	}
	return s
}
