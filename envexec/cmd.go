package envexec

import (
	"context"
	"time"

	"github.com/criyle/go-sandbox/runner"
)

// Size represent data size in bytes
type Size = runner.Size

// RunnerResult represent process finish result
type RunnerResult = runner.Result

// Cmd defines instruction to run a program in an isolated environment
type Cmd struct {
	Environment Environment

	// file contents to copyin before exec
	CopyIn map[string][]byte

	// exec argument, environment
	Args []string
	Env  []string

	// Stdin is piped into the process, an empty value gives EOF
	Stdin []byte

	// resource limits
	TimeLimit        time.Duration // wall clock, also bounds CPU time
	MemoryLimit      Size
	StackLimit       Size
	ExtraMemoryLimit Size
	OutputLimit      Size // bytes captured from each of stdout and stderr
	FileSizeLimit    Size // largest file the process could write
	ProcLimit        uint64
	OpenFileLimit    uint64

	// Waiter is called after cmd starts and it should return
	// once time limit exceeded.
	// return true to as TLE and false as normal exits (context finished)
	Waiter func(context.Context, Process) bool
}

// Result defines the running result for single Cmd
type Result struct {
	Status Status

	ExitStatus int

	Error string // error

	Time    time.Duration
	RunTime time.Duration
	Memory  Size // byte

	KillReason KillReason

	Stdout          []byte
	Stderr          []byte
	StdoutTruncated bool
	StderrTruncated bool
}

// KillReason records why the sandbox terminated the process
type KillReason int

// Defines kill reasons
const (
	KillNone KillReason = iota
	KillTimeout
	KillOOM
	KillCancelled
)

var killReasonToString = []string{
	"none",
	"timeout",
	"oom",
	"cancelled",
}

func (k KillReason) String() string {
	i := int(k)
	if i < 0 || i >= len(killReasonToString) {
		return killReasonToString[0]
	}
	return killReasonToString[i]
}

// MarshalJSON encodes kill reason as string
func (k KillReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}
