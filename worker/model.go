package worker

import (
	"fmt"
	"time"

	"github.com/kaiju-coding/codejudge/envexec"
)

// Size represent data size in bytes
type Size = envexec.Size

// Cmd defines command and limits to start a program using in envexec
type Cmd struct {
	Args  []string
	Env   []string
	Stdin []byte

	ClockLimit  time.Duration
	MemoryLimit Size
	StackLimit  Size
	ProcLimit   uint64
	// OutputLimit overrides the worker output limit when not zero
	OutputLimit Size
}

// Request defines single worker request.
// Commands run one after another inside one environment, files in CopyIn
// are written to the working directory before the first command starts.
// Execution stops at the first command that does not exit normally.
type Request struct {
	RequestID string
	CopyIn    map[string][]byte
	Cmd       []Cmd
}

// Result defines single command response
type Result struct {
	Status     envexec.Status
	ExitStatus int
	Error      string
	Time       time.Duration
	RunTime    time.Duration
	Memory     Size
	KillReason envexec.KillReason

	Stdout          []byte
	Stderr          []byte
	StdoutTruncated bool
	StderrTruncated bool
}

// Response defines worker response for single request
type Response struct {
	RequestID string
	Results   []Result
	Error     error
}

func (r Result) String() string {
	type Result struct {
		Status     envexec.Status
		ExitStatus int
		Error      string
		Time       time.Duration
		RunTime    time.Duration
		Memory     envexec.Size
		KillReason envexec.KillReason
		Stdout     string
		Stderr     string
	}
	d := Result{
		Status:     r.Status,
		ExitStatus: r.ExitStatus,
		Error:      r.Error,
		Time:       r.Time,
		RunTime:    r.RunTime,
		Memory:     r.Memory,
		KillReason: r.KillReason,
		Stdout:     fmt.Sprintf("(len:%d)", len(r.Stdout)),
		Stderr:     fmt.Sprintf("(len:%d)", len(r.Stderr)),
	}
	return fmt.Sprintf("%+v", d)
}
