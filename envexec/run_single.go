package envexec

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/criyle/go-sandbox/runner"
)

const defaultExtraMemoryLimit Size = 16 << 10 // 16k

// runSingle runs Cmd inside the given environment and cgroup
func runSingle(pc context.Context, c *Cmd, fds []*os.File) Result {
	m := c.Environment
	// copyin
	if err := copyIn(m, c.CopyIn); err != nil {
		closeFiles(fds...)
		return Result{
			Status: StatusFileError,
			Error:  err.Error(),
		}
	}

	// run cmd and wait for result
	rt, tle := runSingleWait(pc, m, c, fds)

	result := Result{
		Status:     convertStatus(rt.Status),
		ExitStatus: rt.ExitStatus,
		Error:      rt.Error,
		Time:       rt.Time,
		RunTime:    rt.RunningTime,
		Memory:     rt.Memory,
	}
	if !result.Status.Sandboxed() {
		return result
	}
	if tle || rt.Status == runner.StatusTimeLimitExceeded || (c.TimeLimit > 0 && result.Time > c.TimeLimit) {
		result.Status = StatusTimeLimitExceeded
		result.KillReason = KillTimeout
	}
	if c.MemoryLimit > 0 && result.Memory > c.MemoryLimit {
		result.Status = StatusMemoryLimitExceeded
		result.KillReason = KillOOM
	}
	if result.KillReason == KillNone && pc.Err() != nil && result.Status != StatusAccepted {
		result.KillReason = KillCancelled
	}
	return result
}

func copyIn(m Environment, files map[string][]byte) error {
	for name, content := range files {
		f, err := m.Open(name, syscall.O_WRONLY|syscall.O_CREAT|syscall.O_TRUNC, 0o644)
		if err != nil {
			return fmt.Errorf("copyin: %s: %w", name, err)
		}
		_, err = f.Write(content)
		f.Close()
		if err != nil {
			return fmt.Errorf("copyin: %s: %w", name, err)
		}
	}
	return nil
}

func runSingleWait(pc context.Context, m Environment, c *Cmd, fds []*os.File) (RunnerResult, bool) {
	// start the cmd (it will be killed once ctx is canceled)
	ctx, cancel := context.WithCancel(pc)
	defer cancel()

	process, err := runSingleExecve(ctx, m, c, fds)
	if err != nil {
		return runner.Result{
			Status: runner.StatusRunnerError,
			Error:  err.Error(),
		}, false
	}

	waiter := c.Waiter
	if waiter == nil {
		waiter = timeLimitWaiter(c.TimeLimit)
	}
	tle := waiter(ctx, process)
	cancel()
	return process.Result(), tle
}

func runSingleExecve(ctx context.Context, m Environment, c *Cmd, fds []*os.File) (Process, error) {
	defer closeFiles(fds...)

	extraMemoryLimit := c.ExtraMemoryLimit
	if extraMemoryLimit == 0 {
		extraMemoryLimit = defaultExtraMemoryLimit
	}

	memoryLimit := c.MemoryLimit + extraMemoryLimit

	var stackLimit Size
	if c.StackLimit > 0 {
		stackLimit = c.StackLimit
	}
	if stackLimit > memoryLimit {
		stackLimit = memoryLimit
	}

	// set running parameters
	execParam := ExecveParam{
		Args:  c.Args,
		Env:   c.Env,
		Files: getFdArray(fds),
		Limit: Limit{
			Time:     c.TimeLimit,
			Memory:   memoryLimit,
			Proc:     c.ProcLimit,
			Stack:    stackLimit,
			Output:   c.FileSizeLimit,
			OpenFile: c.OpenFileLimit,
		},
	}
	return m.Execve(ctx, execParam)
}
