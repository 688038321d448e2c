package envexec

import (
	"context"
	"os"
	"time"

	"github.com/criyle/go-sandbox/runner"
)

var runnerStatus = map[runner.Status]Status{
	runner.StatusNormal:              StatusAccepted,
	runner.StatusSignalled:           StatusSignalled,
	runner.StatusNonzeroExitStatus:   StatusNonzeroExitStatus,
	runner.StatusMemoryLimitExceeded: StatusMemoryLimitExceeded,
	runner.StatusTimeLimitExceeded:   StatusTimeLimitExceeded,
	runner.StatusOutputLimitExceeded: StatusOutputLimitExceeded,
	runner.StatusDisallowedSyscall:   StatusDangerousSyscall,
}

// convertStatus maps everything the sandbox cannot attribute to the
// program to StatusInternalError
func convertStatus(s runner.Status) Status {
	if st, ok := runnerStatus[s]; ok {
		return st
	}
	return StatusInternalError
}

// timeLimitWaiter blocks until the process exits, ctx is done or the wall
// clock limit elapsed. Only the last case reports true.
func timeLimitWaiter(limit time.Duration) func(context.Context, Process) bool {
	return func(ctx context.Context, p Process) bool {
		var expired <-chan time.Time
		if limit > 0 {
			t := time.NewTimer(limit)
			defer t.Stop()
			expired = t.C
		}
		select {
		case <-expired:
			return true
		case <-ctx.Done():
		case <-p.Done():
		}
		return false
	}
}

func getFdArray(fd []*os.File) []uintptr {
	r := make([]uintptr, len(fd))
	for i, f := range fd {
		r[i] = f.Fd()
	}
	return r
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			f.Close()
		}
	}
}
