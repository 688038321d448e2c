package sandbox

import (
	"context"
	"sync"
	"time"

	"github.com/criyle/go-sandbox/runner"
	"github.com/kaiju-coding/codejudge/envexec"
	"golang.org/x/sys/unix"
)

var _ envexec.Process = &process{}

// process defines the running process, it is the init of its pid namespace
// so that killing it terminates every process it created
type process struct {
	rt   runner.Result
	done chan struct{}
	cg   Cgroup

	pid    int
	mu     sync.Mutex
	exited bool
}

func newProcess(ctx context.Context, pid int, start time.Time, cg Cgroup, cgPool CgroupPool) *process {
	p := &process{
		done: make(chan struct{}),
		cg:   cg,
		pid:  pid,
	}
	go p.killOnDone(ctx)
	go func() {
		defer close(p.done)
		if cgPool != nil {
			defer cgPool.Put(cg)
		}
		p.rt = p.wait(start)
		p.collectUsage()
	}()
	return p
}

func (p *process) killOnDone(ctx context.Context) {
	select {
	case <-ctx.Done():
		p.kill()
	case <-p.done:
	}
}

func (p *process) kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.exited {
		unix.Kill(p.pid, unix.SIGKILL)
	}
}

func (p *process) wait(start time.Time) runner.Result {
	// wait for exit without reaping so the pid can not be reused before
	// the kill path learns about the exit
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, p.pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if err != unix.EINTR {
			break
		}
	}
	p.mu.Lock()
	p.exited = true
	p.mu.Unlock()

	var (
		ws unix.WaitStatus
		ru unix.Rusage
	)
	for {
		_, err := unix.Wait4(p.pid, &ws, 0, &ru)
		if err != unix.EINTR {
			if err != nil {
				return runner.Result{
					Status: runner.StatusRunnerError,
					Error:  err.Error(),
				}
			}
			break
		}
	}

	rt := runner.Result{
		Time:        time.Duration(ru.Utime.Nano() + ru.Stime.Nano()),
		Memory:      runner.Size(ru.Maxrss << 10), // kib to byte
		RunningTime: time.Since(start),
	}
	switch {
	case ws.Exited():
		rt.ExitStatus = ws.ExitStatus()
		if rt.ExitStatus == 0 {
			rt.Status = runner.StatusNormal
		} else {
			rt.Status = runner.StatusNonzeroExitStatus
		}
	case ws.Signaled():
		sig := ws.Signal()
		rt.ExitStatus = int(sig)
		switch sig {
		case unix.SIGXCPU:
			rt.Status = runner.StatusTimeLimitExceeded
		case unix.SIGXFSZ:
			rt.Status = runner.StatusOutputLimitExceeded
		case unix.SIGSYS:
			rt.Status = runner.StatusDisallowedSyscall
		default:
			rt.Status = runner.StatusSignalled
		}
		rt.Error = sig.String()
	default:
		rt.Status = runner.StatusRunnerError
		rt.Error = "unexpected wait status"
	}
	return rt
}

func (p *process) collectUsage() {
	if p.cg == nil {
		return
	}
	if t, err := p.cg.CPUUsage(); err == nil {
		p.rt.Time = t
	}
	if m, err := p.cg.MaxMemory(); err == nil && m > 0 {
		p.rt.Memory = m
	}
}

func (p *process) Done() <-chan struct{} {
	return p.done
}

func (p *process) Result() envexec.RunnerResult {
	<-p.done
	return p.rt
}

func (p *process) Usage() envexec.Usage {
	var (
		t time.Duration
		m envexec.Size
	)
	if p.cg != nil {
		t, _ = p.cg.CPUUsage()
		m, _ = p.cg.CurrentMemory()
	}
	return envexec.Usage{
		Time:   t,
		Memory: m,
	}
}
