package envexec

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/criyle/go-sandbox/runner"
	"golang.org/x/sys/unix"
)

// fakeEnv runs behavior synchronously inside Execve with the raw child fds
type fakeEnv struct {
	dir      string
	behavior func(ctx context.Context, param ExecveParam) *fakeProcess
	execErr  error
	param    ExecveParam
}

type fakeProcess struct {
	done chan struct{}
	rt   runner.Result
}

func (p *fakeProcess) Done() <-chan struct{} { return p.done }
func (p *fakeProcess) Result() RunnerResult  { <-p.done; return p.rt }
func (p *fakeProcess) Usage() Usage          { return Usage{} }

func exited(rt runner.Result) *fakeProcess {
	p := &fakeProcess{done: make(chan struct{}), rt: rt}
	close(p.done)
	return p
}

// hanging returns a process that only stops when ctx is done
func hanging(ctx context.Context) *fakeProcess {
	p := &fakeProcess{done: make(chan struct{})}
	go func() {
		<-ctx.Done()
		p.rt = runner.Result{Status: runner.StatusSignalled, ExitStatus: 9}
		close(p.done)
	}()
	return p
}

func (e *fakeEnv) Execve(ctx context.Context, param ExecveParam) (Process, error) {
	e.param = param
	if e.execErr != nil {
		return nil, e.execErr
	}
	return e.behavior(ctx, param), nil
}

func (e *fakeEnv) WorkDir() string { return e.dir }

func (e *fakeEnv) Open(path string, flags int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(filepath.Join(e.dir, path), flags, perm)
}

func readAllFd(t *testing.T, fd uintptr) []byte {
	t.Helper()
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(int(fd), buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if n <= 0 || err != nil {
			return out
		}
	}
}

func writeFd(fd uintptr, b []byte) {
	unix.Write(int(fd), b)
}

func TestSingleRunEchoesStdin(t *testing.T) {
	env := &fakeEnv{dir: t.TempDir()}
	env.behavior = func(ctx context.Context, param ExecveParam) *fakeProcess {
		in := readAllFd(t, param.Files[0])
		writeFd(param.Files[1], in)
		writeFd(param.Files[2], []byte("warn"))
		return exited(runner.Result{Status: runner.StatusNormal, Memory: 1 << 20})
	}
	s := &Single{Cmd: &Cmd{
		Environment: env,
		CopyIn:      map[string][]byte{"main.py": []byte("print(input())")},
		Args:        []string{"/usr/bin/python3", "main.py"},
		Stdin:       []byte("hello\n"),
		TimeLimit:   time.Second,
		MemoryLimit: 256 << 20,
	}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != StatusAccepted {
		t.Fatalf("status = %v, want %v", rt.Status, StatusAccepted)
	}
	if string(rt.Stdout) != "hello\n" || string(rt.Stderr) != "warn" {
		t.Fatalf("stdout = %q, stderr = %q", rt.Stdout, rt.Stderr)
	}
	if rt.KillReason != KillNone {
		t.Fatalf("kill reason = %v", rt.KillReason)
	}
	b, err := os.ReadFile(filepath.Join(env.dir, "main.py"))
	if err != nil || string(b) != "print(input())" {
		t.Fatalf("copy in = %q, %v", b, err)
	}
	if env.param.Limit.Memory != 256<<20+defaultExtraMemoryLimit {
		t.Fatalf("memory limit = %v", env.param.Limit.Memory)
	}
}

func TestSingleRunTruncatesOutput(t *testing.T) {
	env := &fakeEnv{dir: t.TempDir()}
	env.behavior = func(ctx context.Context, param ExecveParam) *fakeProcess {
		writeFd(param.Files[1], bytes.Repeat([]byte("a"), 100))
		return exited(runner.Result{Status: runner.StatusNormal})
	}
	s := &Single{Cmd: &Cmd{Environment: env, OutputLimit: 10, TimeLimit: time.Second}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(rt.Stdout) != 10 || !rt.StdoutTruncated {
		t.Fatalf("stdout len = %d, truncated = %v", len(rt.Stdout), rt.StdoutTruncated)
	}
	if rt.StderrTruncated {
		t.Fatal("stderr should not be truncated")
	}
}

func TestSingleRunTimeLimit(t *testing.T) {
	env := &fakeEnv{dir: t.TempDir()}
	env.behavior = func(ctx context.Context, param ExecveParam) *fakeProcess {
		return hanging(ctx)
	}
	s := &Single{Cmd: &Cmd{Environment: env, TimeLimit: 50 * time.Millisecond}}
	start := time.Now()
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != StatusTimeLimitExceeded || rt.KillReason != KillTimeout {
		t.Fatalf("status = %v, kill reason = %v", rt.Status, rt.KillReason)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Fatalf("run took %v", d)
	}
}

func TestSingleRunCancelled(t *testing.T) {
	env := &fakeEnv{dir: t.TempDir()}
	env.behavior = func(ctx context.Context, param ExecveParam) *fakeProcess {
		return hanging(ctx)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	s := &Single{Cmd: &Cmd{Environment: env, TimeLimit: 10 * time.Second}}
	rt, err := s.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if rt.KillReason != KillCancelled || rt.Status != StatusSignalled {
		t.Fatalf("status = %v, kill reason = %v", rt.Status, rt.KillReason)
	}
}

func TestSingleRunStatus(t *testing.T) {
	tests := []struct {
		name   string
		rt     runner.Result
		status Status
		kill   KillReason
	}{
		{"nonzero", runner.Result{Status: runner.StatusNonzeroExitStatus, ExitStatus: 1}, StatusNonzeroExitStatus, KillNone},
		{"memory", runner.Result{Status: runner.StatusSignalled, Memory: 300 << 20}, StatusMemoryLimitExceeded, KillOOM},
		{"cpu", runner.Result{Status: runner.StatusNormal, Time: 2 * time.Second}, StatusTimeLimitExceeded, KillTimeout},
		{"syscall", runner.Result{Status: runner.StatusDisallowedSyscall}, StatusDangerousSyscall, KillNone},
		{"runner", runner.Result{Status: runner.StatusRunnerError, Error: "clone failed"}, StatusInternalError, KillNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &fakeEnv{dir: t.TempDir()}
			env.behavior = func(ctx context.Context, param ExecveParam) *fakeProcess {
				return exited(tt.rt)
			}
			s := &Single{Cmd: &Cmd{Environment: env, TimeLimit: time.Second, MemoryLimit: 256 << 20}}
			rt, err := s.Run(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if rt.Status != tt.status || rt.KillReason != tt.kill {
				t.Fatalf("got %v/%v, want %v/%v", rt.Status, rt.KillReason, tt.status, tt.kill)
			}
		})
	}
}

func TestSingleRunExecveError(t *testing.T) {
	env := &fakeEnv{dir: t.TempDir(), execErr: errors.New("no such file")}
	s := &Single{Cmd: &Cmd{Environment: env, TimeLimit: time.Second}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != StatusInternalError || rt.Status.Sandboxed() {
		t.Fatalf("status = %v", rt.Status)
	}
}

func TestSingleRunCopyInError(t *testing.T) {
	env := &fakeEnv{dir: filepath.Join(t.TempDir(), "missing")}
	s := &Single{Cmd: &Cmd{
		Environment: env,
		CopyIn:      map[string][]byte{"main.cpp": []byte("int main(){}")},
	}}
	rt, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if rt.Status != StatusFileError {
		t.Fatalf("status = %v", rt.Status)
	}
}
