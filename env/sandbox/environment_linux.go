package sandbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/criyle/go-sandbox/pkg/forkexec"
	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/criyle/go-sandbox/pkg/rlimit"
	"github.com/kaiju-coding/codejudge/envexec"
	"golang.org/x/sys/unix"
)

var _ envexec.Environment = &environ{}

// environ owns one environment directory: the host side of the working
// directory and the mount point used as the new root
type environ struct {
	dir         string
	hostWorkDir string
	root        string
	mounts      []mount.SyscallParams
	cloneFlags  uintptr
	cred        *syscall.Credential
	cgPool      CgroupPool
	seccomp     []syscall.SockFilter
	hostName    string
	domainName  string
	workDir     string
}

// Destroy removes the environment directory with everything the process wrote
func (c *environ) Destroy() error {
	return os.RemoveAll(c.dir)
}

// Execve execute process inside the environment
func (c *environ) Execve(ctx context.Context, param envexec.ExecveParam) (envexec.Process, error) {
	var (
		cg  Cgroup
		err error
	)

	limit := param.Limit
	if c.cgPool != nil {
		cg, err = c.cgPool.Get()
		if err != nil {
			return nil, fmt.Errorf("execve: failed to get cgroup %v", err)
		}
		if err := cg.SetMemoryLimit(limit.Memory); err != nil {
			c.cgPool.Put(cg)
			return nil, fmt.Errorf("execve: failed to set memory limit %v", err)
		}
		if limit.Proc > 0 {
			cg.SetProcLimit(limit.Proc)
		}
	}

	rLimits := rlimit.RLimits{
		CPU:         uint64(limit.Time.Truncate(time.Second)/time.Second) + 1,
		FileSize:    limit.Output.Byte(),
		Stack:       limit.Stack.Byte(),
		OpenFile:    limit.OpenFile,
		DisableCore: true,
	}
	if c.cgPool == nil {
		rLimits.Data = limit.Memory.Byte()
	}

	args, err := c.resolveArgs(param.Args)
	if err != nil {
		if cg != nil {
			c.cgPool.Put(cg)
		}
		return nil, err
	}

	r := forkexec.Runner{
		Args:       args,
		Env:        param.Env,
		RLimits:    rLimits.PrepareRLimit(),
		Files:      param.Files,
		WorkDir:    c.workDir,
		CloneFlags: c.cloneFlags,
		Mounts:     c.mounts,
		PivotRoot:  c.root,
		HostName:   c.hostName,
		DomainName: c.domainName,
		Credential: c.cred,
		NoNewPrivs: true,
		DropCaps:   true,
		SyncFunc:   c.syncFunc(cg),
	}
	if len(c.seccomp) > 0 {
		r.Seccomp = &syscall.SockFprog{
			Len:    uint16(len(c.seccomp)),
			Filter: &c.seccomp[0],
		}
	}

	start := time.Now()
	pid, err := r.Start()
	if err != nil {
		if cg != nil {
			c.cgPool.Put(cg)
		}
		return nil, fmt.Errorf("execve: %w", err)
	}
	return newProcess(ctx, pid, start, cg, c.cgPool), nil
}

// syncFunc runs after clone and before the child calls execve
func (c *environ) syncFunc(cg Cgroup) func(int) error {
	return func(pid int) error {
		if c.cloneFlags&unix.CLONE_NEWUSER != 0 {
			if err := writeIDMaps(pid); err != nil {
				return err
			}
		}
		if cg != nil {
			return cg.AddProc(pid)
		}
		return nil
	}
}

// writeIDMaps maps the current user to root inside the user namespace
func writeIDMaps(pid int) error {
	proc := fmt.Sprintf("/proc/%d/", pid)
	if err := os.WriteFile(proc+"uid_map", fmt.Appendf(nil, "0 %d 1\n", os.Getuid()), 0); err != nil {
		return fmt.Errorf("write uid_map: %w", err)
	}
	if err := os.WriteFile(proc+"setgroups", []byte("deny"), 0); err != nil {
		return fmt.Errorf("write setgroups: %w", err)
	}
	if err := os.WriteFile(proc+"gid_map", fmt.Appendf(nil, "0 %d 1\n", os.Getgid()), 0); err != nil {
		return fmt.Errorf("write gid_map: %w", err)
	}
	return nil
}

// resolveArgs requires an absolute executable path, the mounted toolchain
// paths are identical inside and outside of the sandbox. Paths such as
// ./main refer to the work dir.
func (c *environ) resolveArgs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("execve: no args provided")
	}
	switch exe := args[0]; {
	case filepath.IsAbs(exe):
		return args, nil
	case strings.ContainsRune(exe, '/') && filepath.IsLocal(exe):
		resolved := append([]string{filepath.Join(c.workDir, exe)}, args[1:]...)
		return resolved, nil
	}
	return nil, fmt.Errorf("execve: executable %q is not an absolute path", args[0])
}

// WorkDir returns the host path of the work dir
func (c *environ) WorkDir() string {
	return c.hostWorkDir
}

// Open opens file relative to work directory
func (c *environ) Open(path string, flags int, perm os.FileMode) (*os.File, error) {
	if !filepath.IsLocal(path) {
		return nil, fmt.Errorf("openAtWorkDir: %q escapes work dir", path)
	}
	f, err := os.OpenFile(filepath.Join(c.hostWorkDir, path), flags|syscall.O_CLOEXEC|syscall.O_NOFOLLOW, perm)
	if err != nil {
		return nil, fmt.Errorf("openAtWorkDir: %v", err)
	}
	if c.cred != nil {
		f.Chown(int(c.cred.Uid), int(c.cred.Gid))
	}
	return f, nil
}
