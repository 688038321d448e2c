package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"syscall"

	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/kaiju-coding/codejudge/env/pool"
)

const (
	workDirName = "w"
	rootDirName = "root"
)

// Config specifies configuration to build environment builder
type Config struct {
	// TmpRoot is the host directory holding per environment directories
	TmpRoot string
	// Mounts are read-only toolchain mounts relative to the new root
	Mounts        []mount.Mount
	CloneFlags    uintptr
	CredGenerator CredGenerator
	CgroupPool    CgroupPool
	Seccomp       []syscall.SockFilter
	HostName      string
	DomainName    string
	// WorkDir is the absolute path of the working directory inside the sandbox
	WorkDir string
}

type environmentBuilder struct {
	tmpRoot    string
	mounts     []mount.Mount
	cloneFlags uintptr
	credGen    CredGenerator
	cgPool     CgroupPool
	seccomp    []syscall.SockFilter
	hostName   string
	domainName string
	workDir    string
}

// NewEnvBuilder creates builder for linux sandbox environments
func NewEnvBuilder(c Config) pool.EnvBuilder {
	return &environmentBuilder{
		tmpRoot:    c.TmpRoot,
		mounts:     c.Mounts,
		cloneFlags: c.CloneFlags,
		credGen:    c.CredGenerator,
		cgPool:     c.CgroupPool,
		seccomp:    c.Seccomp,
		hostName:   c.HostName,
		domainName: c.DomainName,
		workDir:    c.WorkDir,
	}
}

// Build creates a fresh environment directory with an empty working directory
func (b *environmentBuilder) Build() (env pool.Environment, err error) {
	dir, err := os.MkdirTemp(b.tmpRoot, "env-")
	if err != nil {
		return nil, fmt.Errorf("sandbox: failed to create environment dir: %w", err)
	}
	defer func() {
		if err != nil {
			os.RemoveAll(dir)
		}
	}()

	hostWorkDir := filepath.Join(dir, workDirName)
	root := filepath.Join(dir, rootDirName)
	for _, d := range []string{hostWorkDir, root} {
		if err := os.Mkdir(d, 0o755); err != nil {
			return nil, fmt.Errorf("sandbox: failed to create %s: %w", d, err)
		}
	}

	var cred *syscall.Credential
	if b.credGen != nil {
		c := b.credGen.Get()
		cred = &c
		if err := os.Chown(hostWorkDir, int(c.Uid), int(c.Gid)); err != nil {
			return nil, fmt.Errorf("sandbox: failed to chown work dir: %w", err)
		}
	}

	// working directory is the only writable bind mount
	ms := slices.Clone(b.mounts)
	ms = append(ms, mount.Mount{
		Source: hostWorkDir,
		Target: b.workDir[1:],
		Flags:  syscall.MS_BIND | syscall.MS_NOSUID,
	})
	params := make([]mount.SyscallParams, 0, len(ms))
	for _, m := range ms {
		sp, err := m.ToSyscall()
		if err != nil {
			return nil, fmt.Errorf("sandbox: invalid mount %s: %w", m.Target, err)
		}
		params = append(params, *sp)
	}

	return &environ{
		dir:         dir,
		hostWorkDir: hostWorkDir,
		root:        root,
		mounts:      params,
		cloneFlags:  b.cloneFlags,
		cred:        cred,
		cgPool:      b.cgPool,
		seccomp:     b.seccomp,
		hostName:    b.hostName,
		domainName:  b.domainName,
		workDir:     b.workDir,
	}, nil
}
