package sandbox

import (
	"time"

	"github.com/kaiju-coding/codejudge/envexec"
)

// Cgroup defines interface to limit and monitor resources consumption of a process
type Cgroup interface {
	SetMemoryLimit(envexec.Size) error
	SetProcLimit(uint64) error

	CPUUsage() (time.Duration, error)
	CurrentMemory() (envexec.Size, error)
	MaxMemory() (envexec.Size, error)

	AddProc(int) error
	Destroy() error
}

// CgroupPool implements pool of Cgroup
type CgroupPool interface {
	Get() (Cgroup, error)
	Put(Cgroup)
}
