package sandbox

import (
	"time"

	"github.com/criyle/go-sandbox/pkg/cgroup"
	"github.com/kaiju-coding/codejudge/envexec"
)

var (
	_ Cgroup = &wCgroup{}
)

type wCgroup struct {
	cg cgroup.Cgroup
}

func (c *wCgroup) SetMemoryLimit(s envexec.Size) error {
	return c.cg.SetMemoryLimit(uint64(s))
}

func (c *wCgroup) SetProcLimit(l uint64) error {
	return c.cg.SetProcLimit(l)
}

func (c *wCgroup) CPUUsage() (time.Duration, error) {
	t, err := c.cg.CPUUsage()
	return time.Duration(t), err
}

func (c *wCgroup) CurrentMemory() (envexec.Size, error) {
	s, err := c.cg.MemoryUsage()
	if err != nil {
		return 0, err
	}
	return envexec.Size(s), nil
}

func (c *wCgroup) MaxMemory() (envexec.Size, error) {
	s, err := c.cg.MemoryMaxUsage()
	if err != nil {
		return 0, err
	}
	return envexec.Size(s), nil
}

func (c *wCgroup) AddProc(pid int) error {
	return c.cg.AddProc(pid)
}

func (c *wCgroup) Destroy() error {
	return c.cg.Destroy()
}
