package execution

import (
	"time"

	"github.com/kaiju-coding/codejudge/envexec"
)

// MinTimeout is the lower bound of a requested timeout
const MinTimeout = time.Second

// Config defines limits of a single execution
type Config struct {
	DefaultTimeout     time.Duration
	MaxTimeout         time.Duration
	CompileTimeout     time.Duration
	MemoryLimit        envexec.Size
	CompileMemoryLimit envexec.Size
	StackLimit         envexec.Size
	ProcLimit          uint64
	OutputLimit        envexec.Size
}

// DefaultConfig returns the limits used when a field is zero
func DefaultConfig() Config {
	return Config{
		DefaultTimeout:     5 * time.Second,
		MaxTimeout:         30 * time.Second,
		CompileTimeout:     10 * time.Second,
		MemoryLimit:        256 << 20,
		CompileMemoryLimit: 1 << 30,
		StackLimit:         256 << 20,
		ProcLimit:          16,
		OutputLimit:        64 << 10,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = d.DefaultTimeout
	}
	if c.MaxTimeout <= 0 {
		c.MaxTimeout = d.MaxTimeout
	}
	if c.MaxTimeout < MinTimeout {
		c.MaxTimeout = MinTimeout
	}
	if c.CompileTimeout <= 0 {
		c.CompileTimeout = d.CompileTimeout
	}
	if c.MemoryLimit == 0 {
		c.MemoryLimit = d.MemoryLimit
	}
	if c.CompileMemoryLimit == 0 {
		c.CompileMemoryLimit = d.CompileMemoryLimit
	}
	if c.StackLimit == 0 {
		c.StackLimit = d.StackLimit
	}
	if c.ProcLimit == 0 {
		c.ProcLimit = d.ProcLimit
	}
	if c.OutputLimit == 0 {
		c.OutputLimit = d.OutputLimit
	}
	return c
}

// clampTimeout applies the default and bounds it to [MinTimeout, MaxTimeout]
func (c Config) clampTimeout(t time.Duration) time.Duration {
	if t <= 0 {
		t = c.DefaultTimeout
	}
	return min(max(t, MinTimeout), c.MaxTimeout)
}
