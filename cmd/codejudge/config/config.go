package config

import (
	"os"
	"runtime"
	"time"

	"github.com/kaiju-coding/codejudge/envexec"
	"github.com/koding/multiconfig"
)

// Config defines codejudge server configuration
type Config struct {
	// sandbox
	WorkRoot           string `flagUsage:"directory holding the per execution work directories (system temp by default)"`
	TmpFsParam         string `flagUsage:"tmpfs mount data (only for default mount with no mount.yaml)" default:"size=64m,nr_inodes=4k"`
	MountConf          string `flagUsage:"specifies mount configuration file" default:"mount.yaml"`
	SeccompConf        string `flagUsage:"specifies seccomp filter" default:"seccomp.yaml"`
	LanguageConf       string `flagUsage:"specifies language command overrides" default:"languages.yaml"`
	CgroupPrefix       string `flagUsage:"control cgroup prefix" default:"codejudge"`
	ContainerCredStart int    `flagUsage:"control the start uid&gid for sandboxed processes when running as root" default:"10000"`
	NoFallback         bool   `flagUsage:"fail instead of falling back to rlimit when cgroup is not available"`
	Parallelism        int    `flagUsage:"max concurrent executions (default equal to number of cpu)"`

	// execution limits
	DefaultTimeout     time.Duration `flagUsage:"default wall clock timeout of a run" default:"5s"`
	MaxTimeout         time.Duration `flagUsage:"max wall clock timeout of a run" default:"30s"`
	CompileTimeout     time.Duration `flagUsage:"wall clock timeout of a compilation" default:"10s"`
	MemoryLimit        *envexec.Size `flagUsage:"memory limit of a run" default:"256m"`
	CompileMemoryLimit *envexec.Size `flagUsage:"memory limit of a compilation" default:"1g"`
	StackLimit         *envexec.Size `flagUsage:"stack limit of each command" default:"256m"`
	ExtraMemoryLimit   *envexec.Size `flagUsage:"specifies extra memory buffer for check memory limit" default:"16k"`
	OutputLimit        *envexec.Size `flagUsage:"bytes captured from each of stdout and stderr" default:"64k"`
	FileSizeLimit      *envexec.Size `flagUsage:"largest file a sandboxed process could write" default:"16m"`
	ProcLimit          int           `flagUsage:"default process limit of each command" default:"16"`
	OpenFileLimit      int           `flagUsage:"specifies max open file count" default:"256"`

	// test cases
	TestCaseDir string `flagUsage:"directory with <assignment id>.yaml test case files"`
	RedisAddr   string `flagUsage:"redis address of the test case store"`
	RedisDB     int    `flagUsage:"redis database of the test case store"`
	RedisPrefix string `flagUsage:"key prefix of assignments in redis" default:"codejudge:assignment:"`

	// server config
	HTTPAddr      string `flagUsage:"specifies the http binding address" default:":5050"`
	MonitorAddr   string `flagUsage:"specifies the metrics binding address" default:":5052"`
	JWTSecret     string `flagUsage:"HS256 secret to verify bearer tokens (no auth when empty)"`
	EnableDebug   bool   `flagUsage:"enable debug endpoint"`
	EnableMetrics bool   `flagUsage:"enable prometheus metrics endpoint"`

	// logger config
	Release bool `flagUsage:"release level of logs"`
	Silent  bool `flagUsage:"do not print logs"`

	// show version and exit
	Version bool `flagUsage:"show version and exit"`
}

// Load loads config from flag & environment variables
func (c *Config) Load() error {
	cl := multiconfig.MultiLoader(
		&multiconfig.TagLoader{},
		&multiconfig.EnvironmentLoader{
			Prefix:    "CJ",
			CamelCase: true,
		},
		&multiconfig.FlagLoader{
			CamelCase: true,
			EnvPrefix: "CJ",
		},
	)
	if os.Getpid() == 1 {
		c.Release = true
	}
	if err := cl.Load(c); err != nil {
		return err
	}
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	return nil
}
