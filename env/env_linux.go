package env

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"

	"github.com/criyle/go-sandbox/pkg/cgroup"
	"github.com/criyle/go-sandbox/pkg/mount"
	"github.com/kaiju-coding/codejudge/env/pool"
	"github.com/kaiju-coding/codejudge/env/sandbox"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	containerName  = "codejudge"
	defaultWorkDir = "/w"
	defaultTmpRoot = "codejudge"
)

// cloneFlags always creates new mount, pid, network, ipc and uts namespaces.
// The child gets no network interface besides loopback.
const cloneFlags = unix.CLONE_NEWNS | unix.CLONE_NEWPID | unix.CLONE_NEWNET |
	unix.CLONE_NEWIPC | unix.CLONE_NEWUTS | unix.CLONE_NEWCGROUP

// NewBuilder build a environment builder
func NewBuilder(c Config, logger *zap.Logger) (pool.EnvBuilder, map[string]any, error) {
	mountBuilder, mc, err := loadMount(c, logger)
	if err != nil {
		return nil, nil, err
	}
	m := mountBuilder.FilterNotExist().Mounts
	logger.Info("created sandbox mount", zap.Any("mounts", mountBuilder))

	seccomp, err := readSeccompConf(c.SeccompConf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load seccomp config: %w", err)
	}
	if seccomp != nil {
		logger.Info("load seccomp filter", zap.String("path", c.SeccompConf))
	}

	unshareFlags := uintptr(cloneFlags)
	major, minor := kernelVersion()
	if major < 4 || (major == 4 && minor < 6) {
		unshareFlags ^= unix.CLONE_NEWCGROUP
		logger.Info("kernel version < 4.6, don't unshare cgroup", zap.Int("major", major), zap.Int("minor", minor))
	}

	// use setuid sandbox only if running in root privilege,
	// otherwise map the current user to root of a new user namespace
	var credGen sandbox.CredGenerator
	if os.Getuid() == 0 {
		if c.ContainerCredStart > 0 {
			credGen = newCredGen(uint32(c.ContainerCredStart))
		}
	} else {
		unshareFlags |= unix.CLONE_NEWUSER
		logger.Info("not running as root, sandbox runs in a new user namespace")
	}

	hostName := containerName
	domainName := containerName
	workDir := defaultWorkDir
	if mc != nil {
		if mc.HostName != "" {
			hostName = mc.HostName
		}
		if mc.DomainName != "" {
			domainName = mc.DomainName
		}
		if mc.WorkDir != "" {
			workDir = mc.WorkDir
		}
	}
	if len(workDir) < 2 || workDir[0] != '/' {
		return nil, nil, fmt.Errorf("work dir must be an absolute path other than /: %q", workDir)
	}

	tmpRoot, err := prepareTmpRoot(c.TmpRoot)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("creating sandbox builder",
		zap.String("hostName", hostName),
		zap.String("domainName", domainName),
		zap.String("workDir", workDir),
		zap.String("tmpRoot", tmpRoot))

	cgb, ct, err := setupCgroup(c, logger)
	if err != nil {
		return nil, nil, err
	}
	cgroupPool := prepareCgroupPool(cgb)
	cgroupType, cgroupControllers := getCgroupInfo(cgb, ct)

	return sandbox.NewEnvBuilder(sandbox.Config{
			TmpRoot:       tmpRoot,
			Mounts:        m,
			CloneFlags:    unshareFlags,
			CredGenerator: credGen,
			CgroupPool:    cgroupPool,
			Seccomp:       seccomp,
			HostName:      hostName,
			DomainName:    domainName,
			WorkDir:       workDir,
		}), map[string]any{
			"cgroupType":        cgroupType,
			"cgroupControllers": cgroupControllers,
			"mount":             m,
			"hostName":          hostName,
			"domainName":        domainName,
			"workDir":           workDir,
			"tmpRoot":           tmpRoot,
			"seccomp":           seccomp != nil,
			"setuid":            credGen != nil,
		}, nil
}

func loadMount(c Config, logger *zap.Logger) (*mount.Builder, *Mounts, error) {
	mc, err := readMountConfig(c.MountConf)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, err
		}
		logger.Info("mount config does not exists, use the default sandbox mount", zap.String("path", c.MountConf))
		return getDefaultMount(c.TmpFsParam), nil, nil
	}
	b, err := parseMountConfig(mc)
	if err != nil {
		return nil, nil, err
	}
	return b, mc, nil
}

func prepareTmpRoot(dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	dir, err := os.MkdirTemp(dir, defaultTmpRoot+"-")
	if err != nil {
		return "", fmt.Errorf("failed to create sandbox root: %w", err)
	}
	// sandbox users need to traverse into their own work dir
	if err := os.Chmod(dir, 0o711); err != nil {
		return "", err
	}
	return dir, nil
}

func prepareCgroupPool(cgb cgroup.Cgroup) sandbox.CgroupPool {
	if cgb != nil {
		return sandbox.NewFakeCgroupPool(cgb)
	}
	return nil
}

type credGen struct {
	cur uint32
}

func newCredGen(start uint32) *credGen {
	return &credGen{cur: start}
}

func (c *credGen) Get() syscall.Credential {
	n := atomic.AddUint32(&c.cur, 1)
	return syscall.Credential{
		Uid: n,
		Gid: n,
	}
}

func kernelVersion() (major int, minor int) {
	var uname syscall.Utsname
	if err := syscall.Uname(&uname); err != nil {
		return
	}

	rl := uname.Release
	var values [2]int
	vi := 0
	value := 0
	for _, c := range rl {
		if '0' <= c && c <= '9' {
			value = (value * 10) + int(c-'0')
		} else {
			// Note that we're assuming N.N.N here.  If we see anything else we are likely to
			// mis-parse it.
			values[vi] = value
			vi++
			if vi >= len(values) {
				break
			}
			value = 0
		}
	}
	switch vi {
	case 0:
		return 0, 0
	case 1:
		return values[0], 0
	case 2:
		return values[0], values[1]
	}
	return
}
