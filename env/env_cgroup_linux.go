package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/criyle/go-sandbox/pkg/cgroup"
	ddbus "github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const systemdTimeout = 10 * time.Second

// cgroupSetup decides where per execution cgroups live. A sandbox without a
// memory controller cannot report peak memory, so every degradation goes
// through degrade which refuses when fallback is disabled.
type cgroupSetup struct {
	prefix     string
	noFallback bool
	logger     *zap.Logger
}

// setupCgroup returns the parent of the per execution cgroups. A nil cgroup
// without error means the sandbox measures with rlimit / rusage instead.
func setupCgroup(c Config, logger *zap.Logger) (cgroup.Cgroup, *cgroup.Controllers, error) {
	s := &cgroupSetup{prefix: c.CgroupPrefix, noFallback: c.NoFallback, logger: logger}

	ct, err := cgroup.GetAvailableController()
	if err != nil {
		return nil, nil, fmt.Errorf("read available cgroup controllers: %w", err)
	}
	prefix := s.prefix
	if cgroup.DetectedCgroupType == cgroup.TypeV2 {
		if prefix, ct, err = s.delegate(); err != nil {
			return nil, nil, err
		}
	}
	return s.create(prefix, ct)
}

// degrade switches to rlimit mode or fails when fallback is disabled
func (s *cgroupSetup) degrade(cg cgroup.Cgroup, reason string, err error) (cgroup.Cgroup, *cgroup.Controllers, error) {
	if cg != nil {
		cg.Destroy()
	}
	if s.noFallback {
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", reason, err)
		}
		return nil, nil, fmt.Errorf("%s", reason)
	}
	s.logger.Warn("memory is measured by rlimit / rusage", zap.String("reason", reason), zap.Error(err))
	return nil, nil, nil
}

// delegate asks systemd for a scope with cgroup delegation and moves this
// process into it. Without a bus the process owns the whole cgroupfs,
// which is the case inside a container.
func (s *cgroupSetup) delegate() (string, *cgroup.Controllers, error) {
	ctx, cancel := context.WithTimeout(context.Background(), systemdTimeout)
	defer cancel()

	conn, err := connectSystemd(ctx)
	if err != nil {
		s.logger.Info("systemd bus unavailable, using the cgroup root", zap.Error(err))
		ct, err := cgroup.GetAvailableControllerWithPrefix("")
		if err != nil {
			s.logger.Warn("read root cgroup controllers", zap.Error(err))
			ct = nil
		}
		return "", ct, nil
	}
	defer conn.Close()

	unit := s.prefix + ".scope"
	props := []dbus.Property{
		dbus.PropDescription("codejudge sandbox executions"),
		dbus.PropWants(unit),
		dbus.PropPids(uint32(os.Getpid())),
		{Name: "Delegate", Value: ddbus.MakeVariant(true)},
	}
	done := make(chan string, 1)
	if _, err := conn.StartTransientUnitContext(ctx, unit, "replace", props, done); err != nil {
		return "", nil, fmt.Errorf("start systemd scope %s: %w", unit, err)
	}
	select {
	case r := <-done:
		if r != "done" {
			return "", nil, fmt.Errorf("start systemd scope %s: job %s", unit, r)
		}
	case <-ctx.Done():
		return "", nil, fmt.Errorf("start systemd scope %s: %w", unit, ctx.Err())
	}

	prefix, err := cgroup.GetCurrentCgroupPrefix()
	if err != nil {
		return "", nil, fmt.Errorf("read delegated cgroup: %w", err)
	}
	ct, err := cgroup.GetAvailableControllerWithPrefix(prefix)
	if err != nil {
		return "", nil, fmt.Errorf("read controllers of %s: %w", prefix, err)
	}
	s.logger.Info("running in delegated systemd scope", zap.String("unit", unit), zap.String("cgroup", prefix))
	return prefix, ct, nil
}

func connectSystemd(ctx context.Context) (*dbus.Conn, error) {
	if os.Getuid() == 0 {
		return dbus.NewSystemConnectionContext(ctx)
	}
	return dbus.NewUserConnectionContext(ctx)
}

// create builds prefix/api for this process and prefix/containers for the
// executions, cgroup v2 forbids processes in inner nodes.
func (s *cgroupSetup) create(prefix string, ct *cgroup.Controllers) (cgroup.Cgroup, *cgroup.Controllers, error) {
	root := os.Getuid() == 0
	parent, err := cgroup.New(prefix, ct)
	if err != nil {
		if root {
			return nil, nil, fmt.Errorf("create cgroup %s: %w", prefix, err)
		}
		return s.degrade(nil, "no permission on cgroup "+prefix, err)
	}
	if _, err := parent.Nest("api"); err != nil && !root {
		return s.degrade(parent, "cannot move into api cgroup", err)
	}
	containers, err := parent.New("containers")
	if err != nil {
		return s.degrade(nil, "cannot create containers cgroup", err)
	}
	if ct != nil && !ct.Memory {
		return s.degrade(containers, "memory controller is not enabled", nil)
	}
	if ct != nil && !ct.Pids {
		s.logger.Warn("pids controller is not enabled, process limit relies on rlimit")
	}
	s.logger.Info("cgroup ready", zap.String("prefix", prefix), zap.Strings("controllers", controllerNames(ct)))
	return containers, ct, nil
}

func controllerNames(ct *cgroup.Controllers) []string {
	if ct == nil {
		return []string{}
	}
	return ct.Names()
}

// getCgroupInfo reports 0 as the type when running without cgroup
func getCgroupInfo(cg cgroup.Cgroup, ct *cgroup.Controllers) (int, []string) {
	if cg == nil {
		return 0, controllerNames(ct)
	}
	return int(cgroup.DetectedCgroupType), controllerNames(ct)
}
