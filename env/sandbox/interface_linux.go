// Package sandbox runs each process in fresh linux namespaces over a
// private working directory, limited by rlimit and cgroup.
package sandbox

import (
	"syscall"

	"github.com/criyle/go-sandbox/pkg/cgroup"
)

// CgroupBuilder builds cgroup for runner
type CgroupBuilder interface {
	Random(string) (cg cgroup.Cgroup, err error)
}

// CredGenerator generates credential for each sandboxed process
type CredGenerator interface {
	Get() syscall.Credential
}
