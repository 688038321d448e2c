package envexec

import (
	"context"
	"os"
	"time"
)

// ExecveParam is parameters to run process inside environment
type ExecveParam struct {
	// Args holds command line arguments
	Args []string

	// Env specifies the environment of the process
	Env []string

	// Files specifies file descriptors for the child process
	Files []uintptr

	// Process Limitations
	Limit Limit
}

// Limit defines the process running resource limits
type Limit struct {
	Time     time.Duration // CPU time limit
	Memory   Size          // Memory limit (including the extra buffer)
	Proc     uint64        // Process count limit
	Stack    Size          // Stack limit
	Output   Size          // File size limit
	OpenFile uint64        // Number of open files
}

// Usage defines the peak process resource usage
type Usage struct {
	Time   time.Duration
	Memory Size
}

// Process reference to the running process group
type Process interface {
	Done() <-chan struct{} // Done returns a channel for wait process to exit
	Result() RunnerResult  // Result wait until done and returns RunnerResult
	Usage() Usage          // Usage retrieves the process usage during the run time
}

// Environment defines the interface to access an isolated execution environment.
// The process started by Execve is killed once the context is done.
type Environment interface {
	Execve(context.Context, ExecveParam) (Process, error)
	// WorkDir returns the host path of the working directory
	WorkDir() string
	// Open open file at work dir with given relative path and flags
	Open(path string, flags int, perm os.FileMode) (*os.File, error)
}
