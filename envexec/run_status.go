package envexec

// Status is the mechanical outcome of one sandboxed command
type Status int

// Statuses reported by Single.Run
const (
	// zero value, never returned by a finished run
	StatusInvalid Status = iota

	StatusAccepted
	StatusMemoryLimitExceeded
	StatusTimeLimitExceeded
	// file size rlimit hit by the program
	StatusOutputLimitExceeded
	// copy in or a collector failed
	StatusFileError
	StatusNonzeroExitStatus
	StatusSignalled
	// killed by the seccomp filter
	StatusDangerousSyscall

	// the sandbox failed to start or observe the command
	StatusInternalError
)

var statusNames = map[Status]string{
	StatusAccepted:            "accepted",
	StatusMemoryLimitExceeded: "memory_limit_exceeded",
	StatusTimeLimitExceeded:   "time_limit_exceeded",
	StatusOutputLimitExceeded: "output_limit_exceeded",
	StatusFileError:           "file_error",
	StatusNonzeroExitStatus:   "nonzero_exit_status",
	StatusSignalled:           "signalled",
	StatusDangerousSyscall:    "dangerous_syscall",
	StatusInternalError:       "internal_error",
}

// String is used as a metrics label
func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return "invalid"
}

// Sandboxed reports whether the status describes the sandboxed program
// rather than a failure of the sandbox itself
func (s Status) Sandboxed() bool {
	switch s {
	case StatusInvalid, StatusFileError, StatusInternalError:
		return false
	}
	return true
}
