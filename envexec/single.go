package envexec

import (
	"context"
	"os"
)

const defaultOutputLimit Size = 64 << 10

// Single defines the running instruction to run single
// exec in restricted within cgroup
type Single struct {
	Cmd *Cmd
}

// Run starts the cmd and returns exec results.
// It returns after the process is reaped and its output is collected.
func (s *Single) Run(ctx context.Context) (result Result, err error) {
	c := s.Cmd
	outputLimit := c.OutputLimit
	if outputLimit == 0 {
		outputLimit = defaultOutputLimit
	}

	// prepare files
	stdin, err := newInputPipe(c.Stdin)
	if err != nil {
		return s.internalError(err)
	}
	stdout, err := newPipeBuffer(outputLimit)
	if err != nil {
		closeFiles(stdin)
		return s.internalError(err)
	}
	stderr, err := newPipeBuffer(outputLimit)
	if err != nil {
		closeFiles(stdin, stdout.W)
		return s.internalError(err)
	}

	result = runSingle(ctx, c, []*os.File{stdin, stdout.W, stderr.W})
	result.Stdout, result.StdoutTruncated = stdout.Bytes()
	result.Stderr, result.StderrTruncated = stderr.Bytes()
	return result, nil
}

func (s *Single) internalError(err error) (Result, error) {
	return Result{
		Status: StatusInternalError,
		Error:  err.Error(),
	}, err
}
