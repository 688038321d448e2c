// Package execution runs one code snippet in the sandbox and classifies
// the result.
package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kaiju-coding/codejudge/envexec"
	"github.com/kaiju-coding/codejudge/language"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"github.com/kaiju-coding/codejudge/worker"
	"go.uber.org/zap"
)

// Executor runs a single request
type Executor interface {
	Execute(context.Context, Request) (Outcome, error)
}

// Service executes requests through the worker
type Service struct {
	worker   worker.Worker
	registry *language.Registry
	conf     Config
	logger   *zap.Logger
}

var _ Executor = &Service{}

// New creates a Service, zero fields of conf take their defaults
func New(w worker.Worker, r *language.Registry, conf Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		worker:   w,
		registry: r,
		conf:     conf.withDefaults(),
		logger:   logger,
	}
}

// Config returns the effective limits
func (s *Service) Config() Config {
	return s.conf
}

// Execute writes the code into a fresh sandbox environment, compiles it when
// the language requires and runs it with the request stdin
func (s *Service) Execute(ctx context.Context, req Request) (Outcome, error) {
	if strings.TrimSpace(req.Code) == "" {
		return Outcome{}, apperr.Validation("Code cannot be empty")
	}
	adapter, ok := s.registry.Get(req.Language)
	if !ok {
		return Outcome{}, apperr.Validation("Unsupported language: %s", req.Language)
	}
	timeout := s.conf.clampTimeout(req.Timeout)

	wreq, compiled := s.prepareRequest(adapter, req, timeout)
	start := time.Now()
	resp := <-s.worker.Submit(ctx, wreq)
	elapsed := time.Since(start)

	if resp.Error != nil {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		if errors.Is(resp.Error, context.Canceled) || errors.Is(resp.Error, context.DeadlineExceeded) {
			return Outcome{}, resp.Error
		}
		s.logger.Error("execution failed", zap.String("requestId", wreq.RequestID), zap.Error(resp.Error))
		return Outcome{}, apperr.Internal(resp.Error, "execution failed")
	}
	if len(resp.Results) == 0 {
		return Outcome{}, apperr.Internal(nil, "execution returned no result")
	}

	idx := len(resp.Results) - 1
	stage := language.StageRun
	if compiled && idx == 0 {
		stage = language.StageCompile
	}
	r := resp.Results[idx]
	if r.KillReason == envexec.KillCancelled {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
	}
	if !r.Status.Sandboxed() {
		s.logger.Error("sandbox failure",
			zap.String("requestId", wreq.RequestID),
			zap.Stringer("language", req.Language),
			zap.Stringer("stage", stage),
			zap.Stringer("status", r.Status),
			zap.String("error", r.Error))
		return Outcome{}, apperr.Internal(fmt.Errorf("%s: %s", r.Status, r.Error), "sandbox failure")
	}

	o := Outcome{
		Stdout:          string(r.Stdout),
		Stderr:          string(r.Stderr),
		Elapsed:         elapsed,
		MemoryPeak:      r.Memory,
		StdoutTruncated: r.StdoutTruncated,
		StderrTruncated: r.StderrTruncated,
	}
	o.Status, o.Error = s.classify(adapter, stage, r, timeout)

	s.logger.Debug("execution finished",
		zap.String("requestId", wreq.RequestID),
		zap.Stringer("language", req.Language),
		zap.Stringer("status", o.Status),
		zap.Duration("elapsed", elapsed),
		zap.Stringer("memory", r.Memory))
	return o, nil
}

func (s *Service) prepareRequest(a language.Adapter, req Request, timeout time.Duration) (*worker.Request, bool) {
	wreq := &worker.Request{
		RequestID: uuid.NewString(),
		CopyIn: map[string][]byte{
			a.SourceFile(): []byte(req.Code),
		},
	}
	compile := a.Compile()
	if compile != nil {
		wreq.Cmd = append(wreq.Cmd, worker.Cmd{
			Args:        compile.Args,
			Env:         compile.Env,
			ClockLimit:  s.conf.CompileTimeout,
			MemoryLimit: s.conf.CompileMemoryLimit,
			StackLimit:  s.conf.StackLimit,
			ProcLimit:   procLimit(compile.ProcLimit, s.conf.ProcLimit),
			OutputLimit: s.conf.OutputLimit,
		})
	}
	run := a.Run()
	wreq.Cmd = append(wreq.Cmd, worker.Cmd{
		Args:        run.Args,
		Env:         run.Env,
		Stdin:       []byte(req.Stdin),
		ClockLimit:  timeout,
		MemoryLimit: s.conf.MemoryLimit,
		StackLimit:  s.conf.StackLimit,
		ProcLimit:   procLimit(run.ProcLimit, s.conf.ProcLimit),
		OutputLimit: s.conf.OutputLimit,
	})
	return wreq, compile != nil
}

func procLimit(adapter, conf uint64) uint64 {
	if adapter > 0 {
		return adapter
	}
	return conf
}

// classify maps the sandbox status of the last command to an execution status
func (s *Service) classify(a language.Adapter, stage language.Stage, r worker.Result, timeout time.Duration) (Status, string) {
	if r.Status == envexec.StatusAccepted {
		return StatusSuccess, ""
	}
	if stage == language.StageCompile {
		switch r.Status {
		case envexec.StatusTimeLimitExceeded:
			return StatusCompileError, fmt.Sprintf("Compilation timed out after %v", s.conf.CompileTimeout)
		case envexec.StatusMemoryLimitExceeded:
			return StatusCompileError, "Compilation exceeded the memory limit"
		}
		c := a.ClassifyError(outcome(stage, r))
		return StatusCompileError, c.Message
	}

	switch r.Status {
	case envexec.StatusTimeLimitExceeded:
		return StatusTimeout, fmt.Sprintf("Execution timed out after %v", timeout)
	case envexec.StatusMemoryLimitExceeded:
		return StatusMemoryLimitExceeded, "Memory limit exceeded"
	}
	c := a.ClassifyError(outcome(stage, r))
	switch c.Category {
	case language.CategoryCompileError:
		return StatusCompileError, c.Message
	case language.CategoryMemoryLimitExceeded:
		return StatusMemoryLimitExceeded, c.Message
	}
	return StatusRuntimeError, c.Message
}

func outcome(stage language.Stage, r worker.Result) language.Outcome {
	return language.Outcome{
		Stage:      stage,
		Status:     r.Status,
		ExitStatus: r.ExitStatus,
		Stdout:     r.Stdout,
		Stderr:     r.Stderr,
	}
}
