package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kaiju-coding/codejudge/envexec"
	"go.uber.org/zap"
)

const maxWaiting = 512

// ErrShutdown is returned for requests still queued when the worker shuts down
var ErrShutdown = errors.New("worker: shutdown")

// EnvironmentPool provides environments for the worker, every environment
// got from Get is returned with Put after its request finishes
type EnvironmentPool interface {
	Get() (envexec.Environment, error)
	Put(envexec.Environment)
}

// Config defines worker configuration
type Config struct {
	EnvironmentPool  EnvironmentPool
	Parallelism      int
	ExtraMemoryLimit Size
	OutputLimit      Size
	FileSizeLimit    Size
	OpenFileLimit    uint64
	ExecObserver     func(Response)
	Logger           *zap.Logger
}

// Worker defines interface for executor
type Worker interface {
	Start()
	// Submit queues the request behind the parallelism limit. Exactly one
	// response is sent on the returned channel.
	Submit(context.Context, *Request) <-chan Response
	Shutdown()
}

// worker defines executor worker
type worker struct {
	envPool     EnvironmentPool
	parallelism int

	extraMemoryLimit Size
	outputLimit      Size
	fileSizeLimit    Size
	openFileLimit    uint64

	execObserver func(Response)
	logger       *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workCh    chan workRequest
	done      chan struct{}
}

type workRequest struct {
	*Request
	context.Context
	resultCh chan<- Response
}

// New creates new worker
func New(conf Config) Worker {
	parallelism := conf.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	logger := conf.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &worker{
		envPool:          conf.EnvironmentPool,
		parallelism:      parallelism,
		extraMemoryLimit: conf.ExtraMemoryLimit,
		outputLimit:      conf.OutputLimit,
		fileSizeLimit:    conf.FileSizeLimit,
		openFileLimit:    conf.OpenFileLimit,
		execObserver:     conf.ExecObserver,
		logger:           logger,
		workCh:           make(chan workRequest, maxWaiting),
		done:             make(chan struct{}),
	}
}

// Start starts worker loops with given parallelism
func (w *worker) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(w.parallelism)
		for i := 0; i < w.parallelism; i++ {
			go w.loop()
		}
	})
}

// Submit submits a single request
func (w *worker) Submit(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	select {
	case <-w.done:
		ch <- Response{RequestID: req.RequestID, Error: ErrShutdown}
		return ch
	default:
	}
	select {
	case w.workCh <- workRequest{
		Request:  req,
		Context:  ctx,
		resultCh: ch,
	}:
	case <-ctx.Done():
		ch <- Response{RequestID: req.RequestID, Error: ctx.Err()}
	case <-w.done:
		ch <- Response{RequestID: req.RequestID, Error: ErrShutdown}
	}
	return ch
}

// Shutdown waits all worker to finish
func (w *worker) Shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		// reply to requests that never started
		for {
			select {
			case req := <-w.workCh:
				req.resultCh <- Response{RequestID: req.RequestID, Error: ErrShutdown}
			default:
				return
			}
		}
	})
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.workCh:
			w.workDoCmd(req)
		case <-w.done:
			return
		}
	}
}

func (w *worker) workDoCmd(req workRequest) {
	var rt Response
	if err := req.Context.Err(); err != nil {
		rt.Error = err
	} else {
		rt = w.workDoRequest(req.Context, req.Request)
	}
	rt.RequestID = req.RequestID
	if w.execObserver != nil {
		w.execObserver(rt)
	}
	req.resultCh <- rt
}

func (w *worker) workDoRequest(ctx context.Context, req *Request) (rt Response) {
	if len(req.Cmd) == 0 {
		rt.Error = errors.New("worker: no cmd provided")
		return
	}
	// prepare environment
	env, err := w.envPool.Get()
	if err != nil {
		w.logger.Error("failed to get environment", zap.String("requestId", req.RequestID), zap.Error(err))
		return Response{Results: []Result{{
			Status: envexec.StatusInternalError,
			Error:  fmt.Sprintf("failed to get environment %v", err),
		}}}
	}
	defer w.envPool.Put(env)

	rt.Results = make([]Result, 0, len(req.Cmd))
	for i, rc := range req.Cmd {
		c := w.prepareCmd(rc)
		c.Environment = env
		if i == 0 {
			c.CopyIn = req.CopyIn
		}
		s := &envexec.Single{
			Cmd: c,
		}
		result, err := s.Run(ctx)
		if err != nil {
			w.logger.Error("failed to run cmd", zap.String("requestId", req.RequestID), zap.Error(err))
		}
		rt.Results = append(rt.Results, convertResult(result))
		if result.Status != envexec.StatusAccepted {
			break
		}
	}
	return
}

func convertResult(result envexec.Result) Result {
	return Result{
		Status:          result.Status,
		ExitStatus:      result.ExitStatus,
		Error:           result.Error,
		Time:            result.Time,
		RunTime:         result.RunTime,
		Memory:          result.Memory,
		KillReason:      result.KillReason,
		Stdout:          result.Stdout,
		Stderr:          result.Stderr,
		StdoutTruncated: result.StdoutTruncated,
		StderrTruncated: result.StderrTruncated,
	}
}

func (w *worker) prepareCmd(rc Cmd) *envexec.Cmd {
	outputLimit := w.outputLimit
	if rc.OutputLimit > 0 {
		outputLimit = rc.OutputLimit
	}
	return &envexec.Cmd{
		Args:             rc.Args,
		Env:              rc.Env,
		Stdin:            rc.Stdin,
		TimeLimit:        rc.ClockLimit,
		MemoryLimit:      rc.MemoryLimit,
		StackLimit:       rc.StackLimit,
		ExtraMemoryLimit: w.extraMemoryLimit,
		OutputLimit:      outputLimit,
		FileSizeLimit:    w.fileSizeLimit,
		ProcLimit:        rc.ProcLimit,
		OpenFileLimit:    w.openFileLimit,
	}
}
