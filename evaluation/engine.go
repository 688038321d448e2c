// Package evaluation grades a submission against a set of test cases.
package evaluation

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kaiju-coding/codejudge/execution"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
	"github.com/kaiju-coding/codejudge/pkg/diff"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const submissionPrefix = "sub_"

// TestCaseStore supplies the test cases of an assignment
type TestCaseStore interface {
	FetchTestCases(ctx context.Context, assignmentID string) ([]TestCase, error)
}

// ProgressFunc receives every finished test case with its index.
// Calls are serialized but not ordered by index.
type ProgressFunc func(index int, r TestCaseResult)

// Config defines evaluation configuration
type Config struct {
	// MaxConcurrentExecutions bounds the test cases of one submission
	// running at the same time
	MaxConcurrentExecutions int
}

// Engine grades submissions
type Engine struct {
	executor execution.Executor
	store    TestCaseStore
	limit    int
	logger   *zap.Logger
}

// New creates an Engine. store may be nil when every submission carries its
// own test cases.
func New(executor execution.Executor, store TestCaseStore, conf Config, logger *zap.Logger) *Engine {
	limit := conf.MaxConcurrentExecutions
	if limit <= 0 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		executor: executor,
		store:    store,
		limit:    limit,
		logger:   logger,
	}
}

// Evaluate grades the submission
func (e *Engine) Evaluate(ctx context.Context, sub Submission) (*Result, error) {
	return e.EvaluateWithProgress(ctx, sub, nil)
}

// EvaluateWithProgress grades the submission and reports each finished test
// case to progress. The first call-level execution error cancels the
// remaining test cases and is returned.
func (e *Engine) EvaluateWithProgress(ctx context.Context, sub Submission, progress ProgressFunc) (*Result, error) {
	if strings.TrimSpace(sub.Code) == "" {
		return nil, apperr.Validation("Code cannot be empty")
	}
	testCases, err := e.testCases(ctx, sub)
	if err != nil {
		return nil, err
	}
	for i, tc := range testCases {
		if tc.PointsPossible() < 0 {
			return nil, apperr.Validation("Test case %d has negative points", i)
		}
	}

	results := make([]TestCaseResult, len(testCases))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, tc := range testCases {
		g.Go(func() error {
			o, err := e.executor.Execute(gctx, execution.Request{
				Code:     sub.Code,
				Language: sub.Language,
				Stdin:    tc.Input,
			})
			if err != nil {
				return err
			}
			r := grade(tc, o)
			results[i] = r
			if progress != nil {
				mu.Lock()
				progress(i, r)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rt := summarize(results)
	e.logger.Info("submission evaluated",
		zap.String("submissionId", rt.SubmissionID),
		zap.String("subject", sub.Subject),
		zap.Stringer("language", sub.Language),
		zap.String("assignmentId", sub.AssignmentID),
		zap.Int("tests", len(results)),
		zap.Float64("percentage", rt.Percentage))
	return rt, nil
}

func (e *Engine) testCases(ctx context.Context, sub Submission) ([]TestCase, error) {
	if len(sub.TestCases) > 0 {
		return sub.TestCases, nil
	}
	if sub.AssignmentID == "" || e.store == nil {
		return nil, apperr.Validation("No test cases provided")
	}
	tcs, err := e.store.FetchTestCases(ctx, sub.AssignmentID)
	if err != nil {
		return nil, err
	}
	if len(tcs) == 0 {
		return nil, apperr.NotFound("No test cases found for assignment %s", sub.AssignmentID)
	}
	return tcs, nil
}

// grade compares the trimmed output, points are all or nothing
func grade(tc TestCase, o execution.Outcome) TestCaseResult {
	passed := o.Status == execution.StatusSuccess &&
		strings.TrimSpace(o.Stdout) == strings.TrimSpace(tc.ExpectedOutput)

	possible := tc.PointsPossible()
	r := TestCaseResult{
		TestCaseID:      tc.ID,
		Passed:          passed,
		ActualOutput:    o.Stdout,
		ExpectedOutput:  tc.ExpectedOutput,
		PointsPossible:  possible,
		Description:     tc.Description,
		IsHidden:        tc.IsHidden,
		ExecutionTimeMS: o.Elapsed.Milliseconds(),
		Status:          o.Status,
	}
	if passed {
		r.PointsAwarded = possible
	}
	switch {
	case o.Status != execution.StatusSuccess:
		r.Error = o.Error
	case !passed && !tc.IsHidden:
		r.Error = diff.Hint(tc.ExpectedOutput, o.Stdout)
		if r.Error == "" {
			r.Error = "Output does not match the expected output"
		}
	}
	if tc.IsHidden {
		r.ExpectedOutput = ""
	}
	// a killed run leaves whatever was flushed before the deadline
	if o.Status == execution.StatusTimeout {
		r.ActualOutput = ""
	}
	return r
}

func summarize(results []TestCaseResult) *Result {
	var total, maximum float64
	passed := 0
	for _, r := range results {
		total += r.PointsAwarded
		maximum += r.PointsPossible
		if r.Passed {
			passed++
		}
	}
	var percentage float64
	if maximum > 0 {
		percentage = total / maximum * 100
	}
	return &Result{
		SubmissionID:    submissionPrefix + uuid.NewString(),
		ExecutionStatus: execution.StatusSuccess,
		TestResults:     results,
		TotalPoints:     total,
		MaximumPoints:   maximum,
		Percentage:      percentage,
		Feedback:        Feedback(passed, len(results), percentage),
	}
}
