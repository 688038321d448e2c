// Package model defines the JSON shapes of the codejudge HTTP API and their
// conversion to the service types.
package model

import (
	"errors"
	"net/http"
	"time"

	"github.com/kaiju-coding/codejudge/evaluation"
	"github.com/kaiju-coding/codejudge/execution"
	"github.com/kaiju-coding/codejudge/language"
	"github.com/kaiju-coding/codejudge/pkg/apperr"
)

// ExecuteRequest is the body of POST /execute
type ExecuteRequest struct {
	Code           string            `json:"code"`
	Language       language.Language `json:"language"`
	Input          *string           `json:"input,omitempty"`
	TimeoutSeconds *int              `json:"timeout_seconds,omitempty"`
}

// ExecutionResult is the JSON form of execution.Outcome
type ExecutionResult struct {
	Stdout          string           `json:"stdout"`
	Stderr          string           `json:"stderr"`
	ExecutionTimeMS int64            `json:"execution_time_ms"`
	Status          execution.Status `json:"status"`
	MemoryUsageKB   *uint64          `json:"memory_usage_kb,omitempty"`
	Error           string           `json:"error,omitempty"`
}

// EvaluateRequest is the body of POST /evaluate and of the WebSocket request
type EvaluateRequest struct {
	Code         string                `json:"code"`
	Language     language.Language     `json:"language"`
	AssignmentID string                `json:"assignment_id"`
	TestCases    []evaluation.TestCase `json:"test_cases,omitempty"`
}

// Response wraps a successful result
type Response[T any] struct {
	Result T `json:"result"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ConvertExecuteRequest validates the body and converts it
func ConvertExecuteRequest(r *ExecuteRequest) (execution.Request, error) {
	if r.Language == "" {
		return execution.Request{}, apperr.Validation("Language is required")
	}
	req := execution.Request{
		Code:     r.Code,
		Language: r.Language,
	}
	if r.Input != nil {
		req.Stdin = *r.Input
	}
	if r.TimeoutSeconds != nil {
		if *r.TimeoutSeconds <= 0 {
			return execution.Request{}, apperr.Validation("timeout_seconds must be positive")
		}
		// larger values are clamped by the service anyway
		req.Timeout = time.Duration(min(*r.TimeoutSeconds, maxTimeoutSeconds)) * time.Second
	}
	return req, nil
}

// maxTimeoutSeconds keeps the duration conversion from overflowing
const maxTimeoutSeconds = 1 << 30

// ConvertOutcome converts the outcome to its JSON form
func ConvertOutcome(o execution.Outcome) ExecutionResult {
	r := ExecutionResult{
		Stdout:          o.Stdout,
		Stderr:          o.Stderr,
		ExecutionTimeMS: o.Elapsed.Milliseconds(),
		Status:          o.Status,
		Error:           o.Error,
	}
	if o.MemoryPeak > 0 {
		kb := uint64(o.MemoryPeak.KiB())
		r.MemoryUsageKB = &kb
	}
	return r
}

// ConvertEvaluateRequest validates the body and converts it into a
// submission of subject
func ConvertEvaluateRequest(r *EvaluateRequest, subject string) (evaluation.Submission, error) {
	if r.Language == "" {
		return evaluation.Submission{}, apperr.Validation("Language is required")
	}
	if r.AssignmentID == "" {
		return evaluation.Submission{}, apperr.Validation("assignment_id is required")
	}
	return evaluation.Submission{
		Code:         r.Code,
		Language:     r.Language,
		AssignmentID: r.AssignmentID,
		TestCases:    r.TestCases,
		Subject:      subject,
	}, nil
}

// ConvertError returns the status code and body for err. Errors without a
// kind are internal.
func ConvertError(err error) (int, ErrorResponse) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.Internal(err, "unclassified error")
	}
	status := e.Kind.HTTPStatus()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return status, ErrorResponse{Error: ErrorBody{
		Type:    e.Kind.String(),
		Message: e.PublicMessage(),
	}}
}

// BindError wraps a malformed request body
func BindError(err error) error {
	return apperr.Wrap(apperr.KindValidation, err, "Invalid request body: %v", err)
}
