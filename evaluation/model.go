package evaluation

import (
	"github.com/kaiju-coding/codejudge/execution"
	"github.com/kaiju-coding/codejudge/language"
)

// DefaultPoints is the weight of a test case without points
const DefaultPoints = 1.0

// TestCase defines one input and its expected output
type TestCase struct {
	ID             string   `json:"id" yaml:"id"`
	Input          string   `json:"input" yaml:"input"`
	ExpectedOutput string   `json:"expected_output" yaml:"expected_output"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	IsHidden       bool     `json:"is_hidden" yaml:"is_hidden"`
	Points         *float64 `json:"points,omitempty" yaml:"points,omitempty"`
}

// PointsPossible returns the points of the test case or DefaultPoints
func (t TestCase) PointsPossible() float64 {
	if t.Points == nil {
		return DefaultPoints
	}
	return *t.Points
}

// TestCaseResult is the graded result of one test case.
// ExpectedOutput is empty for hidden test cases. ActualOutput is empty
// after a timeout and may be partial for other failed statuses.
type TestCaseResult struct {
	TestCaseID      string           `json:"test_case_id"`
	Passed          bool             `json:"passed"`
	ActualOutput    string           `json:"actual_output"`
	ExpectedOutput  string           `json:"expected_output"`
	Error           string           `json:"error,omitempty"`
	PointsAwarded   float64          `json:"points_awarded"`
	PointsPossible  float64          `json:"points_possible"`
	Description     string           `json:"description,omitempty"`
	IsHidden        bool             `json:"is_hidden"`
	ExecutionTimeMS int64            `json:"execution_time_ms"`
	Status          execution.Status `json:"status"`
}

// Result is the graded submission, TestResults keeps the order of the
// test cases
type Result struct {
	SubmissionID    string           `json:"submission_id"`
	ExecutionStatus execution.Status `json:"execution_status"`
	TestResults     []TestCaseResult `json:"test_results"`
	TotalPoints     float64          `json:"total_points"`
	MaximumPoints   float64          `json:"maximum_points"`
	Percentage      float64          `json:"percentage"`
	Feedback        string           `json:"feedback"`
}

// Submission is the code to grade. When TestCases is empty the test cases
// of AssignmentID are fetched from the store.
type Submission struct {
	Code         string
	Language     language.Language
	AssignmentID string
	TestCases    []TestCase
	// Subject is the authenticated submitter, used for audit logs only
	Subject string
}
