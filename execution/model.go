package execution

import (
	"time"

	"github.com/kaiju-coding/codejudge/envexec"
	"github.com/kaiju-coding/codejudge/language"
)

// Request is one code snippet to run.
// Zero Timeout selects the configured default.
type Request struct {
	Code     string
	Language language.Language
	Stdin    string
	Timeout  time.Duration
}

// Outcome is the classified result of one execution.
// Error holds the classified detail of a failed execution.
type Outcome struct {
	Stdout  string
	Stderr  string
	Elapsed time.Duration
	Status  Status
	// MemoryPeak is zero when the sandbox could not measure it
	MemoryPeak envexec.Size
	Error      string

	StdoutTruncated bool
	StderrTruncated bool
}
