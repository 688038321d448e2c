package execution

import (
	"encoding/json"
	"fmt"
)

// Status is the classified result of one execution
type Status int

// Execution statuses
const (
	StatusSuccess Status = iota
	StatusCompileError
	StatusRuntimeError
	StatusTimeout
	StatusMemoryLimitExceeded
)

var statusToString = []string{
	"SUCCESS",
	"COMPILE_ERROR",
	"RUNTIME_ERROR",
	"TIMEOUT",
	"MEMORY_LIMIT_EXCEEDED",
}

func (s Status) String() string {
	i := int(s)
	if i < 0 || i >= len(statusToString) {
		return "UNKNOWN"
	}
	return statusToString[i]
}

// MarshalJSON encodes status as string
func (s Status) MarshalJSON() ([]byte, error) {
	i := int(s)
	if i < 0 || i >= len(statusToString) {
		return nil, fmt.Errorf("execution status %d is invalid", i)
	}
	return json.Marshal(statusToString[i])
}

// UnmarshalJSON decodes status from string
func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	for i, v := range statusToString {
		if v == str {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("execution status %q is invalid", str)
}
