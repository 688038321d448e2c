// Package language describes how each supported language is compiled and
// run inside the sandbox and how its error output is classified.
package language

import (
	"fmt"
	"strings"
)

// Language identifies a supported programming language
type Language string

// Supported languages
const (
	Python     Language = "python"
	Rust       Language = "rust"
	JavaScript Language = "javascript"
	Java       Language = "java"
	CPP        Language = "cpp"
)

// Parse converts a case insensitive name into Language
func Parse(s string) (Language, error) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	switch l {
	case Python, Rust, JavaScript, Java, CPP:
		return l, nil
	}
	return "", fmt.Errorf("unsupported language: %q", s)
}

// UnmarshalText implements encoding.TextUnmarshaler so that unknown
// languages are rejected while decoding requests
func (l *Language) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

func (l Language) String() string {
	return string(l)
}
