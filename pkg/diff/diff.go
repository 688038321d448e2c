// Package diff describes the first difference between an expected and an
// actual program output.
//
// Trailing white space of each line and empty lines at the end are ignored,
// so a hint may be empty even when the outputs are not byte equal.
package diff

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"unicode"
)

// maxShown bounds each line quoted in a hint
const maxShown = 80

// Hint returns a one line description of the first mismatching line or ""
// when the outputs are equivalent
func Hint(expected, actual string) string {
	expScan := newScanner(expected)
	actScan := newScanner(actual)

	for line := 1; ; line++ {
		exp, hasExp := scanTrimRight(expScan)
		act, hasAct := scanTrimRight(actScan)

		switch {
		case !hasExp && !hasAct:
			return ""
		case hasExp && hasAct:
			if exp != act {
				return fmt.Sprintf("Line %d: expected %q, got %q", line, shorten(exp), shorten(act))
			}
		case hasExp:
			if exp != "" || remaining(expScan) {
				return fmt.Sprintf("Line %d: expected %q, got end of output", line, shorten(exp))
			}
			return ""
		default:
			if act != "" || remaining(actScan) {
				return fmt.Sprintf("Line %d: unexpected extra output %q", line, shorten(act))
			}
			return ""
		}
	}
}

func newScanner(s string) *bufio.Scanner {
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(nil, len(s)+1)
	return sc
}

func scanTrimRight(sc *bufio.Scanner) (string, bool) {
	if sc.Scan() {
		return string(bytes.TrimRightFunc(sc.Bytes(), unicode.IsSpace)), true
	}
	return "", false
}

// remaining reports whether any non blank line is left
func remaining(sc *bufio.Scanner) bool {
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			return true
		}
	}
	return false
}

func shorten(s string) string {
	if len(s) > maxShown {
		return s[:maxShown] + "..."
	}
	return s
}
