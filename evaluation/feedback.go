package evaluation

import "fmt"

// Feedback returns the message shown for a graded submission
func Feedback(passed, total int, percentage float64) string {
	switch {
	case total > 0 && passed == total:
		return "Excellent! All tests passed."
	case percentage >= 80:
		return fmt.Sprintf("Good job! You passed %d/%d tests.", passed, total)
	case percentage >= 50:
		return fmt.Sprintf("You're on the right track, but there are still some issues. You passed %d/%d tests.", passed, total)
	}
	return "Your solution needs more work. Review the test cases and try again."
}
