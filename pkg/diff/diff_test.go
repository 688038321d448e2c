package diff

import "testing"

func TestHint(t *testing.T) {
	tests := []struct {
		expected, actual, want string
	}{
		{"1 2\n3\n", "1 2\n3\n", ""},
		{"1 2\n3\n", "1 2   \n3\n\n\n", ""},
		{"1 2\n3", "1 2\n4", `Line 2: expected "3", got "4"`},
		{"a\nb\n", "a\n", `Line 2: expected "b", got end of output`},
		{"a\n", "a\nb\n", `Line 2: unexpected extra output "b"`},
		{"a\n", "a\n\n\nc", `Line 2: unexpected extra output ""`},
		{"", "", ""},
	}
	for _, tc := range tests {
		if got := Hint(tc.expected, tc.actual); got != tc.want {
			t.Errorf("Hint(%q, %q) = %q, want %q", tc.expected, tc.actual, got, tc.want)
		}
	}
}

func TestHintLongLine(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	got := Hint(string(long), "y")
	if len(got) > 200 {
		t.Fatalf("hint not shortened: %d bytes", len(got))
	}
}
