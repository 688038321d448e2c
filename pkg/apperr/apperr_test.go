package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindHTTPStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{KindValidation, http.StatusBadRequest},
		{KindAuthentication, http.StatusUnauthorized},
		{KindAuthorization, http.StatusForbidden},
		{KindNotFound, http.StatusNotFound},
		{KindInternal, http.StatusInternalServerError},
		{KindExternalService, http.StatusBadGateway},
		{Kind(100), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.kind.HTTPStatus(); got != tt.want {
			t.Errorf("%v.HTTPStatus() = %d, want %d", tt.kind, got, tt.want)
		}
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("fetch: %w", NotFound("no test cases for %s", "a1"))
	if k := KindOf(err); k != KindNotFound {
		t.Fatalf("KindOf = %v, want %v", k, KindNotFound)
	}
	if !Is(err, KindNotFound) {
		t.Fatal("Is(NotFound) = false")
	}
	if k := KindOf(errors.New("plain")); k != KindInternal {
		t.Fatalf("KindOf(plain) = %v, want internal", k)
	}
}

func TestInternalHidesDetail(t *testing.T) {
	cause := errors.New("open /var/lib/codejudge/w123: permission denied")
	err := Internal(cause, "sandbox failed")
	if err.PublicMessage() != InternalMessage {
		t.Fatalf("PublicMessage = %q", err.PublicMessage())
	}
	if !errors.Is(err, cause) {
		t.Fatal("internal error does not unwrap to its cause")
	}
	if v := Validation("Code cannot be empty"); v.PublicMessage() != "Code cannot be empty" {
		t.Fatalf("PublicMessage = %q", v.PublicMessage())
	}
}
