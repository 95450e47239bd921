package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"plain", fmt.Errorf("boom"), CodeInternal},
		{"sentinel", ErrNotFound, CodeNotFound},
		{"wrapped pkg", errors.Wrap(ErrForbidden, "failed to update video"), CodeForbidden},
		{"wrapped fmt", fmt.Errorf("ctx: %w", BadRequest("title is required")), CodeBadRequest},
		{"internal", Internal(fmt.Errorf("db down")), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := errors.Wrap(NotFound("video not found"), "failed to get video")
	if !errors.Is(err, ErrNotFound) {
		t.Error("expected wrapped NotFound to match ErrNotFound")
	}
	if errors.Is(err, ErrForbidden) {
		t.Error("NotFound must not match ErrForbidden")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := map[Code]int{
		CodeUnauthorized:    http.StatusUnauthorized,
		CodeForbidden:       http.StatusForbidden,
		CodeNotFound:        http.StatusNotFound,
		CodeBadRequest:      http.StatusBadRequest,
		CodeTooManyRequests: http.StatusTooManyRequests,
		CodeInternal:        http.StatusInternalServerError,
	}
	for code, want := range tests {
		if got := code.HTTPStatus(); got != want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", code, got, want)
		}
	}
}

func TestMessageOfHidesInternalCause(t *testing.T) {
	err := Internal(fmt.Errorf("password=hunter2"))
	if got := MessageOf(err); got != "internal server error" {
		t.Errorf("MessageOf() = %q", got)
	}
	if got := MessageOf(BadRequest("content is required")); got != "content is required" {
		t.Errorf("MessageOf() = %q", got)
	}
}
