package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", Validation("bad %s", "input"), http.StatusBadRequest},
		{"auth", Unauthorized("no token"), http.StatusUnauthorized},
		{"forbidden", Forbidden("not owner"), http.StatusForbidden},
		{"not found", NotFound("missing"), http.StatusNotFound},
		{"conflict", Conflict("dup"), http.StatusConflict},
		{"unavailable", Unavailable("provider down", errors.New("dial")), http.StatusServiceUnavailable},
		{"internal", Internal("db", errors.New("boom")), http.StatusInternalServerError},
		{"plain error", errors.New("raw"), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NotFound("missing")), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestMessage_HidesCause(t *testing.T) {
	err := Internal("Failed to save story", errors.New("connection reset by peer"))

	assert.Equal(t, "Failed to save story", Message(err))
	assert.Equal(t, "Server Error", Message(errors.New("connection reset by peer")))
	assert.ErrorContains(t, err, "connection reset by peer")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Unavailable("lookup failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, Is(err, KindUnavailable))
	assert.False(t, Is(nil, KindUnavailable))
}
