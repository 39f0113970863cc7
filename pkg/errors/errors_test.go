package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  *AppError
		want int
	}{
		{NotFound("patient", nil), http.StatusNotFound},
		{InvalidArgument("bad position"), http.StatusBadRequest},
		{BadRequest("bad body", nil), http.StatusBadRequest},
		{Unauthorized(nil), http.StatusUnauthorized},
		{Forbidden("insufficient permission"), http.StatusForbidden},
		{Conflict("queue busy", nil), http.StatusConflict},
		{InvalidTransition("COMPLETED", "WAITING"), http.StatusUnprocessableEntity},
		{Internal(fmt.Errorf("boom")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Message, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.StatusCode())
		})
	}
}

func TestIsUnwrapsChain(t *testing.T) {
	wrapped := fmt.Errorf("failed to reposition: %w", InvalidTransition("WAITING", "WAITING"))

	assert.True(t, Is(wrapped, ErrInvalidTransition))
	assert.False(t, Is(wrapped, ErrNotFound))
	assert.Equal(t, ErrInvalidTransition, CodeOf(wrapped))
	assert.Equal(t, ErrInternal, CodeOf(fmt.Errorf("plain")))
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("appointment", fmt.Errorf("sql: no rows"))
	assert.Equal(t, "appointment not found: sql: no rows", err.Error())
	assert.Equal(t, "invalid status transition from COMPLETED to WAITING", InvalidTransition("COMPLETED", "WAITING").Error())
}
