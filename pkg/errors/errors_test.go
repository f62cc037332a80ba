package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{CodeValidationFailed, http.StatusBadRequest},
		{CodeUsernameTaken, http.StatusBadRequest},
		{CodeAlreadyInactive, http.StatusBadRequest},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeAccountDeactivated, http.StatusUnauthorized},
		{CodeNotFound, http.StatusNotFound},
		{CodeIdempotencyConflict, http.StatusConflict},
		{CodeInternalError, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_NEW"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, NewAppError(tt.code, "msg", nil).HTTPStatus())
		})
	}
}

func TestWithReasonDoesNotMutate(t *testing.T) {
	base := Unauthenticated("Could not validate credentials", "expired")
	derived := base.WithReason("malformed").WithDetails("x")

	assert.Equal(t, "expired", base.Reason)
	assert.Nil(t, base.Details)
	assert.Equal(t, "malformed", derived.Reason)
	assert.Equal(t, "x", derived.Details)
}

func TestResponseOmitsReasonAndCause(t *testing.T) {
	err := Internal("Internal server error", errors.New("dial tcp: refused")).WithReason("db_down")
	resp := err.ToErrorResponse("trace-1")

	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Equal(t, "Internal server error", resp.Error.Message)
	assert.Equal(t, "trace-1", resp.Error.TraceID)
	assert.Contains(t, err.Error(), "db_down")
	assert.Contains(t, err.Error(), "dial tcp")
}

func TestAsAndWrap(t *testing.T) {
	cause := errors.New("boom")
	wrapped := fmt.Errorf("outer: %w", NotFound("User not found"))

	appErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeNotFound, appErr.Code)
	assert.True(t, HasCode(wrapped, CodeNotFound))
	assert.False(t, HasCode(cause, CodeNotFound))

	assert.Nil(t, WrapError(nil, "ignored"))
	assert.True(t, HasCode(WrapError(cause, "failed"), CodeInternalError))
	assert.True(t, HasCode(WrapError(wrapped, "lookup failed"), CodeNotFound))
	assert.ErrorIs(t, WrapError(cause, "failed"), cause)
}
