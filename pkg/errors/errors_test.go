package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_HTTPStatus(t *testing.T) {
	tests := []struct {
		code   ErrorCode
		status int
	}{
		{CodeValidation, http.StatusBadRequest},
		{CodeInvalidCredentials, http.StatusBadRequest},
		{CodeUnauthenticated, http.StatusUnauthorized},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotFound, http.StatusNotFound},
		{CodeConflict, http.StatusConflict},
		{CodeUpstreamFailure, http.StatusBadGateway},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, NewAppError(tt.code, "msg", nil).HTTPStatus())
		})
	}
}

func TestAs_WrapsForeignErrorsAsInternal(t *testing.T) {
	cause := fmt.Errorf("pq: connection refused")

	appErr := As(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, CodeInternalError, appErr.Code)
	assert.Equal(t, "Internal server error", appErr.Message)
	assert.ErrorIs(t, appErr, cause)

	assert.Nil(t, As(nil))
}

func TestAs_FindsWrappedAppError(t *testing.T) {
	inner := Forbidden("not yours")
	wrapped := fmt.Errorf("delete: %w", inner)

	assert.Same(t, inner, As(wrapped))
	assert.True(t, HasCode(wrapped, CodeForbidden))
	assert.False(t, HasCode(wrapped, CodeNotFound))
}

func TestToErrorResponse_DoesNotLeakCause(t *testing.T) {
	appErr := Internal(fmt.Errorf("password_hash column missing"))

	resp := appErr.ToErrorResponse("trace-1")
	assert.Equal(t, CodeInternalError, resp.Error.Code)
	assert.Equal(t, "Internal server error", resp.Error.Message)
	assert.Equal(t, resp.Error.Message, resp.Message)
	assert.Equal(t, "trace-1", resp.Error.TraceID)
}
