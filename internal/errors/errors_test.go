package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppErrorWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewAppError(ErrCodeDBConnection, "database unreachable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, SeverityCritical, err.Severity)
	assert.True(t, err.IsRetryable())

	wrapped := fmt.Errorf("startup: %w", err)
	assert.True(t, IsCode(wrapped, ErrCodeDBConnection))
	assert.False(t, IsCode(wrapped, ErrCodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeDBConnection))
}

func TestAppErrorMessage(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "bad ticker", nil)
	assert.Equal(t, "[INVALID_INPUT] bad ticker", err.Error())

	err = err.WithDetails("ticker must be uppercase")
	assert.Equal(t, "[INVALID_INPUT] bad ticker: ticker must be uppercase", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidConfig, http.StatusBadRequest},
		{ErrCodeRateLimit, http.StatusTooManyRequests},
		{ErrCodeTimeout, http.StatusRequestTimeout},
		{ErrCodePersistence, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NewAppError(tc.code, "x", nil).HTTPStatus(), string(tc.code))
	}
}

func TestConstructorContext(t *testing.T) {
	err := NewInvalidConfig("server.port", "port out of range")
	assert.Equal(t, "server.port", err.Context["field"])
	assert.True(t, IsCode(err, ErrCodeInvalidConfig))
}
