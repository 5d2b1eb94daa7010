package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want int
	}{
		{ErrCodeInvalidParams, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTenantMismatch, http.StatusForbidden},
		{ErrCodeBookingNotFound, http.StatusNotFound},
		{ErrCodeVersionConflict, http.StatusConflict},
		{ErrCodeDatabaseError, http.StatusInternalServerError},
		{ErrCodeUpstreamUnavail, http.StatusServiceUnavailable},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, HTTPStatus(c.code), "code=%d", c.code)
	}
}

func TestIsMatchesByCode(t *testing.T) {
	renamed := ErrVersionConflict.WithMessage("团期已被其他人修改")
	wrapped := fmt.Errorf("update departure: %w", renamed)

	assert.True(t, errors.Is(wrapped, ErrVersionConflict))
	assert.False(t, errors.Is(wrapped, ErrDuplicateEntry))
}

func TestGetAppError(t *testing.T) {
	t.Run("非AppError包装为内部错误", func(t *testing.T) {
		appErr := GetAppError(errors.New("connection refused"))
		assert.Equal(t, ErrCodeInternal, appErr.Code)
		assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus())
	})

	t.Run("AppError原样返回", func(t *testing.T) {
		appErr := GetAppError(fmt.Errorf("x: %w", ErrTenantMissing))
		assert.Equal(t, ErrCodeTenantMissing, appErr.Code)
		assert.True(t, IsClientError(appErr))
	})
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := errors.New("deadlock found")
	err := Wrap(cause, "锁定团期失败")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "deadlock found")
}

func TestWrapf(t *testing.T) {
	cause := errors.New("lock wait timeout")
	err := Wrapf(cause, "锁定团期%s失败", "dep-1")

	assert.Equal(t, ErrCodeInternal, err.Code)
	assert.Equal(t, "锁定团期dep-1失败", err.Message)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}
