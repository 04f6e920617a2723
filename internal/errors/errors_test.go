package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/mediabroker/internal/domain/model"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "error without cause",
			err:  &AppError{Code: ErrCodeNotFound, Message: "resource not found"},
			want: "resource not found",
		},
		{
			name: "error with cause",
			err:  &AppError{Code: ErrCodeInternal, Message: "failed to process", Cause: errors.New("underlying error")},
			want: "failed to process: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, ErrCodeInternal, "wrapped error")
	assert.ErrorIs(t, err, cause)
}

func TestWrap_NilError(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "wrapped error"))
}

func TestUnknownJob(t *testing.T) {
	err := UnknownJob("abc")
	assert.True(t, IsNotFound(err))
	assert.Equal(t, model.CategoryUnknownJob, GetCategory(err))
	assert.Equal(t, "abc", err.Field)
}

func TestNotCompleted(t *testing.T) {
	err := NotCompleted("abc", model.JobStateProcessing)
	assert.True(t, IsConflict(err))
	assert.Equal(t, model.CategoryJobNotCompleted, GetCategory(err))
	assert.Contains(t, err.Message, "processing")
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", RateLimited())

	assert.True(t, IsRateLimited(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, ErrCodeRateLimited, GetCode(wrapped))
	assert.Equal(t, model.CategoryTooManyRequests, GetCategory(wrapped))
}

func TestGetCategory_Defaults(t *testing.T) {
	assert.Equal(t, model.CategoryUnknown, GetCategory(errors.New("plain")))
	assert.Equal(t, model.CategoryUnknown, GetCategory(nil))
	assert.Equal(t, model.CategoryUnknown, GetCategory(&AppError{Code: ErrCodeInternal}))
}

func TestValidationField(t *testing.T) {
	err := ValidationField(model.CategoryInvalidMode, "mode", "bad mode")
	require.True(t, IsValidation(err))
	assert.Equal(t, "mode", err.Field)
	assert.Equal(t, model.CategoryInvalidMode, err.Category)
	assert.Equal(t, ErrorCode(""), GetCode(errors.New("plain")))
}
