package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := New(ErrorTypeValidation, "max_profiles must be positive")
		assert.Equal(t, "validation error: max_profiles must be positive", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		err := Wrap(ErrorTypeNavigation, fmt.Errorf("net::ERR_CONNECTION_RESET"), "load saved feed")
		assert.Equal(t, "navigation error: load saved feed: net::ERR_CONNECTION_RESET", err.Error())
	})

	t.Run("wrap nil", func(t *testing.T) {
		assert.NoError(t, Wrap(ErrorTypeBrowser, nil, "ignored"))
		assert.NoError(t, Wrapf(ErrorTypeBrowser, nil, "ignored %d", 1))
	})
}

func TestTypeOf(t *testing.T) {
	cause := stderrors.New("boom")
	wrapped := fmt.Errorf("open session: %w", Wrap(ErrorTypeAuthBootstrap, cause, "identity not rendered"))

	assert.Equal(t, ErrorTypeAuthBootstrap, TypeOf(wrapped))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(cause))
	assert.True(t, IsType(wrapped, ErrorTypeAuthBootstrap))
	assert.False(t, IsType(wrapped, ErrorTypeStorage))
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, New(ErrorTypeAuthBootstrap, ""))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		errType ErrorType
		want    bool
	}{
		{ErrorTypeNavigation, true},
		{ErrorTypeTimeout, true},
		{ErrorTypeValidation, false},
		{ErrorTypeAuthBootstrap, false},
		{ErrorTypeExtraction, false},
		{ErrorTypeStorage, false},
		{ErrorTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.errType))
		})
	}
}

func TestTraceOf(t *testing.T) {
	inner := &Error{Type: ErrorTypeUnknown, Message: "panic: boom", Trace: "goroutine 1 [running]:"}
	wrapped := fmt.Errorf("run: %w", inner)

	assert.Equal(t, "goroutine 1 [running]:", TraceOf(wrapped))
	assert.Empty(t, TraceOf(New(ErrorTypeStorage, "disk full")))
	assert.Empty(t, TraceOf(nil))
}

func TestWithTrace(t *testing.T) {
	cause := stderrors.New("target closed")
	err := Wrap(ErrorTypeBrowser, cause, "scroll feed")

	traced := WithTrace(err)
	assert.Equal(t, err.Error(), traced.Error(), "message is unchanged")
	assert.Equal(t, ErrorTypeBrowser, TypeOf(traced))
	assert.ErrorIs(t, traced, cause)

	trace := TraceOf(traced)
	assert.Contains(t, trace, "browser: scroll feed")
	assert.Contains(t, trace, "target closed")
	assert.Contains(t, trace, "goroutine")
	assert.Empty(t, TraceOf(err), "the original is not modified")

	assert.Same(t, traced, WithTrace(traced), "an existing trace is kept")
	assert.Nil(t, WithTrace(nil))

	plain := WithTrace(fmt.Errorf("load: %w", cause))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(plain))
	assert.ErrorIs(t, plain, cause)
	assert.Contains(t, TraceOf(plain), "load: target closed")
}
