package gdb

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKeepsCause(t *testing.T) {
	cause := errors.New("bus stall")
	err := newError(KindMemoryAccess, "read memory", CoreIndex(1), cause)

	assert.ErrorIs(t, err, ErrMemoryAccess)
	assert.ErrorIs(t, err, cause)

	var e *Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, KindMemoryAccess, e.Kind)
	assert.Equal(t, CoreIndex(1), e.Core)
}

func TestErrorMessage(t *testing.T) {
	err := newError(KindBreakpoint, "create trigger", CoreIndex(2), errors.New("out of resources"))
	msg := err.Error()
	assert.Contains(t, msg, "create trigger")
	assert.Contains(t, msg, "breakpoint operation failure")
	assert.Contains(t, msg, "core 2")
	assert.Contains(t, msg, "out of resources")
}

func TestErrorKindsAreDistinct(t *testing.T) {
	err := newError(KindUnsupported, "write register window", NoCore, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.NotErrorIs(t, err, ErrMemoryAccess)
	assert.NotErrorIs(t, err, ErrInvalidCore)
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInvalidCore, KindOf(newError(KindInvalidCore, "resolve thread", NoCore, nil)))
	assert.Equal(t, KindMemoryAccess,
		KindOf(fmt.Errorf("wrapped: %w", newError(KindMemoryAccess, "read memory", NoCore, nil))))
	// foreign errors default to the fatal session kind
	assert.Equal(t, KindSession, KindOf(errors.New("plain")))
}
