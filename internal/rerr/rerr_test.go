package rerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_WrapsCauseAndFormats(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(Broken, "pgadapter.Open", cause)

	assert.Equal(t, "pgadapter.Open: broken: connection refused", err.Error())
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestError_ErrorWithNilCause(t *testing.T) {
	err := New(Saturation, "pool.Acquire", nil)
	assert.Equal(t, "pool.Acquire: saturation", err.Error())
}

func TestError_IsMatchesByKindOnly(t *testing.T) {
	err := New(Broken, "mysqladapter.Open", errors.New("host unreachable"))

	assert.True(t, errors.Is(err, IsBroken))
	assert.False(t, errors.Is(err, IsSql))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Broken, KindOf(New(Broken, "op", nil)))
	assert.Equal(t, Unknown, KindOf(errors.New("plain error")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestKindOf_UnwrapsWrappedError(t *testing.T) {
	wrapped := fmt.Errorf("dbtier.EchoString: %w", New(Broken, "pool.Acquire", nil))
	require.Equal(t, Broken, KindOf(wrapped))
}
