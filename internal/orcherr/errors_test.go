package orcherr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessageIncludesAttachedIDs(t *testing.T) {
	err := New(NodeFailure, "dispatch failed").WithNode("n1").WithTask("t1")
	assert.Contains(t, err.Error(), "node=n1")
	assert.Contains(t, err.Error(), "task=t1")
	assert.Contains(t, err.Error(), string(NodeFailure))
}

func TestErrorIsMatchesOnCodeOnly(t *testing.T) {
	a := New(QueueFull, "pending queue full")
	b := New(QueueFull, "a different message").WithNode("n2")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, New(Timeout, "x")))
}

func TestUnwrapReturnsWrappedCause(t *testing.T) {
	cause := errors.New("network reset")
	err := New(TransientDispatch, "dispatch to node failed").Wrap(cause)

	require.ErrorIs(t, err, cause)
	assert.Same(t, cause, err.Unwrap())
}

func TestNotFoundBuildsUnknownEntityError(t *testing.T) {
	err := NotFound("node", "n1")
	assert.Equal(t, UnknownEntity, err.Code)
	assert.Contains(t, err.Error(), "node")
	assert.Contains(t, err.Error(), "n1")
}
