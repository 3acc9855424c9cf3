package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New("boom")
	require.NotNil(t, err)
	assert.Equal(t, "boom", err.Error())
}

func TestWrapPreservesIs(t *testing.T) {
	wrapped := Wrap(ErrNotFound, "loading node n1")
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Contains(t, wrapped.Error(), "loading node n1")
}

func TestSentinelsAreDistinct(t *testing.T) {
	assert.False(t, Is(ErrNotFound, ErrTimeout))
	assert.False(t, Is(ErrBatchTooLarge, ErrDuplicateKey))
}
