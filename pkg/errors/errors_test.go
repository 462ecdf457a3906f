package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistenceErrorKeepsEngineErrors(t *testing.T) {
	policy := NewPolicyViolation(CodeTrayLocked, "tray locked")
	wrapped := NewPersistenceError(CodeBatchWriteFailed, "write failed", policy)

	assert.Same(t, policy, wrapped)
	assert.True(t, IsKind(wrapped, KindPolicy))
}

func TestPersistenceErrorWrapsDriverError(t *testing.T) {
	driverErr := errors.New("connection reset")
	err := NewPersistenceError(CodeBatchWriteFailed, "write failed", driverErr)

	require.True(t, IsKind(err, KindPersistence))
	assert.ErrorIs(t, err, driverErr)
	assert.Equal(t, CodeBatchWriteFailed, CodeOf(err))
}

func TestKindOfThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("move: %w", NewResolutionError(CodeStageMissing, "no stage"))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, KindResolution, kind)

	_, ok = KindOf(errors.New("plain"))
	assert.False(t, ok)
	assert.Empty(t, CodeOf(errors.New("plain")))
}
