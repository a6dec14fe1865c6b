package exception

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBatchErrorCategories(t *testing.T) {
	cause := errors.New("connection refused")

	transient := NewBatchError("loader", "bulk load failed", cause, CategoryTransient)
	assert.True(t, transient.IsRetryable())
	assert.True(t, IsTemporary(transient))
	assert.False(t, IsFatal(transient))
	assert.ErrorIs(t, transient, cause)
	assert.Equal(t, "[loader] bulk load failed: connection refused", transient.Error())

	dup := NewDuplicateKeyError("loader", "duplicate id", cause)
	assert.False(t, dup.IsRetryable())
	assert.True(t, IsFatal(dup))
	assert.ErrorIs(t, dup, ErrDuplicateKey)
	assert.ErrorIs(t, dup, cause)
	assert.Equal(t, CategoryConstraint, CategoryOf(dup))
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	conflict := NewOptimisticLockingFailureException("checkpoint", "version mismatch", nil)
	wrapped := fmt.Errorf("advance: %w", conflict)

	assert.True(t, IsOptimisticLockingFailure(wrapped))
	assert.True(t, IsBatchError(wrapped))
	assert.Equal(t, CategoryConflict, CategoryOf(wrapped))
	assert.Equal(t, "version mismatch", ExtractErrorMessage(wrapped))

	assert.ErrorIs(t, NewMalformedInputError("source", "bad row", nil), ErrMalformedInput)
	assert.ErrorIs(t, NewLeaseHeldError("lease", "held", nil), ErrLeaseHeld)
}

func TestClassificationOfPlainErrors(t *testing.T) {
	assert.False(t, IsTemporary(nil))
	assert.False(t, IsFatal(nil))
	assert.True(t, IsTemporary(errors.New("i/o timeout")))
	assert.True(t, IsFatal(errors.New("permission denied")))
	assert.Equal(t, CategoryTransient, CategoryOf(errors.New("boom")))
	assert.Equal(t, "", ExtractErrorMessage(nil))
}
