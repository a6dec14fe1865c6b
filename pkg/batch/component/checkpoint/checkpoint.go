// Package checkpoint persists the "next batch to process" marker of a dataset.
//
// Every write is a compare-and-set on the checkpoint version, so a writer that
// lost track of the stored value fails with exception.ErrOptimisticLockingFailure
// instead of moving the checkpoint backwards.
package checkpoint

import (
	"context"
	"fmt"

	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

const moduleName = "checkpoint"

// Store reads and advances the checkpoint of one dataset.
type Store interface {
	// Peek returns the stored checkpoint without consuming it. ok is false when none exists.
	Peek(ctx context.Context) (cp model.Checkpoint, ok bool, err error)
	// Advance replaces expected with a checkpoint pointing at nextBatch.
	// It fails with exception.ErrOptimisticLockingFailure when the stored version is not expected.Version.
	Advance(ctx context.Context, expected model.Checkpoint, nextBatch int64) (model.Checkpoint, error)
	// Dataset returns the dataset the store is bound to.
	Dataset() string
}

// Force sets the checkpoint of s to batchNumber regardless of its current value.
// It is the operator path for rewinding or skipping ahead; concurrent writers still
// lose through the version check.
func Force(ctx context.Context, s Store, batchNumber int64) (model.Checkpoint, error) {
	if batchNumber < 1 {
		return model.Checkpoint{}, exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil,
			"batch number must be >= 1, got %d", batchNumber)
	}
	current, ok, err := s.Peek(ctx)
	if err != nil {
		return model.Checkpoint{}, err
	}
	if !ok {
		current = model.ColdStart(s.Dataset())
	}
	return s.Advance(ctx, current, batchNumber)
}

// Current returns the stored checkpoint or the cold start checkpoint when none exists.
func Current(ctx context.Context, s Store) (model.Checkpoint, error) {
	cp, ok, err := s.Peek(ctx)
	if err != nil {
		return model.Checkpoint{}, err
	}
	if !ok {
		return model.ColdStart(s.Dataset()), nil
	}
	return cp, nil
}

func conflict(dataset string, expected model.Checkpoint, cause error) error {
	return exception.NewOptimisticLockingFailureException(moduleName,
		fmt.Sprintf("checkpoint of dataset '%s' changed since version %d was read", dataset, expected.Version), cause)
}

func validateAdvance(expected model.Checkpoint, nextBatch int64) error {
	if nextBatch < 1 {
		return exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil,
			"batch number must be >= 1, got %d", nextBatch)
	}
	if expected.Version < 0 {
		return exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil,
			"invalid checkpoint version %d", expected.Version)
	}
	return nil
}
