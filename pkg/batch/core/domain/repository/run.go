// Package repository defines the persistence ports of run metadata.
package repository

import (
	"context"

	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
)

// RunRepository stores the outcome of every orchestrator run.
type RunRepository interface {
	// SaveRun persists a finished run. Saving the same RunID twice fails.
	SaveRun(ctx context.Context, run model.RunRecord) error

	// FindRuns returns up to limit runs of dataset, most recent first. limit <= 0 means all.
	FindRuns(ctx context.Context, dataset string, limit int) ([]model.RunRecord, error)
}
