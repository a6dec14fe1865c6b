package sql

import (
	model "github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
)

// --- Mapper functions ---

func fromDomainRun(r model.RunRecord) *RunEntity {
	return &RunEntity{
		RunID:         r.RunID,
		Dataset:       r.Dataset,
		FirstBatch:    r.FirstBatch,
		NextBatch:     r.NextBatch,
		Batches:       r.Batches,
		Records:       r.Records,
		RangesEmitted: r.RangesEmitted,
		FinalState:    string(r.FinalState),
		Failure:       r.Failure,
		StartTime:     r.StartTime.UTC(),
		EndTime:       r.EndTime.UTC(),
	}
}

func toDomainRun(e RunEntity) model.RunRecord {
	return model.RunRecord{
		RunResult: model.RunResult{
			RunID:         e.RunID,
			Dataset:       e.Dataset,
			FirstBatch:    e.FirstBatch,
			NextBatch:     e.NextBatch,
			Batches:       e.Batches,
			Records:       e.Records,
			RangesEmitted: e.RangesEmitted,
			FinalState:    model.RunState(e.FinalState),
			StartTime:     e.StartTime,
			EndTime:       e.EndTime,
		},
		Failure: e.Failure,
	}
}
