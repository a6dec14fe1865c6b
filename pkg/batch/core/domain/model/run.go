package model

import (
	"path"
	"strings"
	"time"
)

// RunResult summarizes one orchestrator run.
type RunResult struct {
	RunID   string
	Dataset string
	// FirstBatch is the batch number the run started at (the checkpoint read in INIT).
	FirstBatch int64
	// NextBatch is the checkpoint value when the run ended.
	NextBatch     int64
	Batches       int
	Records       int64
	RangesEmitted int
	FinalState    RunState
	StartTime     time.Time
	EndTime       time.Time
}

// Duration returns the wall time of the run.
func (r RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// DatasetFromArchive derives the dataset identity from an archive object name:
// "datasets/people.zip" and "people.zip" both yield "people".
func DatasetFromArchive(archive string) string {
	base := path.Base(strings.ReplaceAll(archive, "\\", "/"))
	if ext := path.Ext(base); strings.EqualFold(ext, ".zip") {
		base = base[:len(base)-len(ext)]
	}
	if base == "." || base == "/" {
		return ""
	}
	return base
}

// RunRecord is a RunResult as kept in the run history.
type RunRecord struct {
	RunResult
	// Failure is the error message of a FAILED run.
	Failure string
}
