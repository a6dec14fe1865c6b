// Package orchestrator drives the per-batch cycle of a loader run:
// read a batch, load it, emit its ranges, advance the checkpoint.
//
// The order LOAD → EMIT → ADVANCE is what makes a run resumable. A crash after
// LOADING leaves the checkpoint at the unfinished batch, so the next run loads and
// emits it again instead of skipping it.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/blobtosql/pkg/batch/component/checkpoint"
	"github.com/tigerroll/blobtosql/pkg/batch/component/emitter"
	"github.com/tigerroll/blobtosql/pkg/batch/component/lease"
	"github.com/tigerroll/blobtosql/pkg/batch/component/loader"
	"github.com/tigerroll/blobtosql/pkg/batch/component/source"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/core/metrics"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

const moduleName = "orchestrator"

// Dependencies are the collaborators a run drives.
type Dependencies struct {
	Source  source.RecordSource
	Store   checkpoint.Store
	Loader  loader.BulkLoader
	Emitter emitter.Emitter
	// Lease guards the dataset for the duration of the run. Nil means no lease.
	Lease lease.Lease
	// Recorder and Tracer default to no-ops.
	Recorder metrics.MetricRecorder
	Tracer   metrics.Tracer
}

// Options configures a run.
type Options struct {
	Dataset string
	// BatchSize is B, the number of records per batch.
	BatchSize int64
	// MaxBatchNumber is the last batch a run processes. 0 means until the stream ends.
	MaxBatchNumber int64
	// LeaseRenewInterval is how often the lease is renewed. 0 disables renewal.
	LeaseRenewInterval time.Duration
	// LeaseTTL bounds how long a failing renewal is retried. 0 means no retry.
	LeaseTTL time.Duration
}

// Orchestrator runs one dataset.
type Orchestrator struct {
	deps Dependencies
	opts Options
}

// New creates an Orchestrator.
func New(deps Dependencies, opts Options) (*Orchestrator, error) {
	if deps.Source == nil || deps.Store == nil || deps.Loader == nil || deps.Emitter == nil {
		return nil, exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil,
			"source, checkpoint store, loader and emitter are required")
	}
	if opts.BatchSize < 1 {
		return nil, exception.NewBatchErrorf(moduleName, exception.CategoryConfig, nil,
			"batch size must be >= 1, got %d", opts.BatchSize)
	}
	if deps.Lease == nil {
		deps.Lease = lease.NoopLease{}
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NewNoOpMetricRecorder()
	}
	if deps.Tracer == nil {
		deps.Tracer = metrics.NewNoOpTracer()
	}
	if opts.Dataset == "" {
		opts.Dataset = deps.Store.Dataset()
	}
	return &Orchestrator{deps: deps, opts: opts}, nil
}

// run carries the mutable state of one Run call.
type run struct {
	*Orchestrator
	result model.RunResult
	state  model.RunState
	cp     model.Checkpoint
}

// Run executes the state machine until the stream or the ceiling is exhausted, or a
// stage fails. The returned result is populated in both cases.
func (o *Orchestrator) Run(ctx context.Context) (model.RunResult, error) {
	r := &run{
		Orchestrator: o,
		state:        model.StateInit,
		result: model.RunResult{
			RunID:     uuid.NewString(),
			Dataset:   o.opts.Dataset,
			StartTime: time.Now(),
		},
	}

	ctx, endSpan := o.deps.Tracer.StartRunSpan(ctx, r.result.RunID, r.result.Dataset)
	defer endSpan()

	err := r.execute(ctx)
	r.result.EndTime = time.Now()
	if err != nil {
		r.result.FinalState = model.StateFailed
	} else {
		r.result.FinalState = model.StateDone
	}
	o.deps.Recorder.RecordRunEnd(ctx, r.result)

	logger.Infof("Run %s of dataset '%s' finished %s: %d batches, %d records, %d ranges in %s (next batch %d).",
		r.result.RunID, r.result.Dataset, r.result.FinalState, r.result.Batches, r.result.Records,
		r.result.RangesEmitted, r.result.Duration().Round(time.Millisecond), r.result.NextBatch)
	return r.result, err
}

func (r *run) execute(ctx context.Context) error {
	if err := r.deps.Lease.Acquire(ctx); err != nil {
		return r.fail(ctx, err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := r.deps.Lease.Release(releaseCtx); err != nil {
			logger.Warnf("Failed to release lease of dataset '%s': %v", r.result.Dataset, err)
		}
	}()

	runCtx := ctx
	if r.opts.LeaseRenewInterval > 0 {
		var stop func()
		runCtx, stop = lease.KeepAlive(ctx, r.deps.Lease, r.opts.LeaseRenewInterval, r.opts.LeaseTTL)
		defer stop()
	}

	if err := r.init(runCtx); err != nil {
		return r.fail(runCtx, err)
	}
	if r.pastCeiling(r.cp.BatchNumber) {
		logger.Infof("Checkpoint of dataset '%s' is at batch %d, beyond the ceiling %d; nothing to do.",
			r.result.Dataset, r.cp.BatchNumber, r.opts.MaxBatchNumber)
		r.transition(model.StateDone)
		return nil
	}
	if err := r.skip(runCtx); err != nil {
		return r.fail(runCtx, err)
	}

	for {
		if err := interrupted(runCtx); err != nil {
			return r.fail(runCtx, err)
		}
		more, err := r.cycle(runCtx)
		if err != nil {
			return r.fail(runCtx, err)
		}
		if !more || r.pastCeiling(r.cp.BatchNumber) {
			r.transition(model.StateDone)
			return nil
		}
	}
}

// init reads the checkpoint once; an absent checkpoint is a cold start at batch 1.
func (r *run) init(ctx context.Context) error {
	cp, err := checkpoint.Current(ctx, r.deps.Store)
	if err != nil {
		return err
	}
	r.cp = cp
	r.result.FirstBatch = cp.BatchNumber
	r.result.NextBatch = cp.BatchNumber
	r.deps.Recorder.RecordRunStart(ctx, r.result.Dataset, cp.BatchNumber)
	logger.Debugf("Run %s options: %s", r.result.RunID, r.opts)
	logger.Infof("Run %s of dataset '%s' starts at batch %d (checkpoint version %d).",
		r.result.RunID, r.result.Dataset, cp.BatchNumber, cp.Version)
	return nil
}

// skip eagerly moves the cursor past the batches already processed.
func (r *run) skip(ctx context.Context) error {
	n := (r.cp.BatchNumber - 1) * r.opts.BatchSize
	if n == 0 {
		return nil
	}
	started := time.Now()
	if err := r.deps.Source.Skip(ctx, n); err != nil {
		return err
	}
	logger.Infof("Skipped %d records of completed batches in %s.", n, time.Since(started).Round(time.Millisecond))
	return nil
}

// cycle processes the batch the checkpoint points at. more is false once the stream is exhausted.
func (r *run) cycle(ctx context.Context) (more bool, err error) {
	k := r.cp.BatchNumber
	started := time.Now()

	var records []model.Person
	if err := r.stage(ctx, model.StateReadBatch, k, func(ctx context.Context) error {
		var err error
		records, err = r.deps.Source.Take(ctx, int(r.opts.BatchSize))
		return err
	}); err != nil {
		return false, err
	}
	if len(records) == 0 {
		logger.Debugf("Stream of dataset '%s' is exhausted at batch %d.", r.result.Dataset, k)
		return false, nil
	}
	read := time.Since(started)

	batch := model.Batch{Number: k, Offset: (k - 1) * r.opts.BatchSize, Records: records}
	if err := r.stage(ctx, model.StateLoading, k, func(ctx context.Context) error {
		_, err := r.deps.Loader.Load(ctx, batch)
		return err
	}); err != nil {
		return false, err
	}
	loaded := time.Since(started) - read

	if err := interrupted(ctx); err != nil {
		return false, err
	}
	var emitted int
	if err := r.stage(ctx, model.StateEmitting, k, func(ctx context.Context) error {
		var err error
		emitted, err = r.deps.Emitter.Emit(ctx, k, batch.Len())
		r.result.RangesEmitted += emitted
		return err
	}); err != nil {
		return false, err
	}
	r.deps.Recorder.RecordRangesEmitted(ctx, r.result.Dataset, emitted)

	if err := interrupted(ctx); err != nil {
		return false, err
	}
	if err := r.stage(ctx, model.StateAdvancing, k, func(ctx context.Context) error {
		next, err := r.deps.Store.Advance(ctx, r.cp, k+1)
		if err != nil {
			return err
		}
		r.cp = next
		return nil
	}); err != nil {
		return false, err
	}

	elapsed := time.Since(started)
	r.result.Batches++
	r.result.Records += int64(batch.Len())
	r.result.NextBatch = r.cp.BatchNumber
	r.deps.Recorder.RecordBatch(ctx, r.result.Dataset, k, batch.Len(), elapsed)
	logger.Infof("Batch %d: read %d records in %s, loaded in %s (%.0f rows/s), %d ranges emitted.",
		k, batch.Len(), read.Round(time.Millisecond), loaded.Round(time.Millisecond),
		rowsPerSecond(batch.Len(), loaded), emitted)

	return int64(batch.Len()) == r.opts.BatchSize, nil
}

// stage runs fn inside a span for state and records its duration.
func (r *run) stage(ctx context.Context, state model.RunState, batchNumber int64, fn func(context.Context) error) error {
	r.transition(state)
	spanCtx, end := r.deps.Tracer.StartStageSpan(ctx, state, batchNumber)
	defer end()

	started := time.Now()
	err := fn(spanCtx)
	r.deps.Recorder.RecordDuration(spanCtx, "stage", time.Since(started), map[string]string{"stage": string(state)})
	if err != nil {
		r.deps.Tracer.RecordError(spanCtx, moduleName, err)
	}
	return err
}

func (r *run) transition(next model.RunState) {
	logger.Debugf("Dataset '%s': %s -> %s (batch %d)", r.result.Dataset, r.state, next, r.cp.BatchNumber)
	r.state = next
}

func (r *run) fail(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(err, cause) && exception.IsBatchError(cause) {
		// The lease keep-alive cancelled the run.
		err = errors.Join(cause, err)
	}
	stage := r.state
	r.transition(model.StateFailed)
	category := exception.CategoryOf(err)
	r.deps.Recorder.RecordFailure(ctx, r.result.Dataset, stage, string(category))
	r.deps.Tracer.RecordError(ctx, moduleName, err)
	logger.Errorf("Run %s of dataset '%s' failed in %s at batch %d (%s): %v",
		r.result.RunID, r.result.Dataset, stage, r.cp.BatchNumber, category, err)
	return err
}

func (r *run) pastCeiling(batchNumber int64) bool {
	return r.opts.MaxBatchNumber > 0 && batchNumber > r.opts.MaxBatchNumber
}

// interrupted returns an error once ctx is done: the cancellation cause when it is a
// BatchError (a lost lease), a transient error otherwise.
func interrupted(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if exception.IsBatchError(cause) {
		return cause
	}
	return exception.NewBatchError(moduleName, "run interrupted", cause, exception.CategoryTransient)
}

func rowsPerSecond(rows int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(rows) / d.Seconds()
}

// String describes the ceiling for log lines.
func (o Options) String() string {
	ceiling := "none"
	if o.MaxBatchNumber > 0 {
		ceiling = fmt.Sprint(o.MaxBatchNumber)
	}
	return fmt.Sprintf("dataset=%s batch_size=%d max_batch_number=%s", o.Dataset, o.BatchSize, ceiling)
}
