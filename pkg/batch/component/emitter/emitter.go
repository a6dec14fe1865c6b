// Package emitter fans a completed batch out into row-range work items for the downstream stage.
package emitter

import (
	"context"
	"encoding/json"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/queue"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

const moduleName = "emitter"

// ComputeRanges partitions the rows of batch batchNumber into consecutive ranges of width rangeWidth.
// The batch covers absolute rows [(batchNumber-1)*batchSize+1, (batchNumber-1)*batchSize+recordCount];
// recordCount is clipped to batchSize, and the last range ends at the last row actually loaded.
// The result depends on its arguments only.
func ComputeRanges(batchNumber, batchSize, recordCount, rangeWidth int64) []model.Range {
	if batchNumber < 1 || batchSize < 1 || rangeWidth < 1 || recordCount < 1 {
		return nil
	}
	if recordCount > batchSize {
		recordCount = batchSize
	}
	offset := (batchNumber - 1) * batchSize
	last := offset + recordCount

	ranges := make([]model.Range, 0, (recordCount+rangeWidth-1)/rangeWidth)
	for i := int64(1); i <= recordCount; i += rangeWidth {
		end := offset + i + rangeWidth - 1
		if end > last {
			end = last
		}
		ranges = append(ranges, model.Range{StartRange: offset + i, EndRange: end})
	}
	return ranges
}

// Emitter publishes the ranges of a completed batch.
type Emitter interface {
	// Emit publishes the ranges of batch batchNumber holding recordCount records and
	// returns how many were published. A failure partway leaves the earlier ranges published;
	// emitting the same batch again republishes the full set.
	Emit(ctx context.Context, batchNumber int64, recordCount int) (int, error)
}

// RangeEmitter publishes each range as one JSON message on a queue.
type RangeEmitter struct {
	publisher  queue.Publisher
	queueName  string
	batchSize  int64
	rangeWidth int64
}

var _ Emitter = (*RangeEmitter)(nil)

// NewRangeEmitter creates an emitter publishing to queueName.
func NewRangeEmitter(publisher queue.Publisher, queueName string, batchSize, rangeWidth int) *RangeEmitter {
	return &RangeEmitter{
		publisher:  publisher,
		queueName:  queueName,
		batchSize:  int64(batchSize),
		rangeWidth: int64(rangeWidth),
	}
}

// Emit implements Emitter.
func (e *RangeEmitter) Emit(ctx context.Context, batchNumber int64, recordCount int) (int, error) {
	ranges := ComputeRanges(batchNumber, e.batchSize, int64(recordCount), e.rangeWidth)
	for i, r := range ranges {
		payload, err := json.Marshal(r)
		if err != nil {
			return i, exception.NewBatchError(moduleName, "failed to encode range message", err, exception.CategoryMalformedInput)
		}
		if err := e.publisher.Publish(ctx, e.queueName, payload); err != nil {
			return i, exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err,
				"failed to publish range [%d,%d] of batch %d (%d of %d published)", r.StartRange, r.EndRange, batchNumber, i, len(ranges))
		}
	}
	if len(ranges) > 0 {
		logger.Debugf("Emitted %d ranges [%d,%d] for batch %d to '%s'.",
			len(ranges), ranges[0].StartRange, ranges[len(ranges)-1].EndRange, batchNumber, e.queueName)
	}
	return len(ranges), nil
}
