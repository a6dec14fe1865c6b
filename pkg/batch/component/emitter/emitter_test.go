package emitter_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/go-redis/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/queue/redisqueue"
	"github.com/tigerroll/blobtosql/pkg/batch/component/emitter"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, queueName string, payload []byte) error {
	args := m.Called(ctx, queueName, string(payload))
	return args.Error(0)
}

func TestComputeRangesFullBatch(t *testing.T) {
	first := emitter.ComputeRanges(1, 100000, 100000, 10000)
	require.Len(t, first, 10)
	assert.Equal(t, model.Range{StartRange: 1, EndRange: 10000}, first[0])
	assert.Equal(t, model.Range{StartRange: 10001, EndRange: 20000}, first[1])
	assert.Equal(t, model.Range{StartRange: 90001, EndRange: 100000}, first[9])

	second := emitter.ComputeRanges(2, 100000, 100000, 10000)
	require.Len(t, second, 10)
	assert.Equal(t, model.Range{StartRange: 100001, EndRange: 110000}, second[0])
	assert.Equal(t, model.Range{StartRange: 190001, EndRange: 200000}, second[9])
}

func TestComputeRangesPartitionsTheBatch(t *testing.T) {
	cases := []struct {
		name                        string
		batch, size, records, width int64
		wantRanges                  int
		wantFirst, wantLast         int64
	}{
		{name: "short final batch", batch: 3, size: 100000, records: 50000, width: 10000, wantRanges: 5, wantFirst: 200001, wantLast: 250000},
		{name: "width does not divide", batch: 1, size: 10, records: 10, width: 3, wantRanges: 4, wantFirst: 1, wantLast: 10},
		{name: "records clipped to batch size", batch: 2, size: 10, records: 99, width: 5, wantRanges: 2, wantFirst: 11, wantLast: 20},
		{name: "single row", batch: 7, size: 4, records: 1, width: 4, wantRanges: 1, wantFirst: 25, wantLast: 25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ranges := emitter.ComputeRanges(tc.batch, tc.size, tc.records, tc.width)
			require.Len(t, ranges, tc.wantRanges)
			assert.Equal(t, tc.wantFirst, ranges[0].StartRange)
			assert.Equal(t, tc.wantLast, ranges[len(ranges)-1].EndRange)

			var covered int64
			for i, r := range ranges {
				assert.LessOrEqual(t, r.Len(), tc.width)
				if i > 0 {
					assert.Equal(t, ranges[i-1].EndRange+1, r.StartRange, "ranges must be contiguous")
				}
				covered += r.Len()
			}
			assert.Equal(t, tc.wantLast-tc.wantFirst+1, covered)
		})
	}
}

func TestComputeRangesIsDeterministic(t *testing.T) {
	assert.Equal(t, emitter.ComputeRanges(5, 1000, 1000, 100), emitter.ComputeRanges(5, 1000, 1000, 100))
	assert.Empty(t, emitter.ComputeRanges(1, 1000, 0, 100))
	assert.Empty(t, emitter.ComputeRanges(0, 1000, 10, 100))
}

func TestRangeEmitterPublishesInOrder(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	pub.On("Publish", ctx, "sqltostorage", `{"StartRange":101,"EndRange":150}`).Return(nil).Once()
	pub.On("Publish", ctx, "sqltostorage", `{"StartRange":151,"EndRange":200}`).Return(nil).Once()

	n, err := emitter.NewRangeEmitter(pub, "sqltostorage", 100, 50).Emit(ctx, 2, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	pub.AssertExpectations(t)
}

func TestRangeEmitterStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	pub := new(MockPublisher)
	pub.On("Publish", ctx, "sqltostorage", `{"StartRange":1,"EndRange":10}`).Return(nil).Once()
	pub.On("Publish", ctx, "sqltostorage", `{"StartRange":11,"EndRange":20}`).Return(errors.New("broken pipe")).Once()

	n, err := emitter.NewRangeEmitter(pub, "sqltostorage", 30, 10).Emit(ctx, 1, 30)
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, exception.IsTemporary(err))
	pub.AssertNotCalled(t, "Publish", ctx, "sqltostorage", `{"StartRange":21,"EndRange":30}`)
}

func TestRangeEmitterOnRedisQueue(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	q := redisqueue.NewQueue(client, "blobtosql")
	e := emitter.NewRangeEmitter(q, "sqltostorage", 100000, 10000)

	// A re-emitted batch republishes its full set.
	for i := 0; i < 2; i++ {
		n, err := e.Emit(context.Background(), 3, 50000)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	}

	items, err := s.List(q.ListKey("sqltostorage"))
	require.NoError(t, err)
	require.Len(t, items, 10)

	var r model.Range
	require.NoError(t, json.Unmarshal([]byte(items[4]), &r))
	assert.Equal(t, model.Range{StartRange: 240001, EndRange: 250000}, r)
	assert.Equal(t, items[0], items[5])
}
