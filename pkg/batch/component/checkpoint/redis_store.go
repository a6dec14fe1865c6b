package checkpoint

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-redis/redis"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/redisclient"
	"github.com/tigerroll/blobtosql/pkg/batch/core/domain/model"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/exception"
	"github.com/tigerroll/blobtosql/pkg/batch/support/util/logger"
)

// Hash fields of a stored checkpoint. message carries the {"BatchNumber": n} wire form.
const (
	fieldVersion     = "version"
	fieldBatchNumber = "batch_number"
	fieldMessage     = "message"
	fieldUpdatedAt   = "updated_at"
)

// ARGV: expected version, new version, batch number, message, updated at.
var advanceScript = redis.NewScript(`
local v = redis.call('HGET', KEYS[1], 'version')
if (v == false and ARGV[1] == '0') or v == ARGV[1] then
  redis.call('HMSET', KEYS[1], 'version', ARGV[2], 'batch_number', ARGV[3], 'message', ARGV[4], 'updated_at', ARGV[5])
  return 1
end
return 0
`)

// RedisStore keeps a checkpoint as a redis hash.
type RedisStore struct {
	db      redis.UniversalClient
	key     string
	dataset string
	now     func() time.Time
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store for dataset under <prefix>:checkpoint:<dataset>.
func NewRedisStore(db redis.UniversalClient, prefix, dataset string) *RedisStore {
	return &RedisStore{
		db:      db,
		key:     redisclient.Key(prefix, "checkpoint", dataset),
		dataset: dataset,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Key returns the hash key of the checkpoint.
func (s *RedisStore) Key() string {
	return s.key
}

// Dataset implements Store.
func (s *RedisStore) Dataset() string {
	return s.dataset
}

// Peek implements Store.
func (s *RedisStore) Peek(ctx context.Context) (model.Checkpoint, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Checkpoint{}, false, err
	}
	fields, err := s.db.HGetAll(s.key).Result()
	if err != nil {
		return model.Checkpoint{}, false, exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err,
			"failed to read checkpoint '%s'", s.key)
	}
	if len(fields) == 0 {
		return model.Checkpoint{}, false, nil
	}

	cp := model.Checkpoint{Dataset: s.dataset}
	if cp.Version, err = strconv.ParseInt(fields[fieldVersion], 10, 64); err != nil {
		return model.Checkpoint{}, false, s.corrupt(fieldVersion, err)
	}
	if raw, ok := fields[fieldMessage]; ok && raw != "" {
		var msg model.CheckpointMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return model.Checkpoint{}, false, s.corrupt(fieldMessage, err)
		}
		cp.BatchNumber = msg.BatchNumber
	} else if cp.BatchNumber, err = strconv.ParseInt(fields[fieldBatchNumber], 10, 64); err != nil {
		return model.Checkpoint{}, false, s.corrupt(fieldBatchNumber, err)
	}
	if raw := fields[fieldUpdatedAt]; raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			cp.UpdatedAt = t
		}
	}
	return cp, true, nil
}

// Advance implements Store.
func (s *RedisStore) Advance(ctx context.Context, expected model.Checkpoint, nextBatch int64) (model.Checkpoint, error) {
	if err := validateAdvance(expected, nextBatch); err != nil {
		return model.Checkpoint{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.Checkpoint{}, err
	}
	next := model.Checkpoint{
		Dataset:     s.dataset,
		BatchNumber: nextBatch,
		Version:     expected.Version + 1,
		UpdatedAt:   s.now(),
	}
	msg, err := json.Marshal(next.Message())
	if err != nil {
		return model.Checkpoint{}, exception.NewBatchError(moduleName, "failed to encode checkpoint message", err, exception.CategoryMalformedInput)
	}

	swapped, err := advanceScript.Run(s.db, []string{s.key},
		strconv.FormatInt(expected.Version, 10),
		strconv.FormatInt(next.Version, 10),
		strconv.FormatInt(next.BatchNumber, 10),
		string(msg),
		next.UpdatedAt.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return model.Checkpoint{}, exception.NewBatchErrorf(moduleName, exception.CategoryTransient, err,
			"failed to advance checkpoint '%s'", s.key)
	}
	if swapped == 0 {
		return model.Checkpoint{}, conflict(s.dataset, expected, nil)
	}

	logger.Debugf("Checkpoint '%s' advanced to batch %d (version %d).", s.key, next.BatchNumber, next.Version)
	return next, nil
}

func (s *RedisStore) corrupt(field string, err error) error {
	return exception.NewMalformedInputError(moduleName, "checkpoint '"+s.key+"' has an unreadable "+field+" field", err)
}
