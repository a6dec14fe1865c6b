// Package redisqueue implements queue.Publisher on redis lists.
// Each queue is the list <prefix>:queue:<name>; consumers pop from the left.
package redisqueue

import (
	"context"
	"fmt"

	"github.com/go-redis/redis"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/queue"
	"github.com/tigerroll/blobtosql/pkg/batch/adapter/redisclient"
	config "github.com/tigerroll/blobtosql/pkg/batch/core/config"
)

// Queue publishes messages with RPUSH.
type Queue struct {
	db     redis.UniversalClient
	prefix string
}

var _ queue.Publisher = (*Queue)(nil)

// NewQueue creates a Queue storing lists under prefix.
func NewQueue(db redis.UniversalClient, prefix string) *Queue {
	return &Queue{db: db, prefix: prefix}
}

// NewQueueFromConfig is the fx constructor.
func NewQueueFromConfig(db redis.UniversalClient, cfg *config.Config) *Queue {
	return NewQueue(db, cfg.Blobtosql.Redis.KeyPrefix)
}

// ListKey returns the redis key of the named queue.
func (q *Queue) ListKey(queueName string) string {
	return redisclient.Key(q.prefix, "queue", queueName)
}

// Publish implements queue.Publisher.
func (q *Queue) Publish(ctx context.Context, queueName string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := q.db.RPush(q.ListKey(queueName), payload).Err(); err != nil {
		return fmt.Errorf("[redisqueue.Publish] error writing to queue %q: %w", queueName, err)
	}
	return nil
}

// Len returns the number of messages waiting in the named queue.
func (q *Queue) Len(ctx context.Context, queueName string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := q.db.LLen(q.ListKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("[redisqueue.Len] error reading queue %q: %w", queueName, err)
	}
	return n, nil
}

// Peek returns up to n messages from the head of the named queue without removing them.
func (q *Queue) Peek(ctx context.Context, queueName string, n int64) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n <= 0 {
		return []string{}, nil
	}
	msgs, err := q.db.LRange(q.ListKey(queueName), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("[redisqueue.Peek] error reading queue %q: %w", queueName, err)
	}
	return msgs, nil
}
