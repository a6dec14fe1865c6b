// Package queue defines the message publishing abstraction range messages go through.
package queue

import "context"

// Publisher appends one message to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queueName string, payload []byte) error
}
