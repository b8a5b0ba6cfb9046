package queue

import (
	"context"
	"time"
)

// MessageInterface abstracts a delivered message so workers can be tested
// against mock deliveries.
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	GetJob() *Job
}

// JobQueue is the contract between the API server (producer) and the tag
// statistics worker (consumer).
type JobQueue interface {
	// Enqueue publishes a job. Jobs with NotBefore set are delayed until
	// that time when the broker supports it.
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue pulls a single message, or nil when the queue is empty. The
	// caller must ack or nack the returned message.
	//
	// Deprecated: use Consume; polling adds latency and distributes load
	// poorly across workers.
	Dequeue(ctx context.Context) (*Message, error)

	// Consume delivers messages asynchronously until ctx is cancelled.
	// prefetchCount bounds the unacknowledged messages each consumer holds.
	// The caller must ack or nack every message it receives.
	Consume(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close releases the broker connection.
	Close() error

	// HealthCheck verifies the broker connection is usable.
	HealthCheck(ctx context.Context) error
}

// DLQPurger is implemented by queues that can discard dead-lettered
// messages past their retention window.
type DLQPurger interface {
	PurgeOlderThan(ctx context.Context, retention time.Duration) (int, error)
}
