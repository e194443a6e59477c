// Package queue implements the Job Queue Interface: a durable,
// at-least-once, per-project-FIFO queue carrying AnalysisJob envelopes,
// with a visibility timeout so a dead worker's jobs return to the pool.
package queue

import (
	"context"
	"time"
)

// Message is one dequeued AnalysisJob envelope. Payload is the
// json.Marshal'd AnalysisJob; the worker unmarshals it after Dequeue
// returns. DeliveryCount lets the worker detect (and log) redelivery
// caused by a prior visibility-timeout expiry.
type Message struct {
	ID            string
	ProjectID     string
	Payload       []byte
	DeliveryCount int
	EnqueuedAt    time.Time
}

// Queue carries AnalysisJob envelopes. Dequeue returns (nil, nil) when no
// message is currently visible; callers poll with a short sleep between
// empty polls rather than block.
type Queue interface {
	// Enqueue appends a new message for projectID, returning its id.
	Enqueue(ctx context.Context, projectID string, payload []byte) (string, error)

	// Dequeue claims the oldest visible message across all projects
	// (earliest enqueued_at wins among eligible messages, preserving
	// per-project order since a project's messages are claimed in the
	// order they were appended), locking it for visibilityTimeout.
	Dequeue(ctx context.Context, visibilityTimeout time.Duration) (*Message, error)

	// Ack permanently removes a successfully processed message.
	Ack(ctx context.Context, id string) error

	// Release makes a message immediately visible again (e.g. after a
	// transient worker error), incrementing its delivery count on the
	// next claim rather than on Release itself.
	Release(ctx context.Context, id string) error

	Close() error
}
