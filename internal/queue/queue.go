// Package queue hands payment callbacks from the HTTP boundary to the
// reconciler, either in-process or through NSQ.
package queue

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrQueueFull is returned when the in-process queue has no free slot.
	ErrQueueFull = errors.New("queue full")

	// ErrClosed is returned when enqueuing after Close.
	ErrClosed = errors.New("queue closed")
)

// Job is one received provider callback awaiting reconciliation.
type Job struct {
	ID         string    `json:"id"`
	Payload    []byte    `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// Handler processes a job. A non-nil error marks the job for retry.
type Handler func(ctx context.Context, job Job) error

// Dispatcher accepts jobs for asynchronous processing.
type Dispatcher interface {
	Enqueue(ctx context.Context, job Job) error
}
