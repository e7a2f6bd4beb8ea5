package queue

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LocalOptions configures a LocalDispatcher.
type LocalOptions struct {
	Size        int
	Workers     int
	MaxAttempts int
	Backoff     time.Duration
	JobTimeout  time.Duration
}

func (o *LocalOptions) withDefaults() {
	if o.Size <= 0 {
		o.Size = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff <= 0 {
		o.Backoff = 500 * time.Millisecond
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 30 * time.Second
	}
}

// LocalDispatcher runs jobs on a fixed pool of goroutines fed by a bounded
// channel.
type LocalDispatcher struct {
	opts    LocalOptions
	handler Handler
	log     logrus.FieldLogger

	jobs   chan Job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewLocalDispatcher starts the worker pool.
func NewLocalDispatcher(opts LocalOptions, handler Handler, log logrus.FieldLogger) *LocalDispatcher {
	opts.withDefaults()

	d := &LocalDispatcher{
		opts:    opts,
		handler: handler,
		log:     log,
		jobs:    make(chan Job, opts.Size),
	}

	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}

	return d
}

// Enqueue adds a job without blocking. It fails with ErrQueueFull when
// every slot is taken.
func (d *LocalDispatcher) Enqueue(ctx context.Context, job Job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return ErrClosed
	}

	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *LocalDispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *LocalDispatcher) work() {
	defer d.wg.Done()

	for job := range d.jobs {
		d.run(job)
	}
}

func (d *LocalDispatcher) run(job Job) {
	entry := d.log.WithField("job_id", job.ID)

	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.JobTimeout)
		err := d.handler(ctx, job)
		cancel()

		if err == nil {
			return
		}

		entry.WithError(err).WithField("attempt", attempt).Warn("reconcile job failed")
		if attempt < d.opts.MaxAttempts {
			time.Sleep(d.opts.Backoff * time.Duration(attempt))
		}
	}

	entry.WithField("attempts", d.opts.MaxAttempts).Error("reconcile job dropped")
}

var _ Dispatcher = (*LocalDispatcher)(nil)
