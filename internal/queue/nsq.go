package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/sirupsen/logrus"
)

// NSQDispatcher publishes jobs to an NSQ topic.
type NSQDispatcher struct {
	producer *nsq.Producer
	topic    string
}

// NewNSQDispatcher connects a producer to nsqd and verifies it answers.
func NewNSQDispatcher(addr, topic string, log logrus.FieldLogger) (*NSQDispatcher, error) {
	producer, err := nsq.NewProducer(addr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ producer: %w", err)
	}
	producer.SetLogger(nsqLogger{log}, nsq.LogLevelWarning)

	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("failed to ping nsqd: %w", err)
	}

	return &NSQDispatcher{producer: producer, topic: topic}, nil
}

// Enqueue publishes the job as JSON.
func (d *NSQDispatcher) Enqueue(ctx context.Context, job Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	if err := d.producer.Publish(d.topic, body); err != nil {
		return fmt.Errorf("failed to publish job: %w", err)
	}

	return nil
}

// Stop gracefully stops the producer.
func (d *NSQDispatcher) Stop() {
	d.producer.Stop()
}

// NSQWorkerConfig configures an NSQWorker.
type NSQWorkerConfig struct {
	Addr        string
	Topic       string
	Channel     string
	MaxAttempts int
	Concurrency int
	JobTimeout  time.Duration
}

// NSQWorker consumes jobs from an NSQ topic. Handler errors requeue the
// message until MaxAttempts is reached.
type NSQWorker struct {
	consumer    *nsq.Consumer
	handler     Handler
	log         logrus.FieldLogger
	maxAttempts uint16
	timeout     time.Duration
}

// NewNSQWorker creates a consumer and connects it to nsqd.
func NewNSQWorker(cfg NSQWorkerConfig, handler Handler, log logrus.FieldLogger) (*NSQWorker, error) {
	w := newNSQWorker(cfg, handler, log)

	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxAttempts = w.maxAttempts
	if cfg.Concurrency > 0 {
		nsqCfg.MaxInFlight = cfg.Concurrency
	}

	consumer, err := nsq.NewConsumer(cfg.Topic, cfg.Channel, nsqCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ consumer: %w", err)
	}
	consumer.SetLogger(nsqLogger{log}, nsq.LogLevelWarning)

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	consumer.AddConcurrentHandlers(w, concurrency)

	if err := consumer.ConnectToNSQD(cfg.Addr); err != nil {
		return nil, fmt.Errorf("failed to connect to nsqd: %w", err)
	}

	w.consumer = consumer
	return w, nil
}

func newNSQWorker(cfg NSQWorkerConfig, handler Handler, log logrus.FieldLogger) *NSQWorker {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &NSQWorker{
		handler:     handler,
		log:         log,
		maxAttempts: uint16(maxAttempts),
		timeout:     timeout,
	}
}

// HandleMessage implements nsq.Handler. Returning an error requeues.
func (w *NSQWorker) HandleMessage(m *nsq.Message) error {
	var job Job
	if err := json.Unmarshal(m.Body, &job); err != nil {
		w.log.WithError(err).Error("dropping undecodable reconcile job")
		return nil
	}

	entry := w.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"attempts": m.Attempts,
	})

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if err := w.handler(ctx, job); err != nil {
		if m.Attempts >= w.maxAttempts {
			entry.WithError(err).Error("reconcile job dropped")
			return nil
		}
		entry.WithError(err).Warn("reconcile job failed, requeueing")
		return err
	}

	return nil
}

// Stop stops the consumer and waits for in-flight messages.
func (w *NSQWorker) Stop() {
	if w.consumer == nil {
		return
	}
	w.consumer.Stop()
	<-w.consumer.StopChan
}

// nsqLogger adapts logrus to the go-nsq logger interface.
type nsqLogger struct {
	log logrus.FieldLogger
}

func (l nsqLogger) Output(_ int, s string) error {
	l.log.WithField("component", "nsq").Info(s)
	return nil
}

var _ Dispatcher = (*NSQDispatcher)(nil)
