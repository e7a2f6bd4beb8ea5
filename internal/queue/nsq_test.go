package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matatu/internal/logger"
)

func newMessage(t *testing.T, job Job, attempts uint16) *nsq.Message {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)

	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	m := nsq.NewMessage(id, body)
	m.Attempts = attempts
	return m
}

func TestNSQWorker_HandleMessage(t *testing.T) {
	var got Job
	w := newNSQWorker(NSQWorkerConfig{MaxAttempts: 3}, func(ctx context.Context, job Job) error {
		got = job
		return nil
	}, logger.Discard())

	payload := []byte(`{"status":"Success"}`)
	err := w.HandleMessage(newMessage(t, Job{ID: "job-1", Payload: payload}, 1))

	require.NoError(t, err)
	assert.Equal(t, "job-1", got.ID)
	assert.JSONEq(t, string(payload), string(got.Payload))
}

func TestNSQWorker_HandleMessage_RequeuesUntilMaxAttempts(t *testing.T) {
	failure := errors.New("connection refused")
	w := newNSQWorker(NSQWorkerConfig{MaxAttempts: 3}, func(ctx context.Context, job Job) error {
		return failure
	}, logger.Discard())

	assert.ErrorIs(t, w.HandleMessage(newMessage(t, Job{ID: "j"}, 1)), failure)
	assert.NoError(t, w.HandleMessage(newMessage(t, Job{ID: "j"}, 3)))
}

func TestNSQWorker_HandleMessage_DropsUndecodableBody(t *testing.T) {
	called := false
	w := newNSQWorker(NSQWorkerConfig{}, func(ctx context.Context, job Job) error {
		called = true
		return nil
	}, logger.Discard())

	var id nsq.MessageID
	err := w.HandleMessage(nsq.NewMessage(id, []byte("not json")))

	assert.NoError(t, err)
	assert.False(t, called)
}
