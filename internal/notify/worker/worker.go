// Package worker drains the notification outbox into Kafka. Records are
// published in sequence order and marked processed only after the broker
// acknowledges delivery, which gives exactly-once publication per record.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"scorepass/internal/notify"
	"scorepass/internal/platform/kafka"
	"scorepass/internal/platform/kafka/producer"
)

// Producer is the slice of the Kafka producer the worker needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox and publishes records to Kafka.
type Worker struct {
	store        notify.Store
	producer     Producer
	topic        string
	batchSize    int
	pollInterval time.Duration
	logger       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures the Worker.
type Option func(*Worker)

// WithTopic sets the Kafka topic for publishing.
func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

// WithBatchSize sets the maximum number of records to fetch per poll.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		w.batchSize = size
	}
}

// WithPollInterval sets the interval between polls.
func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		w.pollInterval = interval
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// New creates a new outbox worker.
func New(store notify.Store, prod Producer, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        kafka.TopicNotifications,
		batchSize:    100,
		pollInterval: 100 * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start begins the polling loop in a background goroutine.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.run()
}

// Run blocks polling until ctx is cancelled. Used under errgroup in main.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.Poll(w.ctx)
		}
	}
}

// drain attempts one last publish pass on a fresh context so records queued
// during shutdown still make it out.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	w.Poll(ctx)
}

// Poll fetches and publishes a batch of outbox records.
func (w *Worker) Poll(ctx context.Context) {
	records, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		if ctx.Err() == nil && w.logger != nil {
			w.logger.Error("failed to fetch outbox records", "error", err)
		}
		return
	}

	for _, record := range records {
		payload, err := json.Marshal(record)
		if err != nil {
			if w.logger != nil {
				w.logger.Error("failed to encode notification", "sequence", record.Sequence, "error", err)
			}
			continue
		}

		msg := &producer.Message{
			Topic: w.topic,
			Key:   []byte(record.EntityID),
			Value: payload,
			Headers: map[string]string{
				"operation": record.Operation,
			},
		}
		if err := w.producer.Produce(ctx, msg); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to publish notification", "sequence", record.Sequence, "error", err)
			}
			// Stop the batch: publishing out of order would break the
			// ordering guarantee observers depend on.
			return
		}

		if err := w.store.MarkProcessed(ctx, record.Sequence); err != nil {
			if w.logger != nil {
				w.logger.Error("failed to mark notification processed", "sequence", record.Sequence, "error", err)
			}
			return
		}
	}
}

// Stop halts the polling loop after a final drain.
func (w *Worker) Stop() {
	w.cancel()
	w.wg.Wait()
}
