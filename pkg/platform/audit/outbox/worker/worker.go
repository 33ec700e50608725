package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"presence/internal/platform/kafka/producer"
	"presence/pkg/platform/audit/outbox"
	"presence/pkg/platform/audit/outbox/metrics"
)

// Producer is the subset of producer.Producer the relay needs.
type Producer interface {
	Produce(ctx context.Context, msg *producer.Message) error
}

// Worker polls the outbox table and relays entries to Kafka. Delivery is
// at-least-once: an entry published but not marked is published again.
type Worker struct {
	store               outbox.Store
	producer            Producer
	topic               string
	batchSize           int
	pollInterval        time.Duration
	maintenanceInterval time.Duration
	retention           time.Duration
	metrics             *metrics.Metrics
	logger              *slog.Logger
	now                 func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		w.topic = topic
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention sets how long processed entries are kept before pruning.
// Zero disables pruning.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		w.retention = d
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		w.now = now
	}
}

func New(store outbox.Store, prod Producer, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := &Worker{
		store:               store,
		producer:            prod,
		topic:               "presence.audit",
		batchSize:           100,
		pollInterval:        100 * time.Millisecond,
		maintenanceInterval: time.Minute,
		retention:           7 * 24 * time.Hour,
		logger:              slog.New(slog.DiscardHandler),
		now:                 time.Now,
		ctx:                 ctx,
		cancel:              cancel,
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

func (w *Worker) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	maintenance := time.NewTicker(w.maintenanceInterval)
	defer maintenance.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case <-ticker.C:
			w.poll(w.ctx)
		case <-maintenance.C:
			w.maintain(w.ctx)
		}
	}
}

// poll relays one batch and returns how many entries it published.
func (w *Worker) poll(ctx context.Context) int {
	start := time.Now()

	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.Error("failed to fetch outbox entries", "error", err)
		w.metrics.IncPublishFailures()
		return 0
	}
	if len(entries) == 0 {
		return 0
	}
	w.metrics.ObserveBatchSize(len(entries))

	published := 0
	for _, entry := range entries {
		if err := w.publishEntry(ctx, entry); err != nil {
			w.logger.Error("failed to publish outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.metrics.IncPublishFailures()
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			w.logger.Error("failed to mark entry as processed",
				"id", entry.ID,
				"error", err,
			)
			continue
		}
		w.metrics.IncPublished()
		published++
	}

	w.metrics.ObservePollDuration(time.Since(start).Seconds())
	return published
}

func (w *Worker) publishEntry(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()

	msg := &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.Subject),
		Value: entry.Payload,
		Headers: map[string]string{
			"outbox_id":  entry.ID.String(),
			"event_type": entry.EventType,
			"category":   entry.Category,
		},
	}
	if err := w.producer.Produce(ctx, msg); err != nil {
		return err
	}

	w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	return nil
}

// maintain refreshes the pending gauge and prunes old processed entries.
func (w *Worker) maintain(ctx context.Context) {
	if count, err := w.store.CountPending(ctx); err != nil {
		w.logger.Warn("failed to count pending outbox entries", "error", err)
	} else {
		w.metrics.SetPendingDepth(count)
	}

	if w.retention <= 0 {
		return
	}
	n, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		w.logger.Warn("failed to prune outbox", "error", err)
		return
	}
	w.metrics.AddPruned(n)
}

// drain publishes what is left during shutdown, stopping early when a pass
// makes no progress.
func (w *Worker) drain() {
	w.logger.Info("draining outbox worker")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		if w.poll(ctx) == 0 {
			return
		}
	}
}

// Stop cancels the loop and waits for the drain to finish or ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
