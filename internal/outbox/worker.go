package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"alumnus/internal/platform/metrics"
)

// TxRunner is satisfied by postgres.TxRunner and tx.Memory.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Worker drains unpublished entries to the broker. Delivery is at least once:
// a batch is marked published only after the broker acknowledges it, and a
// failed mark leaves the rows to be sent again.
type Worker struct {
	store     Store
	tx        TxRunner
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type WorkerOption func(*Worker)

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithClock(now func() time.Time) WorkerOption {
	return func(w *Worker) {
		w.now = now
	}
}

func NewWorker(store Store, tx TxRunner, publisher Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:     store,
		tx:        tx,
		publisher: publisher,
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled. Publish failures are logged and retried on
// the next tick.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := w.Drain(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					w.logger.WarnContext(ctx, "outbox drain failed", "error", err)
					break
				}
				if n < w.batchSize {
					break
				}
			}
		}
	}
}

// Drain publishes at most one batch and returns how many entries it delivered.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	var published int
	err := w.tx.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := w.store.ClaimBatch(txCtx, w.batchSize)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		if err := w.publisher.Publish(txCtx, entries); err != nil {
			w.metrics.IncrementOutboxPublished("error", len(entries))
			return err
		}
		ids := make([]uuid.UUID, len(entries))
		for i, e := range entries {
			ids[i] = e.ID
		}
		if err := w.store.MarkPublished(txCtx, ids, w.now()); err != nil {
			return err
		}
		published = len(entries)
		return nil
	})
	if err != nil {
		return 0, err
	}
	w.metrics.IncrementOutboxPublished("ok", published)
	if published > 0 {
		w.logger.DebugContext(ctx, "outbox batch published", "count", published)
	}
	return published, nil
}
