package reporter

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sajilopay/payment-core/pkg/logger"
	"github.com/sajilopay/payment-core/pkg/retry"
)

// OutboxReporter enqueues records for later delivery instead of
// delivering them inline. Pair it with a Worker draining the same store.
type OutboxReporter struct {
	store OutboxStore
}

func NewOutboxReporter(store OutboxStore) *OutboxReporter {
	return &OutboxReporter{store: store}
}

func (r *OutboxReporter) Report(ctx context.Context, rec *Record) error {
	return r.store.Enqueue(ctx, rec)
}

// WorkerConfig configures the outbox drain loop.
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Retry        *retry.Config

	// DLQ receives records abandoned after MaxAttempts poll cycles.
	// Optional; abandoned records are still parked in the store.
	DLQ retry.DLQPublisher
}

// Worker drains the outbox, delivering each pending record through the
// sink with exponential backoff inside one poll cycle. Entries that
// still fail after MaxAttempts poll cycles are parked in failed state.
type Worker struct {
	store   OutboxStore
	sink    Reporter
	config  *WorkerConfig
	retrier *retry.Retrier
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewWorker(store OutboxStore, sink Reporter, cfg *WorkerConfig) *Worker {
	if cfg == nil {
		cfg = &WorkerConfig{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	if cfg.Retry == nil {
		cfg.Retry = &retry.Config{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		}
	}
	return &Worker{
		store:   store,
		sink:    sink,
		config:  cfg,
		retrier: retry.New(cfg.Retry),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start runs the drain loop until the context ends or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Stop signals the drain loop to exit and waits for it.
func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

// Drain delivers one batch of pending entries. Exposed for tests and
// for a final flush during shutdown.
func (w *Worker) Drain(ctx context.Context) {
	log := logger.Get()

	batch, err := w.store.PendingBatch(ctx, w.config.BatchSize)
	if err != nil {
		log.Error("failed to load pending results", zap.Error(err))
		return
	}

	for _, entry := range batch {
		entry := entry
		result := w.retrier.Do(ctx, func(ctx context.Context) error {
			return w.sink.Report(ctx, entry.Record)
		})
		if result.Err == nil {
			if err := w.store.MarkDelivered(ctx, entry.ID); err != nil {
				log.Error("failed to mark result delivered",
					zap.String("entry_id", entry.ID), zap.Error(err))
			}
			continue
		}

		final := entry.Attempts+1 >= w.config.MaxAttempts
		deliveryErr := result.LastError
		if deliveryErr == nil {
			deliveryErr = result.Err
		}
		if err := w.store.MarkFailed(ctx, entry.ID, deliveryErr, final); err != nil {
			log.Error("failed to record delivery failure",
				zap.String("entry_id", entry.ID), zap.Error(err))
			continue
		}
		if final {
			log.Error("payment result delivery abandoned",
				zap.String("entry_id", entry.ID),
				zap.String("merchant_ref", entry.Record.MerchantRef),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(deliveryErr))
			w.publishDLQ(ctx, entry, deliveryErr)
		} else {
			log.Warn("payment result delivery failed, will retry",
				zap.String("entry_id", entry.ID),
				zap.String("merchant_ref", entry.Record.MerchantRef),
				zap.Error(deliveryErr))
		}
	}
}

// publishDLQ hands an abandoned record to the dead letter publisher.
func (w *Worker) publishDLQ(ctx context.Context, entry *OutboxEntry, deliveryErr error) {
	if w.config.DLQ == nil {
		return
	}

	payload, err := json.Marshal(entry.Record)
	if err != nil {
		logger.Get().Error("failed to encode abandoned result", zap.Error(err))
		return
	}

	msg := &retry.DLQMessage{
		ID:             entry.ID,
		OriginalTopic:  TopicPaymentResult,
		OriginalKey:    entry.Record.MerchantRef,
		Payload:        payload,
		Error:          deliveryErr.Error(),
		Attempts:       entry.Attempts + 1,
		FirstAttemptAt: entry.CreatedAt,
		LastAttemptAt:  time.Now().UTC(),
	}
	if err := w.config.DLQ.PublishToDLQ(ctx, msg); err != nil {
		logger.Get().Error("failed to publish abandoned result to dead letter queue",
			zap.String("entry_id", entry.ID), zap.Error(err))
	}
}
