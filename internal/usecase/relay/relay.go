//go:generate mockgen -source=relay.go -destination=../../../tests/mock/relay/mock_relay.go -package=relaymock

package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/usecase/shared"
)

// Publisher receives committed events in outbox order.
type Publisher interface {
	Publish(ctx context.Context, events ...messaging.Event) error
}

// PublisherFunc adapts a function such as Bus.PublishAndWait to Publisher.
type PublisherFunc func(ctx context.Context, events ...messaging.Event) error

func (f PublisherFunc) Publish(ctx context.Context, events ...messaging.Event) error {
	return f(ctx, events...)
}

// Fanout publishes to every publisher in turn. A failure stops the batch, which
// is then republished in full; downstream consumers deduplicate.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, events ...messaging.Event) error {
	for _, p := range f {
		if err := p.Publish(ctx, events...); err != nil {
			return err
		}
	}
	return nil
}

// Relay moves committed outbox records to the publisher. Delivery is at least
// once: a crash between Publish and MarkDispatched republishes the batch.
// Publish must return only once the batch is durably handed off; records are
// released right after it returns.
type Relay struct {
	store     shared.OutboxStore
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
	interval  time.Duration
	batchSize int

	mu   sync.Mutex
	wake chan struct{}
}

func New(store shared.OutboxStore, publisher Publisher, clk clock.Clock, interval time.Duration, batchSize int, logger *slog.Logger) *Relay {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Relay{
		store:     store,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
		wake:      make(chan struct{}, 1),
	}
}

// Notify wakes Run without waiting for the next poll.
func (r *Relay) Notify() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run dispatches until ctx is cancelled. Dispatch failures are logged and retried
// on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.logger.Warn("Outbox dispatch failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

// Flush dispatches batches until the outbox is empty.
func (r *Relay) Flush(ctx context.Context) error {
	for {
		n, err := r.dispatch(ctx)
		if err != nil {
			return err
		}
		if n < r.batchSize {
			return nil
		}
	}
}

func (r *Relay) dispatch(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.store.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, errs.Wrap(err, "read outbox")
	}
	if len(records) == 0 {
		return 0, nil
	}

	events := make([]messaging.Event, len(records))
	seqs := make([]int64, len(records))
	for i, rec := range records {
		events[i] = rec.Event
		seqs[i] = rec.Seq
	}
	if err := r.publisher.Publish(ctx, events...); err != nil {
		return 0, errs.Wrapf(err, "publish outbox batch from seq %d", seqs[0])
	}
	if err := r.store.MarkDispatched(ctx, seqs, r.clock.UtcNow()); err != nil {
		return 0, errs.Wrap(err, "mark outbox dispatched")
	}

	r.logger.Debug("Outbox batch dispatched",
		slog.Int("events", len(records)),
		slog.Int64("first_seq", seqs[0]),
		slog.Int64("last_seq", seqs[len(seqs)-1]),
	)
	return len(records), nil
}
