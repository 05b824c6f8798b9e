package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

// DedupKey identifies one event instance independently of its transport id.
type DedupKey struct {
	AggregateID   uuid.UUID
	SchemaVersion string
	Version       uint64
}

func KeyOf(evt Event) DedupKey {
	return DedupKey{AggregateID: evt.AggregateID, SchemaVersion: evt.SchemaVersion, Version: evt.Version}
}

// InboxStore remembers which events a subscriber has already processed.
type InboxStore interface {
	Processed(ctx context.Context, subscriber string, key DedupKey) (bool, error)
	MarkProcessed(ctx context.Context, subscriber string, key DedupKey, at time.Time) error
}

// Deduplicate wraps handler so redelivered events are acknowledged without side effects.
// The bus delivers to one subscriber sequentially, so check-then-mark does not race.
func Deduplicate(subscriber string, store InboxStore, clk clock.Clock, logger *slog.Logger, handler EventHandler) EventHandler {
	return EventHandlerFunc(func(ctx context.Context, evt Event) error {
		key := KeyOf(evt)
		seen, err := store.Processed(ctx, subscriber, key)
		if err != nil {
			return errs.Wrap(err, "inbox lookup")
		}
		if seen {
			logger.Debug("Duplicate event skipped",
				slog.String("subscriber", subscriber),
				slog.String("kind", string(evt.Kind)),
				slog.String("aggregate_id", evt.AggregateID.String()),
				slog.Uint64("version", evt.Version),
			)
			return nil
		}
		if err := handler.Handle(ctx, evt); err != nil {
			return err
		}
		return errs.Wrap(store.MarkProcessed(ctx, subscriber, key, clk.UtcNow()), "inbox mark")
	})
}

type MemoryInbox struct {
	mu   sync.Mutex
	seen map[string]map[DedupKey]time.Time
}

func NewMemoryInbox() *MemoryInbox {
	return &MemoryInbox{seen: make(map[string]map[DedupKey]time.Time)}
}

func (m *MemoryInbox) Processed(_ context.Context, subscriber string, key DedupKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[subscriber][key]
	return ok, nil
}

func (m *MemoryInbox) MarkProcessed(_ context.Context, subscriber string, key DedupKey, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[subscriber] == nil {
		m.seen[subscriber] = make(map[DedupKey]time.Time)
	}
	m.seen[subscriber][key] = at
	return nil
}
