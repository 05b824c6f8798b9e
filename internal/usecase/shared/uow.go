package shared

import (
	"context"
	"time"

	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"

	"github.com/google/uuid"
)

type UnitOfWork interface {
	// Within: Full transaction for write operations. Implementations may retry fn on
	// serialization failures, so fn must not have side effects outside tx.
	Within(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// CommandReads: Direct access to command reads for validation outside transactions
	CommandReads() CommandReads
}

type Tx interface {
	// Lock takes a transaction-scoped exclusive lock on key (released on commit/rollback).
	Lock(ctx context.Context, key string) error
	Tables() TableRepository
	Reservations() ReservationRepository
	Orders() OrderRepository
	Events() EventLog
	Outbox() OutboxWriter
	Idempotency() IdempotencyRepository
}

type CommandReads interface {
	IdempotencyByKey(ctx context.Context, key uuid.UUID) (*IdempotencyRecord, error)
	ReservationByID(ctx context.Context, id uuid.UUID) (*reservation.Snapshot, error)
}

// Repositories return nil, nil from Find* methods when nothing matches and a
// not-found sentinel from Get.

type TableRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*table.Table, error)
	FindByNumber(ctx context.Context, number int) (*table.Table, error)
	Save(ctx context.Context, t *table.Table) error
}

type ReservationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error)
	// ListByTableWindow returns non-cancelled reservations of the table intersecting [from, to).
	ListByTableWindow(ctx context.Context, tableID uuid.UUID, from, to time.Time) ([]*reservation.Reservation, error)
	Save(ctx context.Context, r *reservation.Reservation) error
}

type OrderRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*order.Order, error)
	FindActiveByTable(ctx context.Context, tableID uuid.UUID) (*order.Order, error)
	Save(ctx context.Context, o *order.Order) error
}

// EventLog appends events; each event's Version must follow the aggregate's last one.
type EventLog interface {
	Append(ctx context.Context, events ...messaging.Event) error
}

type OutboxWriter interface {
	Enqueue(ctx context.Context, events ...messaging.Event) error
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key uuid.UUID) (*IdempotencyRecord, error)
	// Save inserts rec, replacing an expired record with the same key.
	// A live record with the same key fails with ErrIdempotencyKeyTaken.
	Save(ctx context.Context, rec IdempotencyRecord, now time.Time) error
}

// Stores used outside command transactions.

type EventReader interface {
	Since(ctx context.Context, aggregateID uuid.UUID, afterVersion uint64) ([]messaging.Event, error)
}

type OutboxStore interface {
	Pending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkDispatched(ctx context.Context, seqs []int64, at time.Time) error
}

type ReadStore interface {
	TableByID(ctx context.Context, id uuid.UUID) (*table.Snapshot, error)
	ReservationsByTable(ctx context.Context, tableID uuid.UUID, from, to time.Time) ([]reservation.Snapshot, error)
	OrderByID(ctx context.Context, id uuid.UUID) (*order.Snapshot, error)
}
