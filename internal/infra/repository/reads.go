package repository

import (
	"context"
	"time"

	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
)

// ReadStore implements shared.ReadStore outside any transaction.
type ReadStore struct {
	tables       *TableRepository
	reservations *ReservationRepository
	orders       *OrderRepository
}

func NewReadStore(db db.DBTX) *ReadStore {
	return &ReadStore{
		tables:       NewTableRepository(db),
		reservations: NewReservationRepository(db),
		orders:       NewOrderRepository(db),
	}
}

func (s *ReadStore) TableByID(ctx context.Context, id uuid.UUID) (*table.Snapshot, error) {
	return s.tables.byID(ctx, id)
}

// ReservationsByTable includes cancelled reservations, ordered by start time.
func (s *ReadStore) ReservationsByTable(ctx context.Context, tableID uuid.UUID, from, to time.Time) ([]reservation.Snapshot, error) {
	return s.reservations.listByTable(ctx, tableID, from, to, false)
}

func (s *ReadStore) OrderByID(ctx context.Context, id uuid.UUID) (*order.Snapshot, error) {
	return s.orders.byID(ctx, id)
}

type CommandReads struct {
	idempotency  *IdempotencyRepository
	reservations *ReservationRepository
}

func NewCommandReads(db db.DBTX) *CommandReads {
	return &CommandReads{
		idempotency:  NewIdempotencyRepository(db),
		reservations: NewReservationRepository(db),
	}
}

func (r *CommandReads) IdempotencyByKey(ctx context.Context, key uuid.UUID) (*shared.IdempotencyRecord, error) {
	return r.idempotency.Get(ctx, key)
}

func (r *CommandReads) ReservationByID(ctx context.Context, id uuid.UUID) (*reservation.Snapshot, error) {
	return r.reservations.byID(ctx, id)
}
