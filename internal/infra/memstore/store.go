// Package memstore keeps every store of the process in memory. It is the default
// storage driver and backs the unit and scenario tests.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
)

type state struct {
	tables       map[uuid.UUID]table.Snapshot
	reservations map[uuid.UUID]reservation.Snapshot
	orders       map[uuid.UUID]order.Snapshot
	events       map[uuid.UUID][]messaging.Event
	outbox       []shared.OutboxRecord
	nextSeq      int64
	idempotency  map[uuid.UUID]shared.IdempotencyRecord
}

func newState() *state {
	return &state{
		tables:       make(map[uuid.UUID]table.Snapshot),
		reservations: make(map[uuid.UUID]reservation.Snapshot),
		orders:       make(map[uuid.UUID]order.Snapshot),
		events:       make(map[uuid.UUID][]messaging.Event),
		idempotency:  make(map[uuid.UUID]shared.IdempotencyRecord),
	}
}

// clone copies the containers; snapshots and events are values and are never
// mutated in place.
func (s *state) clone() *state {
	events := make(map[uuid.UUID][]messaging.Event, len(s.events))
	for id, evts := range s.events {
		events[id] = slices.Clone(evts)
	}
	return &state{
		tables:       maps.Clone(s.tables),
		reservations: maps.Clone(s.reservations),
		orders:       maps.Clone(s.orders),
		events:       events,
		outbox:       slices.Clone(s.outbox),
		nextSeq:      s.nextSeq,
		idempotency:  maps.Clone(s.idempotency),
	}
}

// Store implements shared.UnitOfWork with copy-on-write transactions. Transactions
// run one at a time across all aggregates; a failed fn leaves the committed state
// untouched. Commands on different tables only commit in parallel on the postgres
// driver.
type Store struct {
	mu    sync.Mutex
	state *state
}

func New() *Store {
	return &Store{state: newState()}
}

func (s *Store) Within(ctx context.Context, fn func(ctx context.Context, tx shared.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(ctx, &tx{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *Store) CommandReads() shared.CommandReads {
	return commandReads{store: s}
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

type tx struct {
	state *state
}

// Lock is a no-op: Within already runs transactions one at a time.
func (t *tx) Lock(ctx context.Context, _ string) error {
	return ctx.Err()
}

func (t *tx) Tables() shared.TableRepository             { return tableRepo{t.state} }
func (t *tx) Reservations() shared.ReservationRepository { return reservationRepo{t.state} }
func (t *tx) Orders() shared.OrderRepository             { return orderRepo{t.state} }
func (t *tx) Events() shared.EventLog                    { return eventLog{t.state} }
func (t *tx) Outbox() shared.OutboxWriter                { return outboxWriter{t.state} }
func (t *tx) Idempotency() shared.IdempotencyRepository  { return idempotencyRepo{t.state} }
