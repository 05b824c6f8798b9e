package memstore

import (
	"context"
	"slices"
	"sort"
	"time"

	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
)

type eventLog struct{ st *state }

func (l eventLog) Append(_ context.Context, events ...messaging.Event) error {
	for _, evt := range events {
		stream := l.st.events[evt.AggregateID]
		last := uint64(0)
		if n := len(stream); n > 0 {
			last = stream[n-1].Version
		}
		if evt.Version != last+1 {
			return errs.Wrapf(errs.ErrConcurrentUpdate, "%s v%d after v%d", evt.AggregateID, evt.Version, last)
		}
		l.st.events[evt.AggregateID] = append(stream, evt)
	}
	return nil
}

type outboxWriter struct{ st *state }

func (w outboxWriter) Enqueue(_ context.Context, events ...messaging.Event) error {
	for _, evt := range events {
		w.st.nextSeq++
		w.st.outbox = append(w.st.outbox, shared.OutboxRecord{
			Seq:       w.st.nextSeq,
			Event:     evt,
			CreatedAt: evt.OccurredAt,
		})
	}
	return nil
}

type idempotencyRepo struct{ st *state }

func (r idempotencyRepo) Get(_ context.Context, key uuid.UUID) (*shared.IdempotencyRecord, error) {
	rec, ok := r.st.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r idempotencyRepo) Save(_ context.Context, rec shared.IdempotencyRecord, now time.Time) error {
	if current, ok := r.st.idempotency[rec.Key]; ok && !current.Expired(now) {
		return shared.ErrIdempotencyKeyTaken
	}
	r.st.idempotency[rec.Key] = rec
	return nil
}

type commandReads struct{ store *Store }

func (c commandReads) IdempotencyByKey(_ context.Context, key uuid.UUID) (*shared.IdempotencyRecord, error) {
	var rec *shared.IdempotencyRecord
	c.store.read(func(st *state) {
		if r, ok := st.idempotency[key]; ok {
			rec = &r
		}
	})
	return rec, nil
}

func (c commandReads) ReservationByID(_ context.Context, id uuid.UUID) (*reservation.Snapshot, error) {
	var snap *reservation.Snapshot
	c.store.read(func(st *state) {
		if s, ok := st.reservations[id]; ok {
			snap = &s
		}
	})
	return snap, nil
}

// Since implements shared.EventReader.
func (s *Store) Since(_ context.Context, aggregateID uuid.UUID, afterVersion uint64) ([]messaging.Event, error) {
	var out []messaging.Event
	s.read(func(st *state) {
		for _, evt := range st.events[aggregateID] {
			if evt.Version > afterVersion {
				out = append(out, evt)
			}
		}
	})
	return out, nil
}

// Pending implements shared.OutboxStore.
func (s *Store) Pending(_ context.Context, limit int) ([]shared.OutboxRecord, error) {
	var out []shared.OutboxRecord
	s.read(func(st *state) {
		for _, rec := range st.outbox {
			if rec.DispatchedAt != nil {
				continue
			}
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				return
			}
		}
	})
	return out, nil
}

// MarkDispatched implements shared.OutboxStore. Dispatched records are dropped.
func (s *Store) MarkDispatched(_ context.Context, seqs []int64, _ time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(map[int64]struct{}, len(seqs))
	for _, seq := range seqs {
		done[seq] = struct{}{}
	}
	s.state.outbox = slices.DeleteFunc(slices.Clone(s.state.outbox), func(rec shared.OutboxRecord) bool {
		_, ok := done[rec.Seq]
		return ok
	})
	return nil
}

// TableByID implements shared.ReadStore.
func (s *Store) TableByID(_ context.Context, id uuid.UUID) (*table.Snapshot, error) {
	var snap *table.Snapshot
	s.read(func(st *state) {
		if t, ok := st.tables[id]; ok {
			snap = &t
		}
	})
	if snap == nil {
		return nil, errs.Wrapf(table.ErrTableNotFound, "table %s", id)
	}
	return snap, nil
}

// ReservationsByTable implements shared.ReadStore, ordered by start time.
func (s *Store) ReservationsByTable(_ context.Context, tableID uuid.UUID, from, to time.Time) ([]reservation.Snapshot, error) {
	var out []reservation.Snapshot
	s.read(func(st *state) {
		for _, snap := range sortedReservations(st) {
			if snap.TableID == tableID && snap.StartTime.Before(to) && snap.EndTime.After(from) {
				out = append(out, snap)
			}
		}
	})
	return out, nil
}

// OrderByID implements shared.ReadStore.
func (s *Store) OrderByID(_ context.Context, id uuid.UUID) (*order.Snapshot, error) {
	var snap *order.Snapshot
	s.read(func(st *state) {
		if o, ok := st.orders[id]; ok {
			snap = &o
		}
	})
	if snap == nil {
		return nil, errs.Wrapf(order.ErrOrderNotFound, "order %s", id)
	}
	return snap, nil
}

func sortedReservations(st *state) []reservation.Snapshot {
	out := make([]reservation.Snapshot, 0, len(st.reservations))
	for _, snap := range st.reservations {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}
