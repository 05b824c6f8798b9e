package memstore

import (
	"context"
	"time"

	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

type tableRepo struct{ st *state }

func (r tableRepo) Get(_ context.Context, id uuid.UUID) (*table.Table, error) {
	snap, ok := r.st.tables[id]
	if !ok {
		return nil, errs.Wrapf(table.ErrTableNotFound, "table %s", id)
	}
	return table.Reconstruct(snap), nil
}

func (r tableRepo) FindByNumber(_ context.Context, number int) (*table.Table, error) {
	for _, snap := range r.st.tables {
		if snap.Number == number {
			return table.Reconstruct(snap), nil
		}
	}
	return nil, nil
}

func (r tableRepo) Save(_ context.Context, t *table.Table) error {
	snap := t.Snapshot()
	if current, ok := r.st.tables[snap.ID]; ok && current.Version >= snap.Version {
		return errs.Wrapf(errs.ErrConcurrentUpdate, "table %s at v%d", snap.ID, current.Version)
	}
	for id, other := range r.st.tables {
		if id != snap.ID && other.Number == snap.Number {
			return errs.Wrapf(table.ErrTableNumberTaken, "table #%d", snap.Number)
		}
	}
	r.st.tables[snap.ID] = snap
	return nil
}

type reservationRepo struct{ st *state }

func (r reservationRepo) Get(_ context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	snap, ok := r.st.reservations[id]
	if !ok {
		return nil, errs.Wrapf(reservation.ErrReservationNotFound, "reservation %s", id)
	}
	return reservation.Reconstruct(snap), nil
}

func (r reservationRepo) ListByTableWindow(_ context.Context, tableID uuid.UUID, from, to time.Time) ([]*reservation.Reservation, error) {
	var out []*reservation.Reservation
	for _, snap := range sortedReservations(r.st) {
		if snap.TableID != tableID || !snap.Status.Blocks() {
			continue
		}
		if snap.StartTime.Before(to) && snap.EndTime.After(from) {
			out = append(out, reservation.Reconstruct(snap))
		}
	}
	return out, nil
}

func (r reservationRepo) Save(_ context.Context, res *reservation.Reservation) error {
	snap := res.Snapshot()
	if current, ok := r.st.reservations[snap.ID]; ok && current.Version >= snap.Version {
		return errs.Wrapf(errs.ErrConcurrentUpdate, "reservation %s at v%d", snap.ID, current.Version)
	}
	r.st.reservations[snap.ID] = snap
	return nil
}

type orderRepo struct{ st *state }

func (r orderRepo) Get(_ context.Context, id uuid.UUID) (*order.Order, error) {
	snap, ok := r.st.orders[id]
	if !ok {
		return nil, errs.Wrapf(order.ErrOrderNotFound, "order %s", id)
	}
	return order.Reconstruct(snap), nil
}

func (r orderRepo) FindActiveByTable(_ context.Context, tableID uuid.UUID) (*order.Order, error) {
	for _, snap := range r.st.orders {
		if snap.TableID == tableID && snap.Status.OccupiesTable() {
			return order.Reconstruct(snap), nil
		}
	}
	return nil, nil
}

func (r orderRepo) Save(_ context.Context, o *order.Order) error {
	snap := o.Snapshot()
	if current, ok := r.st.orders[snap.ID]; ok && current.Version >= snap.Version {
		return errs.Wrapf(errs.ErrConcurrentUpdate, "order %s at v%d", snap.ID, current.Version)
	}
	r.st.orders[snap.ID] = snap
	return nil
}
