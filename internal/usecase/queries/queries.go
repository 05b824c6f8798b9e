package queries

import (
	"context"
	"time"

	"billiard-hall/internal/domain/money"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

type TableQueries interface {
	Get(ctx context.Context, id uuid.UUID) (*TableView, error)
}

type ReservationQueries interface {
	// ListByTable returns reservations intersecting [from, to), cancelled ones included.
	ListByTable(ctx context.Context, tableID uuid.UUID, from, to time.Time) ([]*ReservationView, error)
}

type OrderQueries interface {
	Get(ctx context.Context, id uuid.UUID) (*OrderView, error)
}

type tableQueriesImpl struct {
	store shared.ReadStore
}

func NewTableQueries(store shared.ReadStore) TableQueries {
	return &tableQueriesImpl{store: store}
}

func (q *tableQueriesImpl) Get(ctx context.Context, id uuid.UUID) (*TableView, error) {
	snap, err := q.store.TableByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var view TableView
	if err := copier.Copy(&view, snap); err != nil {
		return nil, errs.Wrap(err, "map table view")
	}
	view.HourlyRate = money.FromCents(snap.HourlyRateCents).String()
	return &view, nil
}

type reservationQueriesImpl struct {
	store shared.ReadStore
}

func NewReservationQueries(store shared.ReadStore) ReservationQueries {
	return &reservationQueriesImpl{store: store}
}

func (q *reservationQueriesImpl) ListByTable(ctx context.Context, tableID uuid.UUID, from, to time.Time) ([]*ReservationView, error) {
	if !from.Before(to) {
		return nil, errs.MarkKind(errs.Newf("invalid window %s..%s", from, to), errs.KindValidation)
	}
	snaps, err := q.store.ReservationsByTable(ctx, tableID, from, to)
	if err != nil {
		return nil, err
	}
	views := make([]*ReservationView, 0, len(snaps))
	if err := copier.Copy(&views, &snaps); err != nil {
		return nil, errs.Wrap(err, "map reservation views")
	}
	return views, nil
}

type orderQueriesImpl struct {
	store shared.ReadStore
}

func NewOrderQueries(store shared.ReadStore) OrderQueries {
	return &orderQueriesImpl{store: store}
}

func (q *orderQueriesImpl) Get(ctx context.Context, id uuid.UUID) (*OrderView, error) {
	snap, err := q.store.OrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	var view OrderView
	if err := copier.Copy(&view, snap); err != nil {
		return nil, errs.Wrap(err, "map order view")
	}
	view.Charge = money.FromCents(snap.ChargeCents).String()
	return &view, nil
}
