package repository

import (
	"context"

	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/infra"
	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	orderColumns = `id, member_id, table_id, status, hourly_rate_cents, start_time, end_time, charge_cents, version, created_at, updated_at`

	constraintOneActiveOrder = "orders_one_active_per_table"
)

type OrderRepository struct {
	db db.DBTX
}

func NewOrderRepository(db db.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Get(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	snap, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	return order.Reconstruct(*snap), nil
}

func (r *OrderRepository) byID(ctx context.Context, id uuid.UUID) (*order.Snapshot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, pgconv.UUIDToPgtype(id))
	snap, err := scanOrder(row)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, errs.Wrapf(order.ErrOrderNotFound, "order %s", id)
		}
		return nil, infra.WrapRepoErr("failed to get order", err)
	}
	return &snap, nil
}

func (r *OrderRepository) FindActiveByTable(ctx context.Context, tableID uuid.UUID) (*order.Order, error) {
	row := r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE table_id = $1 AND status = $2`,
		pgconv.UUIDToPgtype(tableID), string(order.StatusActive))
	snap, err := scanOrder(row)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr("failed to find active order", err)
	}
	return order.Reconstruct(snap), nil
}

func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	snap := o.Snapshot()
	tag, err := r.db.Exec(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			end_time = EXCLUDED.end_time,
			charge_cents = EXCLUDED.charge_cents,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE orders.version < EXCLUDED.version`,
		pgconv.UUIDToPgtype(snap.ID),
		pgconv.UUIDToPgtype(snap.MemberID),
		pgconv.UUIDToPgtype(snap.TableID),
		string(snap.Status),
		snap.HourlyRateCents,
		pgconv.TimeToPgtype(snap.StartTime),
		pgconv.TimePtrToPgtype(snap.EndTime),
		snap.ChargeCents,
		int64(snap.Version),
		pgconv.TimeToPgtype(snap.CreatedAt),
		pgconv.TimeToPgtype(snap.UpdatedAt),
	)
	if err != nil {
		wrapped := infra.WrapRepoErr("failed to save order", err)
		if infra.IsConstraint(wrapped, constraintOneActiveOrder) {
			return errs.Wrapf(order.ErrTableUnavailable, "table %s already has an active order", snap.TableID)
		}
		return wrapped
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(errs.ErrConcurrentUpdate, "order %s v%d", snap.ID, snap.Version)
	}
	return nil
}

func scanOrder(row rowScanner) (order.Snapshot, error) {
	var (
		id, memberID, tableID       pgtype.UUID
		status                      string
		rateCents, chargeCents, ver int64
		start, end                  pgtype.Timestamptz
		createdAt, updatedAt        pgtype.Timestamptz
	)
	if err := row.Scan(&id, &memberID, &tableID, &status, &rateCents, &start, &end, &chargeCents, &ver, &createdAt, &updatedAt); err != nil {
		return order.Snapshot{}, err
	}
	return order.Snapshot{
		ID:              pgconv.UUIDFromPgtype(id),
		MemberID:        pgconv.UUIDFromPgtype(memberID),
		TableID:         pgconv.UUIDFromPgtype(tableID),
		Status:          order.Status(status),
		HourlyRateCents: rateCents,
		StartTime:       pgconv.TimeFromPgtype(start),
		EndTime:         pgconv.TimePtrFromPgtype(end),
		ChargeCents:     chargeCents,
		Version:         uint64(ver),
		CreatedAt:       pgconv.TimeFromPgtype(createdAt),
		UpdatedAt:       pgconv.TimeFromPgtype(updatedAt),
	}, nil
}
