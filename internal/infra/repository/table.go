package repository

import (
	"context"

	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/infra"
	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	tableColumns = `id, number, hourly_rate_cents, status, reserved_for, retired, version, created_at, updated_at`

	constraintTableNumber = "billiard_tables_number_key"
)

// rowScanner is implemented by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

type TableRepository struct {
	db db.DBTX
}

func NewTableRepository(db db.DBTX) *TableRepository {
	return &TableRepository{db: db}
}

func (r *TableRepository) Get(ctx context.Context, id uuid.UUID) (*table.Table, error) {
	snap, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	return table.Reconstruct(*snap), nil
}

func (r *TableRepository) byID(ctx context.Context, id uuid.UUID) (*table.Snapshot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM billiard_tables WHERE id = $1`, pgconv.UUIDToPgtype(id))
	snap, err := scanTable(row)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, errs.Wrapf(table.ErrTableNotFound, "table %s", id)
		}
		return nil, infra.WrapRepoErr("failed to get table", err)
	}
	return &snap, nil
}

func (r *TableRepository) FindByNumber(ctx context.Context, number int) (*table.Table, error) {
	row := r.db.QueryRow(ctx, `SELECT `+tableColumns+` FROM billiard_tables WHERE number = $1`, number)
	snap, err := scanTable(row)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr("failed to find table by number", err)
	}
	return table.Reconstruct(snap), nil
}

// Save inserts or updates the table. A stored version at or above the new one
// means another writer got there first.
func (r *TableRepository) Save(ctx context.Context, t *table.Table) error {
	snap := t.Snapshot()
	tag, err := r.db.Exec(ctx, `
		INSERT INTO billiard_tables (`+tableColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			number = EXCLUDED.number,
			hourly_rate_cents = EXCLUDED.hourly_rate_cents,
			status = EXCLUDED.status,
			reserved_for = EXCLUDED.reserved_for,
			retired = EXCLUDED.retired,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at
		WHERE billiard_tables.version < EXCLUDED.version`,
		pgconv.UUIDToPgtype(snap.ID),
		snap.Number,
		snap.HourlyRateCents,
		string(snap.Status),
		pgconv.UUIDPtrToPgtype(snap.ReservedFor),
		snap.Retired,
		int64(snap.Version),
		pgconv.TimeToPgtype(snap.CreatedAt),
		pgconv.TimeToPgtype(snap.UpdatedAt),
	)
	if err != nil {
		wrapped := infra.WrapRepoErr("failed to save table", err)
		if infra.IsConstraint(wrapped, constraintTableNumber) {
			return errs.Wrapf(table.ErrTableNumberTaken, "table #%d", snap.Number)
		}
		return wrapped
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(errs.ErrConcurrentUpdate, "table %s v%d", snap.ID, snap.Version)
	}
	return nil
}

func scanTable(row rowScanner) (table.Snapshot, error) {
	var (
		id, reservedFor      pgtype.UUID
		number               int32
		rateCents, version   int64
		status               string
		retired              bool
		createdAt, updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &number, &rateCents, &status, &reservedFor, &retired, &version, &createdAt, &updatedAt); err != nil {
		return table.Snapshot{}, err
	}
	return table.Snapshot{
		ID:              pgconv.UUIDFromPgtype(id),
		Number:          int(number),
		HourlyRateCents: rateCents,
		Status:          table.Status(status),
		ReservedFor:     pgconv.UUIDPtrFromPgtype(reservedFor),
		Retired:         retired,
		Version:         uint64(version),
		CreatedAt:       pgconv.TimeFromPgtype(createdAt),
		UpdatedAt:       pgconv.TimeFromPgtype(updatedAt),
	}, nil
}
