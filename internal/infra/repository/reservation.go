package repository

import (
	"context"
	"time"

	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/infra"
	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	reservationColumns = `id, table_id, member_id, start_time, end_time, status, version, created_at, updated_at, cancelled_at`

	constraintReservationOverlap = "reservations_no_overlap"
)

type ReservationRepository struct {
	db db.DBTX
}

func NewReservationRepository(db db.DBTX) *ReservationRepository {
	return &ReservationRepository{db: db}
}

func (r *ReservationRepository) Get(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	snap, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errs.Wrapf(reservation.ErrReservationNotFound, "reservation %s", id)
	}
	return reservation.Reconstruct(*snap), nil
}

// byID returns nil, nil when the reservation does not exist.
func (r *ReservationRepository) byID(ctx context.Context, id uuid.UUID) (*reservation.Snapshot, error) {
	row := r.db.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, pgconv.UUIDToPgtype(id))
	snap, err := scanReservation(row)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr("failed to get reservation", err)
	}
	return &snap, nil
}

func (r *ReservationRepository) ListByTableWindow(ctx context.Context, tableID uuid.UUID, from, to time.Time) ([]*reservation.Reservation, error) {
	snaps, err := r.listByTable(ctx, tableID, from, to, true)
	if err != nil {
		return nil, err
	}
	out := make([]*reservation.Reservation, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, reservation.Reconstruct(snap))
	}
	return out, nil
}

func (r *ReservationRepository) listByTable(ctx context.Context, tableID uuid.UUID, from, to time.Time, blockingOnly bool) ([]reservation.Snapshot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE table_id = $1
		  AND start_time < $3
		  AND end_time > $2
		  AND (NOT $4 OR status <> 'cancelled')
		ORDER BY start_time, id`,
		pgconv.UUIDToPgtype(tableID),
		pgconv.TimeToPgtype(from),
		pgconv.TimeToPgtype(to),
		blockingOnly,
	)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list reservations", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (reservation.Snapshot, error) {
		return scanReservation(row)
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan reservations", err)
	}
	return snaps, nil
}

// Save inserts or updates the reservation. The exclusion constraint rejects an
// overlapping slot even when two writers race past the in-memory check.
func (r *ReservationRepository) Save(ctx context.Context, res *reservation.Reservation) error {
	snap := res.Snapshot()
	tag, err := r.db.Exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			cancelled_at = EXCLUDED.cancelled_at
		WHERE reservations.version < EXCLUDED.version`,
		pgconv.UUIDToPgtype(snap.ID),
		pgconv.UUIDToPgtype(snap.TableID),
		pgconv.UUIDToPgtype(snap.MemberID),
		pgconv.TimeToPgtype(snap.StartTime),
		pgconv.TimeToPgtype(snap.EndTime),
		string(snap.Status),
		int64(snap.Version),
		pgconv.TimeToPgtype(snap.CreatedAt),
		pgconv.TimeToPgtype(snap.UpdatedAt),
		pgconv.TimePtrToPgtype(snap.CancelledAt),
	)
	if err != nil {
		wrapped := infra.WrapRepoErr("failed to save reservation", err)
		switch {
		case infra.IsConstraint(wrapped, constraintReservationOverlap):
			return errs.Wrapf(reservation.ErrTimeSlotConflict, "table %s", snap.TableID)
		case infra.IsKind(wrapped, infra.KindForeignKeyViolated):
			return errs.Wrapf(table.ErrTableNotFound, "table %s", snap.TableID)
		}
		return wrapped
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(errs.ErrConcurrentUpdate, "reservation %s v%d", snap.ID, snap.Version)
	}
	return nil
}

func scanReservation(row rowScanner) (reservation.Snapshot, error) {
	var (
		id, tableID, memberID pgtype.UUID
		start, end            pgtype.Timestamptz
		status                string
		version               int64
		createdAt, updatedAt  pgtype.Timestamptz
		cancelledAt           pgtype.Timestamptz
	)
	if err := row.Scan(&id, &tableID, &memberID, &start, &end, &status, &version, &createdAt, &updatedAt, &cancelledAt); err != nil {
		return reservation.Snapshot{}, err
	}
	return reservation.Snapshot{
		ID:          pgconv.UUIDFromPgtype(id),
		TableID:     pgconv.UUIDFromPgtype(tableID),
		MemberID:    pgconv.UUIDFromPgtype(memberID),
		StartTime:   pgconv.TimeFromPgtype(start),
		EndTime:     pgconv.TimeFromPgtype(end),
		Status:      reservation.Status(status),
		Version:     uint64(version),
		CreatedAt:   pgconv.TimeFromPgtype(createdAt),
		UpdatedAt:   pgconv.TimeFromPgtype(updatedAt),
		CancelledAt: pgconv.TimePtrFromPgtype(cancelledAt),
	}, nil
}
