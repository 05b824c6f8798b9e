package repository

import (
	"context"
	"encoding/json"
	"time"

	"billiard-hall/internal/infra"
	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/pgconv"
	"billiard-hall/internal/usecase/shared"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Outbox stores committed events until the relay has published them.
type Outbox struct {
	db db.DBTX
}

func NewOutbox(db db.DBTX) *Outbox {
	return &Outbox{db: db}
}

func (o *Outbox) Enqueue(ctx context.Context, events ...messaging.Event) error {
	for _, evt := range events {
		raw, err := json.Marshal(evt)
		if err != nil {
			return errs.Wrapf(err, "marshal outbox event %s", evt.ID)
		}
		_, err = o.db.Exec(ctx, `INSERT INTO outbox (event_id, event, created_at) VALUES ($1, $2, $3)`,
			pgconv.UUIDToPgtype(evt.ID), raw, pgconv.TimeToPgtype(evt.OccurredAt))
		if err != nil {
			return infra.WrapRepoErr("failed to enqueue event", err)
		}
	}
	return nil
}

// Pending returns undispatched records in commit order. limit <= 0 means all.
func (o *Outbox) Pending(ctx context.Context, limit int) ([]shared.OutboxRecord, error) {
	rows, err := o.db.Query(ctx, `
		SELECT seq, event, created_at
		FROM outbox
		WHERE dispatched_at IS NULL
		ORDER BY seq
		LIMIT NULLIF($1::int, 0)`, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to read outbox", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (shared.OutboxRecord, error) {
		var (
			seq       int64
			raw       []byte
			createdAt pgtype.Timestamptz
		)
		if err := row.Scan(&seq, &raw, &createdAt); err != nil {
			return shared.OutboxRecord{}, err
		}
		var evt messaging.Event
		if err := json.Unmarshal(raw, &evt); err != nil {
			return shared.OutboxRecord{}, errs.Wrapf(err, "decode outbox record %d", seq)
		}
		return shared.OutboxRecord{Seq: seq, Event: evt, CreatedAt: pgconv.TimeFromPgtype(createdAt)}, nil
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan outbox", err)
	}
	return records, nil
}

func (o *Outbox) MarkDispatched(ctx context.Context, seqs []int64, at time.Time) error {
	if len(seqs) == 0 {
		return nil
	}
	_, err := o.db.Exec(ctx, `UPDATE outbox SET dispatched_at = $2 WHERE seq = ANY($1)`, seqs, pgconv.TimeToPgtype(at))
	if err != nil {
		return infra.WrapRepoErr("failed to mark outbox dispatched", err)
	}
	return nil
}
