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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// Inbox implements messaging.InboxStore over processed_events.
type Inbox struct {
	db db.DBTX
}

func NewInbox(db db.DBTX) *Inbox {
	return &Inbox{db: db}
}

func (i *Inbox) Processed(ctx context.Context, subscriber string, key messaging.DedupKey) (bool, error) {
	var seen bool
	err := i.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM processed_events
			WHERE subscriber = $1 AND aggregate_id = $2 AND schema_version = $3 AND version = $4
		)`,
		subscriber, pgconv.UUIDToPgtype(key.AggregateID), key.SchemaVersion, int64(key.Version)).Scan(&seen)
	if err != nil {
		return false, infra.WrapRepoErr("failed to check inbox", err)
	}
	return seen, nil
}

func (i *Inbox) MarkProcessed(ctx context.Context, subscriber string, key messaging.DedupKey, at time.Time) error {
	_, err := i.db.Exec(ctx, `
		INSERT INTO processed_events (subscriber, aggregate_id, schema_version, version, processed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING`,
		subscriber, pgconv.UUIDToPgtype(key.AggregateID), key.SchemaVersion, int64(key.Version), pgconv.TimeToPgtype(at))
	if err != nil {
		return infra.WrapRepoErr("failed to mark inbox", err)
	}
	return nil
}

// DeadLetters implements messaging.DeadLetterStore over dead_letters.
type DeadLetters struct {
	db db.DBTX
}

func NewDeadLetters(db db.DBTX) *DeadLetters {
	return &DeadLetters{db: db}
}

func (d *DeadLetters) Park(ctx context.Context, dl messaging.DeadLetter) error {
	raw, err := json.Marshal(dl.Event)
	if err != nil {
		return errs.Wrapf(err, "marshal dead letter %s", dl.ID)
	}
	_, err = d.db.Exec(ctx, `
		INSERT INTO dead_letters (id, subscriber, event, attempts, last_error, parked_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		pgconv.UUIDToPgtype(dl.ID), dl.Subscriber, raw, dl.Attempts, dl.LastError, pgconv.TimeToPgtype(dl.ParkedAt))
	if err != nil {
		return infra.WrapRepoErr("failed to park dead letter", err)
	}
	return nil
}

// List returns the oldest letters first. limit <= 0 means all.
func (d *DeadLetters) List(ctx context.Context, limit int) ([]messaging.DeadLetter, error) {
	rows, err := d.db.Query(ctx, `
		SELECT id, subscriber, event, attempts, last_error, parked_at
		FROM dead_letters
		ORDER BY parked_at, id
		LIMIT NULLIF($1::int, 0)`, limit)
	if err != nil {
		return nil, infra.WrapRepoErr("failed to list dead letters", err)
	}
	letters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (messaging.DeadLetter, error) {
		var (
			id       pgtype.UUID
			dl       messaging.DeadLetter
			raw      []byte
			attempts int32
			parkedAt pgtype.Timestamptz
		)
		if err := row.Scan(&id, &dl.Subscriber, &raw, &attempts, &dl.LastError, &parkedAt); err != nil {
			return messaging.DeadLetter{}, err
		}
		if err := json.Unmarshal(raw, &dl.Event); err != nil {
			return messaging.DeadLetter{}, errs.Wrap(err, "decode dead letter event")
		}
		dl.ID = pgconv.UUIDFromPgtype(id)
		dl.Attempts = int(attempts)
		dl.ParkedAt = pgconv.TimeFromPgtype(parkedAt)
		return dl, nil
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan dead letters", err)
	}
	return letters, nil
}

func (d *DeadLetters) Remove(ctx context.Context, id uuid.UUID) error {
	_, err := d.db.Exec(ctx, `DELETE FROM dead_letters WHERE id = $1`, pgconv.UUIDToPgtype(id))
	if err != nil {
		return infra.WrapRepoErr("failed to remove dead letter", err)
	}
	return nil
}
