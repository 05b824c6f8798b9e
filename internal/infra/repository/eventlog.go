package repository

import (
	"context"
	"encoding/json"

	"billiard-hall/internal/infra"
	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/pgconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// EventLog is the append-only history of every aggregate owned by this process.
type EventLog struct {
	db db.DBTX
}

func NewEventLog(db db.DBTX) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Append(ctx context.Context, events ...messaging.Event) error {
	for _, evt := range events {
		var last int64
		err := l.db.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM event_log WHERE aggregate_id = $1`,
			pgconv.UUIDToPgtype(evt.AggregateID)).Scan(&last)
		if err != nil {
			return infra.WrapRepoErr("failed to read last event version", err)
		}
		if evt.Version != uint64(last)+1 {
			return errs.Wrapf(errs.ErrConcurrentUpdate, "%s v%d after v%d", evt.AggregateID, evt.Version, last)
		}

		_, err = l.db.Exec(ctx, `
			INSERT INTO event_log (id, aggregate_id, version, kind, schema_version, correlation_id, payload, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			pgconv.UUIDToPgtype(evt.ID),
			pgconv.UUIDToPgtype(evt.AggregateID),
			int64(evt.Version),
			string(evt.Kind),
			evt.SchemaVersion,
			pgconv.UUIDToPgtype(evt.CorrelationID),
			[]byte(evt.Payload),
			pgconv.TimeToPgtype(evt.OccurredAt),
		)
		if err != nil {
			wrapped := infra.WrapRepoErr("failed to append event", err)
			if infra.IsKind(wrapped, infra.KindDuplicateKey) {
				return errs.Mark(wrapped, errs.ErrConcurrentUpdate)
			}
			return wrapped
		}
	}
	return nil
}

// Since implements shared.EventReader.
func (l *EventLog) Since(ctx context.Context, aggregateID uuid.UUID, afterVersion uint64) ([]messaging.Event, error) {
	rows, err := l.db.Query(ctx, `
		SELECT id, kind, schema_version, aggregate_id, version, occurred_at, correlation_id, payload
		FROM event_log
		WHERE aggregate_id = $1 AND version > $2
		ORDER BY version`,
		pgconv.UUIDToPgtype(aggregateID), int64(afterVersion))
	if err != nil {
		return nil, infra.WrapRepoErr("failed to read events", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (messaging.Event, error) {
		var (
			id, aggregate, correlation pgtype.UUID
			kind, schemaVersion        string
			version                    int64
			occurredAt                 pgtype.Timestamptz
			payload                    []byte
		)
		if err := row.Scan(&id, &kind, &schemaVersion, &aggregate, &version, &occurredAt, &correlation, &payload); err != nil {
			return messaging.Event{}, err
		}
		return messaging.Event{
			ID:            pgconv.UUIDFromPgtype(id),
			Kind:          messaging.Kind(kind),
			SchemaVersion: schemaVersion,
			AggregateID:   pgconv.UUIDFromPgtype(aggregate),
			Version:       uint64(version),
			OccurredAt:    pgconv.TimeFromPgtype(occurredAt),
			CorrelationID: pgconv.UUIDFromPgtype(correlation),
			Payload:       json.RawMessage(payload),
		}, nil
	})
	if err != nil {
		return nil, infra.WrapRepoErr("failed to scan events", err)
	}
	return events, nil
}
