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

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type IdempotencyRepository struct {
	db db.DBTX
}

func NewIdempotencyRepository(db db.DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key uuid.UUID) (*shared.IdempotencyRecord, error) {
	var (
		kind, hash           string
		result               []byte
		createdAt, expiresAt pgtype.Timestamptz
	)
	err := r.db.QueryRow(ctx, `
		SELECT command_kind, request_hash, result, created_at, expires_at
		FROM idempotency_keys
		WHERE key = $1`, pgconv.UUIDToPgtype(key)).Scan(&kind, &hash, &result, &createdAt, &expiresAt)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return nil, nil
		}
		return nil, infra.WrapRepoErr("failed to get idempotency key", err)
	}

	rec := &shared.IdempotencyRecord{
		Key:         key,
		CommandKind: kind,
		RequestHash: hash,
		CreatedAt:   pgconv.TimeFromPgtype(createdAt),
		ExpiresAt:   pgconv.TimeFromPgtype(expiresAt),
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, errs.Wrapf(err, "decode idempotency result %s", key)
	}
	return rec, nil
}

// Save only replaces a record that has expired at now. A concurrent insert of
// the same key blocks on the row and then affects nothing.
func (r *IdempotencyRepository) Save(ctx context.Context, rec shared.IdempotencyRecord, now time.Time) error {
	result, err := json.Marshal(messaging.Result{AggregateID: rec.Result.AggregateID, Version: rec.Result.Version})
	if err != nil {
		return errs.Wrap(err, "marshal idempotency result")
	}
	tag, err := r.db.Exec(ctx, `
		INSERT INTO idempotency_keys (key, command_kind, request_hash, result, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (key) DO UPDATE SET
			command_kind = EXCLUDED.command_kind,
			request_hash = EXCLUDED.request_hash,
			result = EXCLUDED.result,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.expires_at <= $7`,
		pgconv.UUIDToPgtype(rec.Key),
		rec.CommandKind,
		rec.RequestHash,
		result,
		pgconv.TimeToPgtype(rec.CreatedAt),
		pgconv.TimeToPgtype(rec.ExpiresAt),
		pgconv.TimeToPgtype(now),
	)
	if err != nil {
		return infra.WrapRepoErr("failed to save idempotency key", err)
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(shared.ErrIdempotencyKeyTaken, "key %s", rec.Key)
	}
	return nil
}
