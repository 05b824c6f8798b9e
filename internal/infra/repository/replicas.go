package repository

import (
	"context"
	"encoding/json"

	"billiard-hall/internal/infra"
	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/pgconv"
	"billiard-hall/internal/usecase/readmodel"

	"github.com/google/uuid"
)

const (
	MemberReplicasTable = "member_replicas"
	TableReplicasTable  = "table_replicas"
)

type versioned interface {
	SyncedVersion() uint64
}

// Replicas is a readmodel.ReplicaStore keeping each replica as a JSONB document.
type Replicas[S versioned] struct {
	db    db.DBTX
	table string
}

func NewMemberReplicas(db db.DBTX) *Replicas[readmodel.MemberReplica] {
	return &Replicas[readmodel.MemberReplica]{db: db, table: MemberReplicasTable}
}

func NewTableReplicas(db db.DBTX) *Replicas[readmodel.TableReplica] {
	return &Replicas[readmodel.TableReplica]{db: db, table: TableReplicasTable}
}

func (r *Replicas[S]) Load(ctx context.Context, id uuid.UUID) (S, bool, error) {
	var (
		zero S
		raw  []byte
	)
	err := r.db.QueryRow(ctx, `SELECT state FROM `+r.table+` WHERE id = $1`, pgconv.UUIDToPgtype(id)).Scan(&raw)
	if err != nil {
		if pgconv.IsNoRows(err) {
			return zero, false, nil
		}
		return zero, false, infra.WrapRepoErr("failed to load "+r.table, err)
	}
	var state S
	if err := json.Unmarshal(raw, &state); err != nil {
		return zero, false, errs.Wrapf(err, "decode %s %s", r.table, id)
	}
	return state, true, nil
}

func (r *Replicas[S]) Save(ctx context.Context, id uuid.UUID, state S) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return errs.Wrapf(err, "encode %s %s", r.table, id)
	}
	_, err = r.db.Exec(ctx, `
		INSERT INTO `+r.table+` (id, state, synced_version, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state,
			synced_version = EXCLUDED.synced_version,
			updated_at = EXCLUDED.updated_at`,
		pgconv.UUIDToPgtype(id), raw, int64(state.SyncedVersion()))
	if err != nil {
		return infra.WrapRepoErr("failed to save "+r.table, err)
	}
	return nil
}
