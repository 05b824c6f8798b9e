package readmodel

import (
	"log/slog"
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"

	"github.com/google/uuid"
)

// TableReplica is the Orders module's copy of a billiard table.
type TableReplica struct {
	TableID                uuid.UUID    `json:"table_id"`
	Number                 int          `json:"number"`
	Status                 table.Status `json:"status"`
	ReservedFor            *uuid.UUID   `json:"reserved_for,omitempty"`
	HourlyRateCents        int64        `json:"hourly_rate_cents"`
	Retired                bool         `json:"retired"`
	LastSyncedEventVersion uint64       `json:"last_synced_event_version"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

func (t TableReplica) SyncedVersion() uint64 { return t.LastSyncedEventVersion }

func (t TableReplica) WithSyncedVersion(version uint64) TableReplica {
	t.LastSyncedEventVersion = version
	return t
}

// AvailableFor reports whether memberID may start an order on the table.
func (t TableReplica) AvailableFor(memberID uuid.UUID) bool {
	if t.Retired {
		return false
	}
	switch t.Status {
	case table.StatusIdle:
		return true
	case table.StatusReserved:
		return t.ReservedFor != nil && *t.ReservedFor == memberID
	default:
		return false
	}
}

// FoldTable applies tables.* events. Every known table event carries the full
// snapshot; other kinds only advance the synced version.
func FoldTable(state TableReplica, found bool, evt messaging.Event) (TableReplica, error) {
	if !found {
		state = TableReplica{TableID: evt.AggregateID}
	}
	switch evt.Kind {
	case contracts.TableRegistered, contracts.TableRateChanged, contracts.TableStatusChanged, contracts.TableRetired:
	default:
		return state, nil
	}

	var p contracts.TableSnapshotPayload
	if err := evt.Decode(&p); err != nil {
		return state, err
	}
	status, err := table.ParseStatus(p.Status)
	if err != nil {
		return state, err
	}
	return TableReplica{
		TableID:                evt.AggregateID,
		Number:                 p.Number,
		Status:                 status,
		ReservedFor:            p.ReservedFor,
		HourlyRateCents:        p.HourlyRateCents,
		Retired:                p.Retired,
		LastSyncedEventVersion: state.LastSyncedEventVersion,
		UpdatedAt:              evt.OccurredAt,
	}, nil
}

func NewTableProjector(store ReplicaStore[TableReplica], events GapFiller, logger *slog.Logger) *Projector[TableReplica] {
	return NewProjector("table_replicas", store, FoldTable, events, logger)
}
