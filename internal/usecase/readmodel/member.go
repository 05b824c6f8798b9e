package readmodel

import (
	"log/slog"
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/messaging"

	"github.com/google/uuid"
)

// MemberReplica is the Orders module's copy of a member's standing.
type MemberReplica struct {
	MemberID               uuid.UUID `json:"member_id"`
	IsActive               bool      `json:"is_active"`
	LastSyncedEventVersion uint64    `json:"last_synced_event_version"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (m MemberReplica) SyncedVersion() uint64 { return m.LastSyncedEventVersion }

func (m MemberReplica) WithSyncedVersion(version uint64) MemberReplica {
	m.LastSyncedEventVersion = version
	return m
}

// FoldMember applies members.* events. Kinds without a status change only
// advance the synced version, so the sequence stays gap-free.
func FoldMember(state MemberReplica, found bool, evt messaging.Event) (MemberReplica, error) {
	if !found {
		state = MemberReplica{MemberID: evt.AggregateID}
	}
	switch evt.Kind {
	case contracts.MemberRegistered, contracts.MemberStatusChanged:
		var p contracts.MemberStatusPayload
		if err := evt.Decode(&p); err != nil {
			return state, err
		}
		state.IsActive = p.IsActive
		state.UpdatedAt = evt.OccurredAt
	}
	return state, nil
}

// NewMemberProjector has no gap filler: members events come from another process.
func NewMemberProjector(store ReplicaStore[MemberReplica], logger *slog.Logger) *Projector[MemberReplica] {
	return NewProjector("member_replicas", store, FoldMember, nil, logger)
}
