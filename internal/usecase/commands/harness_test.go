//go:build unit

package commands_test

import (
	"context"
	"testing"
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/infra/memstore"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/config"
	"billiard-hall/internal/pkg/keylock"
	"billiard-hall/internal/pkg/logger"
	"billiard-hall/internal/usecase/commands"
	"billiard-hall/internal/usecase/readmodel"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

type countingNotifier struct{ n int }

func (c *countingNotifier) Notify() { c.n++ }

type harness struct {
	store    *memstore.Store
	clock    *clock.MockClock
	registry *messaging.Registry
	bus      *messaging.Bus
	members  *memstore.Replicas[readmodel.MemberReplica]
	tables   *memstore.Replicas[readmodel.TableReplica]
	notifier *countingNotifier
}

// newHarness wires every command handler over the in-memory store. extra may
// register more handlers before the registry is sealed.
func newHarness(t *testing.T, extra ...func(r *messaging.Registry)) *harness {
	t.Helper()
	cfg := config.NewTestConfig()
	h := &harness{
		store:    memstore.New(),
		clock:    clock.NewMockClock(baseTime),
		registry: messaging.NewRegistry(),
		members:  memstore.NewReplicas[readmodel.MemberReplica](),
		tables:   memstore.NewReplicas[readmodel.TableReplica](),
		notifier: &countingNotifier{},
	}

	pipeline := commands.NewPipeline(h.store, keylock.New(cfg.Lock.AcquireTimeout), h.clock, h.notifier, cfg.Idempotency.TTL, logger.Discard())
	policy := reservation.Policy{MaxHorizon: cfg.Reservation.MaxHorizon, CancellationCutoff: cfg.Reservation.CancellationCutoff}
	require.NoError(t, commands.NewTableCommands(pipeline).Register(h.registry))
	require.NoError(t, commands.NewReservationCommands(pipeline, h.store, policy).Register(h.registry))
	require.NoError(t, commands.NewOrderCommands(pipeline, h.members, h.tables).Register(h.registry))
	for _, fn := range extra {
		fn(h.registry)
	}
	h.registry.Require(contracts.CommandKinds()...)
	require.NoError(t, h.registry.Seal())

	h.bus = messaging.NewBus(h.registry, messaging.NewMemoryDeadLetters(), h.clock, logger.Discard(), messaging.RetryPolicy{MaxAttempts: 1})
	return h
}

func (h *harness) send(kind messaging.Kind, payload any) (messaging.Result, error) {
	return h.bus.Send(context.Background(), messaging.NewCommand(kind, uuid.New(), payload))
}

func (h *harness) registerTable(t *testing.T, number int, rate string) uuid.UUID {
	t.Helper()
	res, err := h.send(contracts.RegisterTable, contracts.RegisterTablePayload{Number: number, HourlyRate: rate})
	require.NoError(t, err)
	return res.AggregateID
}

func (h *harness) setStatus(tableID uuid.UUID, status table.Status, memberID uuid.UUID) error {
	_, err := h.send(contracts.SetTableStatus, contracts.SetTableStatusPayload{TableID: tableID, Status: string(status), MemberID: memberID})
	return err
}

func (h *harness) reserve(tableID, memberID uuid.UUID, start, end time.Time) (messaging.Result, error) {
	return h.send(contracts.CreateReservation, contracts.CreateReservationPayload{
		TableID:   tableID,
		MemberID:  memberID,
		StartTime: start,
		EndTime:   end,
	})
}

func (h *harness) tableSnapshot(t *testing.T, id uuid.UUID) table.Snapshot {
	t.Helper()
	snap, err := h.store.TableByID(context.Background(), id)
	require.NoError(t, err)
	return *snap
}

func (h *harness) seedMember(t *testing.T, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, h.members.Save(context.Background(), id, readmodel.MemberReplica{MemberID: id, IsActive: active, LastSyncedEventVersion: 1}))
	return id
}

func (h *harness) seedTableReplica(t *testing.T, replica readmodel.TableReplica) uuid.UUID {
	t.Helper()
	if replica.TableID == uuid.Nil {
		replica.TableID = uuid.New()
	}
	if replica.Status == "" {
		replica.Status = table.StatusIdle
	}
	require.NoError(t, h.tables.Save(context.Background(), replica.TableID, replica))
	return replica.TableID
}

func (h *harness) events(t *testing.T, aggregateID uuid.UUID) []messaging.Event {
	t.Helper()
	events, err := h.store.Since(context.Background(), aggregateID, 0)
	require.NoError(t, err)
	return events
}
