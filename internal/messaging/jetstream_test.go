//go:build unit

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/logger"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectFor(t *testing.T) {
	assert.Equal(t, "billiard.event.members.status_changed", SubjectFor("billiard", "members.status_changed"))
}

func TestDurableName(t *testing.T) {
	assert.Equal(t, "orders-replicas_billiard_event_members_all", durableName("orders-replicas", "billiard.event.members.>"))
}

func TestDecodeWireEvent(t *testing.T) {
	memberID := uuid.New()
	evt, err := NewEvent("members.status_changed", memberID, 3, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), map[string]any{
		"member_id": memberID,
		"is_active": true,
	})
	require.NoError(t, err)

	data, err := json.Marshal(evt)
	require.NoError(t, err)

	got, err := DecodeWireEvent(data)
	require.NoError(t, err)
	if diff := cmp.Diff(evt, got); diff != "" {
		t.Errorf("DecodeWireEvent() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeWireEvent_Rejects(t *testing.T) {
	_, err := DecodeWireEvent([]byte("{not json"))
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = DecodeWireEvent([]byte(`{"id":"` + uuid.NewString() + `","kind":"members.status_changed","aggregate_id":"` + uuid.NewString() + `","version":1}`))
	assert.True(t, errors.Is(err, ErrMissingSchemaVersion))
}

func TestJetStreamBridge_HandleImportedWaitsForSubscribers(t *testing.T) {
	var handled atomic.Int32
	bus, _ := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.Subscribe("members.*", "member_replicas", EventHandlerFunc(func(context.Context, Event) error {
			time.Sleep(5 * time.Millisecond)
			handled.Add(1)
			return nil
		})))
	})
	bridge := &JetStreamBridge{bus: bus, logger: logger.Discard()}

	err := bridge.handleImported(testEvent(t, "members.registered", uuid.New(), 1))

	require.NoError(t, err)
	assert.Equal(t, int32(1), handled.Load(), "ack must follow the replica update")
}

func TestJetStreamBridge_HandleImportedFailsWhenBusStops(t *testing.T) {
	started := make(chan struct{}, 1)
	bus, _ := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.Subscribe("members.*", "member_replicas", EventHandlerFunc(func(ctx context.Context, _ Event) error {
			select {
			case started <- struct{}{}:
			default:
			}
			<-ctx.Done()
			return errs.MarkKind(ctx.Err(), errs.KindInfrastructure)
		})))
	})
	bridge := &JetStreamBridge{bus: bus, logger: logger.Discard()}

	result := make(chan error, 1)
	go func() { result <- bridge.handleImported(testEvent(t, "members.registered", uuid.New(), 1)) }()
	<-started
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_ = bus.Stop(ctx)

	select {
	case err := <-result:
		assert.True(t, errors.Is(err, ErrDeliveryAbandoned), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("import did not give up after the bus stopped")
	}
	assert.True(t, errors.Is(bridge.handleImported(testEvent(t, "members.registered", uuid.New(), 2)), ErrBusClosed))
}
