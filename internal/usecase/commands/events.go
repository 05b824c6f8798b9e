package commands

import (
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"

	"github.com/google/uuid"
)

var aggregateNamespace = uuid.MustParse("6f1c2a4e-3b7d-4e8a-9c1f-5d2b8a7e4c90")

// aggregateIDFor returns id, or an id derived from the correlation id when the
// caller left it empty, so a resent command targets the same aggregate.
func aggregateIDFor(id, correlationID uuid.UUID) uuid.UUID {
	if id != uuid.Nil {
		return id
	}
	return uuid.NewSHA1(aggregateNamespace, correlationID[:])
}

func tableEvent(kind messaging.Kind, t *table.Table, previous table.Status, reason string, now time.Time) (messaging.Event, error) {
	return messaging.NewEvent(kind, t.ID(), t.Version(), now, contracts.TableSnapshotPayload{
		TableID:         t.ID(),
		Number:          t.Number(),
		Status:          string(t.Status()),
		PreviousStatus:  string(previous),
		ReservedFor:     t.ReservedFor(),
		HourlyRateCents: t.HourlyRate().Cents(),
		Retired:         t.Retired(),
		Reason:          reason,
	})
}

func reservationEvent(kind messaging.Kind, r *reservation.Reservation, now time.Time) (messaging.Event, error) {
	return messaging.NewEvent(kind, r.ID(), r.Version(), now, contracts.ReservationPayload{
		ReservationID: r.ID(),
		TableID:       r.TableID(),
		MemberID:      r.MemberID(),
		StartTime:     r.TimeSlot().Start(),
		EndTime:       r.TimeSlot().End(),
		Status:        string(r.Status()),
	})
}

func orderEvent(kind messaging.Kind, o *order.Order, now time.Time) (messaging.Event, error) {
	return messaging.NewEvent(kind, o.ID(), o.Version(), now, contracts.OrderPayload{
		OrderID:         o.ID(),
		MemberID:        o.MemberID(),
		TableID:         o.TableID(),
		Status:          string(o.Status()),
		StartTime:       o.StartTime(),
		EndTime:         o.EndTime(),
		HourlyRateCents: o.HourlyRate().Cents(),
		ChargeCents:     o.Charge().Cents(),
	})
}

type handlerEntry struct {
	kind    messaging.Kind
	handler messaging.CommandHandlerFunc
}

func register(r *messaging.Registry, entries ...handlerEntry) error {
	for _, e := range entries {
		if err := r.RegisterCommand(e.kind, e.handler); err != nil {
			return err
		}
	}
	return nil
}
