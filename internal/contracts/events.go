package contracts

import (
	"time"

	"billiard-hall/internal/messaging"

	"github.com/google/uuid"
)

const (
	TableRegistered    messaging.Kind = "tables.registered"
	TableRateChanged   messaging.Kind = "tables.rate_changed"
	TableStatusChanged messaging.Kind = "tables.status_changed"
	TableRetired       messaging.Kind = "tables.retired"

	ReservationCreated   messaging.Kind = "reservations.created"
	ReservationConfirmed messaging.Kind = "reservations.confirmed"
	ReservationCancelled messaging.Kind = "reservations.cancelled"
	ReservationCompleted messaging.Kind = "reservations.completed"

	OrderStarted             messaging.Kind = "orders.started"
	OrderSettlementRequested messaging.Kind = "orders.settlement_requested"
	OrderCompleted           messaging.Kind = "orders.completed"
	OrderCancelled           messaging.Kind = "orders.cancelled"

	// Published by the Members module; consumed here only.
	MemberRegistered    messaging.Kind = "members.registered"
	MemberStatusChanged messaging.Kind = "members.status_changed"
	MemberEvents        messaging.Kind = "members.*"
	TableEvents         messaging.Kind = "tables.*"
	OrderEvents         messaging.Kind = "orders.*"
)

func TableEventKinds() []messaging.Kind {
	return []messaging.Kind{TableRegistered, TableRateChanged, TableStatusChanged, TableRetired}
}

func ExportedEventKinds() []messaging.Kind {
	return []messaging.Kind{
		TableRegistered, TableRateChanged, TableStatusChanged, TableRetired,
		ReservationCreated, ReservationConfirmed, ReservationCancelled, ReservationCompleted,
		OrderStarted, OrderSettlementRequested, OrderCompleted, OrderCancelled,
	}
}

// TableSnapshotPayload is carried by every tables.* event so replicas can rebuild
// the table from any single event.
type TableSnapshotPayload struct {
	TableID         uuid.UUID  `json:"table_id"`
	Number          int        `json:"number"`
	Status          string     `json:"status"`
	PreviousStatus  string     `json:"previous_status,omitempty"`
	ReservedFor     *uuid.UUID `json:"reserved_for,omitempty"`
	HourlyRateCents int64      `json:"hourly_rate_cents"`
	Retired         bool       `json:"retired"`
	Reason          string     `json:"reason,omitempty"`
}

type ReservationPayload struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	TableID       uuid.UUID `json:"table_id"`
	MemberID      uuid.UUID `json:"member_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
}

type OrderPayload struct {
	OrderID         uuid.UUID  `json:"order_id"`
	MemberID        uuid.UUID  `json:"member_id"`
	TableID         uuid.UUID  `json:"table_id"`
	Status          string     `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	HourlyRateCents int64      `json:"hourly_rate_cents"`
	ChargeCents     int64      `json:"charge_cents"`
}

type MemberStatusPayload struct {
	MemberID uuid.UUID `json:"member_id"`
	IsActive bool      `json:"is_active"`
	Reason   string    `json:"reason,omitempty"`
}
