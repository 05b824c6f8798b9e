// Package contracts holds the public command and event contracts exchanged over the bus.
// Event payloads evolve additively: fields may be added, never renamed or removed.
package contracts

import (
	"time"

	"billiard-hall/internal/messaging"

	"github.com/google/uuid"
)

const (
	RegisterTable   messaging.Kind = "tables.register"
	ChangeTableRate messaging.Kind = "tables.change_rate"
	SetTableStatus  messaging.Kind = "tables.set_status"
	ClearTableError messaging.Kind = "tables.clear_error"
	RetireTable     messaging.Kind = "tables.retire"

	CreateReservation   messaging.Kind = "reservations.create"
	ConfirmReservation  messaging.Kind = "reservations.confirm"
	CancelReservation   messaging.Kind = "reservations.cancel"
	CompleteReservation messaging.Kind = "reservations.complete"

	CreateOrder            messaging.Kind = "orders.create"
	RequestOrderSettlement messaging.Kind = "orders.request_settlement"
	CompleteOrder          messaging.Kind = "orders.complete"
	CancelOrder            messaging.Kind = "orders.cancel"
)

// CommandKinds lists every command this process must be able to handle.
func CommandKinds() []messaging.Kind {
	return []messaging.Kind{
		RegisterTable, ChangeTableRate, SetTableStatus, ClearTableError, RetireTable,
		CreateReservation, ConfirmReservation, CancelReservation, CompleteReservation,
		CreateOrder, RequestOrderSettlement, CompleteOrder, CancelOrder,
	}
}

type RegisterTablePayload struct {
	TableID    uuid.UUID `json:"table_id"`
	Number     int       `json:"number"`
	HourlyRate string    `json:"hourly_rate"`
}

type ChangeTableRatePayload struct {
	TableID    uuid.UUID `json:"table_id"`
	HourlyRate string    `json:"hourly_rate"`
}

// SetTableStatusPayload asks for a status transition. Administrative is set by
// operators only; automatic reactions never set it.
type SetTableStatusPayload struct {
	TableID        uuid.UUID `json:"table_id"`
	Status         string    `json:"status"`
	MemberID       uuid.UUID `json:"member_id,omitempty"`
	Administrative bool      `json:"administrative,omitempty"`
	Reason         string    `json:"reason,omitempty"`
}

type TableRefPayload struct {
	TableID uuid.UUID `json:"table_id"`
}

type CreateReservationPayload struct {
	ReservationID uuid.UUID `json:"reservation_id"`
	TableID       uuid.UUID `json:"table_id"`
	MemberID      uuid.UUID `json:"member_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
}

type ReservationRefPayload struct {
	ReservationID uuid.UUID `json:"reservation_id"`
}

type CreateOrderPayload struct {
	OrderID  uuid.UUID `json:"order_id"`
	MemberID uuid.UUID `json:"member_id"`
	TableID  uuid.UUID `json:"table_id"`
}

type OrderRefPayload struct {
	OrderID uuid.UUID `json:"order_id"`
}
