package queries

import (
	"time"

	"github.com/google/uuid"
)

// Read models (DTO for read side)
type TableView struct {
	ID              uuid.UUID  `json:"id"`
	Number          int        `json:"number"`
	Status          string     `json:"status"`
	ReservedFor     *uuid.UUID `json:"reserved_for,omitempty"`
	HourlyRateCents int64      `json:"hourly_rate_cents"`
	HourlyRate      string     `json:"hourly_rate"`
	Retired         bool       `json:"retired"`
	Version         uint64     `json:"version"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type ReservationView struct {
	ID          uuid.UUID  `json:"id"`
	TableID     uuid.UUID  `json:"table_id"`
	MemberID    uuid.UUID  `json:"member_id"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     time.Time  `json:"end_time"`
	Status      string     `json:"status"`
	Version     uint64     `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

type OrderView struct {
	ID              uuid.UUID  `json:"id"`
	MemberID        uuid.UUID  `json:"member_id"`
	TableID         uuid.UUID  `json:"table_id"`
	Status          string     `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	HourlyRateCents int64      `json:"hourly_rate_cents"`
	ChargeCents     int64      `json:"charge_cents"`
	Charge          string     `json:"charge"`
	Version         uint64     `json:"version"`
}
