package table

import (
	"time"

	"billiard-hall/internal/domain/money"

	"github.com/google/uuid"
)

// Snapshot is the persisted shape of a Table.
type Snapshot struct {
	ID              uuid.UUID
	Number          int
	HourlyRateCents int64
	Status          Status
	ReservedFor     *uuid.UUID
	Retired         bool
	Version         uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (t *Table) Snapshot() Snapshot {
	var reservedFor *uuid.UUID
	if t.reservedFor != nil {
		id := *t.reservedFor
		reservedFor = &id
	}
	return Snapshot{
		ID:              t.id,
		Number:          t.number,
		HourlyRateCents: t.hourlyRate.Cents(),
		Status:          t.status,
		ReservedFor:     reservedFor,
		Retired:         t.retired,
		Version:         t.version,
		CreatedAt:       t.createdAt,
		UpdatedAt:       t.updatedAt,
	}
}

func Reconstruct(s Snapshot) *Table {
	var reservedFor *uuid.UUID
	if s.ReservedFor != nil {
		id := *s.ReservedFor
		reservedFor = &id
	}
	return &Table{
		id:          s.ID,
		number:      s.Number,
		hourlyRate:  money.FromCents(s.HourlyRateCents),
		status:      s.Status,
		reservedFor: reservedFor,
		retired:     s.Retired,
		version:     s.Version,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
	}
}
