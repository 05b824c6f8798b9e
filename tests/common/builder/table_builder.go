//go:build unit || e2e

package builder

import (
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/money"
	domtable "billiard-hall/internal/domain/table"

	"github.com/google/uuid"
)

type TableBuilder struct {
	ID          uuid.UUID
	Number      int
	HourlyRate  string
	Status      domtable.Status
	ReservedFor *uuid.UUID
	Retired     bool
	Version     uint64
	Now         time.Time
}

func NewTableBuilder() *TableBuilder {
	return &TableBuilder{
		ID:         uuid.New(),
		Number:     7,
		HourlyRate: "50.00",
		Status:     domtable.StatusIdle,
		Version:    1,
		Now:        time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (b *TableBuilder) With(mutate func(*TableBuilder)) *TableBuilder {
	mutate(b)
	return b
}

func (b *TableBuilder) WithNumber(n int) *TableBuilder {
	b.Number = n
	return b
}

func (b *TableBuilder) WithHourlyRate(rate string) *TableBuilder {
	b.HourlyRate = rate
	return b
}

func (b *TableBuilder) WithStatus(status domtable.Status) *TableBuilder {
	b.Status = status
	return b
}

func (b *TableBuilder) ReservedForMember(memberID uuid.UUID) *TableBuilder {
	b.Status = domtable.StatusReserved
	b.ReservedFor = &memberID
	return b
}

func (b *TableBuilder) WithRetired() *TableBuilder {
	b.Retired = true
	return b
}

// Build methods

// BuildDomain goes through the constructor and ignores Status.
func (b *TableBuilder) BuildDomain() (*domtable.Table, error) {
	rate, err := money.Parse(b.HourlyRate)
	if err != nil {
		return nil, err
	}
	return domtable.NewTable(b.ID, b.Number, rate, b.Now)
}

// BuildReconstructed returns a table already in Status, as if loaded from storage.
func (b *TableBuilder) BuildReconstructed() *domtable.Table {
	return domtable.Reconstruct(b.BuildSnapshot())
}

func (b *TableBuilder) BuildSnapshot() domtable.Snapshot {
	rate, _ := money.Parse(b.HourlyRate)
	return domtable.Snapshot{
		ID:              b.ID,
		Number:          b.Number,
		HourlyRateCents: rate.Cents(),
		Status:          b.Status,
		ReservedFor:     b.ReservedFor,
		Retired:         b.Retired,
		Version:         b.Version,
		CreatedAt:       b.Now,
		UpdatedAt:       b.Now,
	}
}

func (b *TableBuilder) BuildRegisterPayload() contracts.RegisterTablePayload {
	return contracts.RegisterTablePayload{
		TableID:    b.ID,
		Number:     b.Number,
		HourlyRate: b.HourlyRate,
	}
}
