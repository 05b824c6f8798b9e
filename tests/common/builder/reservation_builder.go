//go:build unit || e2e

package builder

import (
	"time"

	"billiard-hall/internal/contracts"
	domres "billiard-hall/internal/domain/reservation"

	"github.com/google/uuid"
)

type ReservationBuilder struct {
	ID        uuid.UUID
	TableID   uuid.UUID
	MemberID  uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Status    domres.Status
	Version   uint64
	Now       time.Time
	Policy    domres.Policy
}

func NewReservationBuilder() *ReservationBuilder {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour).Truncate(time.Hour).Add(10 * time.Hour)
	return &ReservationBuilder{
		ID:        uuid.New(),
		TableID:   uuid.New(),
		MemberID:  uuid.New(),
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Status:    domres.StatusConfirmed,
		Version:   2,
		Now:       now,
		Policy:    domres.DefaultPolicy(),
	}
}

func (b *ReservationBuilder) With(mutate func(*ReservationBuilder)) *ReservationBuilder {
	mutate(b)
	return b
}

func (b *ReservationBuilder) ForTable(tableID uuid.UUID) *ReservationBuilder {
	b.TableID = tableID
	return b
}

func (b *ReservationBuilder) Between(start, end time.Time) *ReservationBuilder {
	b.StartTime = start
	b.EndTime = end
	return b
}

func (b *ReservationBuilder) WithStatus(status domres.Status) *ReservationBuilder {
	b.Status = status
	return b
}

// Build methods

// BuildDomain goes through the constructor; the result is Pending.
func (b *ReservationBuilder) BuildDomain() (*domres.Reservation, error) {
	slot, err := domres.NewTimeSlot(b.StartTime, b.EndTime)
	if err != nil {
		return nil, err
	}
	return domres.NewReservation(b.ID, b.TableID, b.MemberID, slot, b.Policy, b.Now)
}

func (b *ReservationBuilder) BuildReconstructed() *domres.Reservation {
	return domres.Reconstruct(domres.Snapshot{
		ID:        b.ID,
		TableID:   b.TableID,
		MemberID:  b.MemberID,
		StartTime: b.StartTime,
		EndTime:   b.EndTime,
		Status:    b.Status,
		Version:   b.Version,
		CreatedAt: b.Now,
		UpdatedAt: b.Now,
	})
}

func (b *ReservationBuilder) BuildCreatePayload() contracts.CreateReservationPayload {
	return contracts.CreateReservationPayload{
		ReservationID: b.ID,
		TableID:       b.TableID,
		MemberID:      b.MemberID,
		StartTime:     b.StartTime,
		EndTime:       b.EndTime,
	}
}
