package reservation

import (
	"time"

	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrInvalidReservationTime        = errs.Define(errs.KindValidation, "InvalidReservationTime", "end time must be after start time")
	ErrReservationInPast             = errs.Define(errs.KindValidation, "ReservationInPast", "reservation cannot start in the past")
	ErrReservationTooFar             = errs.Define(errs.KindValidation, "ReservationTooFar", "reservation starts beyond the booking horizon")
	ErrMemberRequired                = errs.Define(errs.KindValidation, "MemberRequired", "member id is required")
	ErrTimeSlotConflict              = errs.Define(errs.KindConflict, "TimeSlotConflict", "time slot overlaps an existing reservation")
	ErrCannotCancelReservation       = errs.Define(errs.KindConflict, "CannotCancelReservation", "reservation can no longer be cancelled")
	ErrInvalidReservationTransition  = errs.Define(errs.KindConflict, "InvalidReservationTransition", "reservation status transition not allowed")
	ErrReservationNotFound           = errs.Define(errs.KindValidation, "ReservationNotFound", "reservation not found")
	ErrTableNotAcceptingReservations = errs.Define(errs.KindConflict, "TableNotAcceptingReservations", "table does not accept reservations")
)

type Reservation struct {
	id          uuid.UUID
	tableID     uuid.UUID
	memberID    uuid.UUID
	slot        TimeSlot
	status      Status
	version     uint64
	createdAt   time.Time
	updatedAt   time.Time
	cancelledAt *time.Time
}

// NewReservation creates a Pending reservation. Overlap with other reservations is
// checked by the caller under the table lock, see FindConflict.
func NewReservation(id, tableID, memberID uuid.UUID, slot TimeSlot, policy Policy, now time.Time) (*Reservation, error) {
	if memberID == uuid.Nil {
		return nil, ErrMemberRequired
	}
	if !slot.Start().After(now) {
		return nil, ErrReservationInPast
	}
	if slot.Start().After(now.Add(policy.MaxHorizon)) {
		return nil, ErrReservationTooFar
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Reservation{
		id:        id,
		tableID:   tableID,
		memberID:  memberID,
		slot:      slot,
		status:    StatusPending,
		version:   1,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func (r *Reservation) Confirm(now time.Time) error {
	if r.status != StatusPending {
		return ErrInvalidReservationTransition
	}
	r.status = StatusConfirmed
	r.touch(now)
	return nil
}

// Cancel is allowed for Pending or Confirmed reservations up to the cutoff before start.
func (r *Reservation) Cancel(policy Policy, now time.Time) error {
	if r.status != StatusPending && r.status != StatusConfirmed {
		return ErrCannotCancelReservation
	}
	if !now.Before(r.slot.Start().Add(-policy.CancellationCutoff)) {
		return ErrCannotCancelReservation
	}
	r.status = StatusCancelled
	cancelledAt := now
	r.cancelledAt = &cancelledAt
	r.touch(now)
	return nil
}

func (r *Reservation) Complete(now time.Time) error {
	if r.status != StatusConfirmed || now.Before(r.slot.Start()) {
		return ErrInvalidReservationTransition
	}
	r.status = StatusCompleted
	r.touch(now)
	return nil
}

func (r *Reservation) touch(now time.Time) {
	r.version++
	r.updatedAt = now
}

func (r *Reservation) IsActive() bool {
	return r.status == StatusPending || r.status == StatusConfirmed
}

func (r *Reservation) ID() uuid.UUID           { return r.id }
func (r *Reservation) TableID() uuid.UUID      { return r.tableID }
func (r *Reservation) MemberID() uuid.UUID     { return r.memberID }
func (r *Reservation) TimeSlot() TimeSlot      { return r.slot }
func (r *Reservation) Status() Status          { return r.status }
func (r *Reservation) Version() uint64         { return r.version }
func (r *Reservation) CreatedAt() time.Time    { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time    { return r.updatedAt }
func (r *Reservation) CancelledAt() *time.Time { return r.cancelledAt }

// Snapshot is the persisted shape of a Reservation.
type Snapshot struct {
	ID          uuid.UUID
	TableID     uuid.UUID
	MemberID    uuid.UUID
	StartTime   time.Time
	EndTime     time.Time
	Status      Status
	Version     uint64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt *time.Time
}

func (r *Reservation) Snapshot() Snapshot {
	return Snapshot{
		ID:          r.id,
		TableID:     r.tableID,
		MemberID:    r.memberID,
		StartTime:   r.slot.Start(),
		EndTime:     r.slot.End(),
		Status:      r.status,
		Version:     r.version,
		CreatedAt:   r.createdAt,
		UpdatedAt:   r.updatedAt,
		CancelledAt: r.cancelledAt,
	}
}

func Reconstruct(s Snapshot) *Reservation {
	return &Reservation{
		id:          s.ID,
		tableID:     s.TableID,
		memberID:    s.MemberID,
		slot:        TimeSlot{start: s.StartTime.UTC(), end: s.EndTime.UTC()},
		status:      s.Status,
		version:     s.Version,
		createdAt:   s.CreatedAt,
		updatedAt:   s.UpdatedAt,
		cancelledAt: s.CancelledAt,
	}
}
