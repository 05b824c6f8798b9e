package table

import (
	"time"

	"billiard-hall/internal/domain/money"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrInvalidHourlyRate                = errs.Define(errs.KindValidation, "InvalidHourlyRate", "hourly rate must be greater than zero")
	ErrInvalidTableNumber               = errs.Define(errs.KindValidation, "InvalidTableNumber", "table number must be positive")
	ErrUnknownStatus                    = errs.Define(errs.KindValidation, "UnknownTableStatus", "unknown table status")
	ErrMemberRequired                   = errs.Define(errs.KindValidation, "MemberRequired", "a member is required for this transition")
	ErrCannotChangeStatusFromOutOfOrder = errs.Define(errs.KindConflict, "CannotChangeStatusFromOutOfOrder", "table is out of order; clear the error first")
	ErrInvalidStatusTransition          = errs.Define(errs.KindConflict, "InvalidStatusTransition", "status transition not allowed")
	ErrAdministrativeCommandRequired    = errs.Define(errs.KindConflict, "AdministrativeCommandRequired", "leaving maintenance requires an administrative command")
	ErrTableReservedForAnother          = errs.Define(errs.KindConflict, "TableReservedForAnotherMember", "table is reserved for another member")
	ErrTableBusy                        = errs.Define(errs.KindConflict, "TableBusy", "table is in use or reserved")
	ErrTableRetired                     = errs.Define(errs.KindConflict, "TableRetired", "table is retired")
	ErrTableNumberTaken                 = errs.Define(errs.KindConflict, "TableNumberTaken", "table number already in use")
	ErrTableAlreadyRegistered           = errs.Define(errs.KindConflict, "TableAlreadyRegistered", "table id already registered")
	ErrTableNotFound                    = errs.Define(errs.KindValidation, "TableNotFound", "table not found")
)

// Table is a billiard table. Tables are never deleted, only retired.
type Table struct {
	id          uuid.UUID
	number      int
	hourlyRate  money.Money
	status      Status
	reservedFor *uuid.UUID
	retired     bool
	version     uint64
	createdAt   time.Time
	updatedAt   time.Time
}

// Transition is a requested status change.
type Transition struct {
	Target         Status
	MemberID       uuid.UUID
	Administrative bool
	Reason         string
}

func NewTable(id uuid.UUID, number int, hourlyRate money.Money, now time.Time) (*Table, error) {
	if number <= 0 {
		return nil, ErrInvalidTableNumber
	}
	if !hourlyRate.IsPositive() {
		return nil, ErrInvalidHourlyRate
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Table{
		id:         id,
		number:     number,
		hourlyRate: hourlyRate,
		status:     StatusIdle,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ChangeStatus applies tr or returns why the state machine refuses it.
func (t *Table) ChangeStatus(tr Transition, now time.Time) error {
	if t.retired {
		return ErrTableRetired
	}
	if t.status == StatusError {
		return ErrCannotChangeStatusFromOutOfOrder
	}
	if !tr.Target.IsValid() {
		return ErrUnknownStatus
	}

	switch tr.Target {
	case StatusError:
		t.apply(StatusError, nil, now)
		return nil
	case StatusMaintenance:
		if t.status == StatusMaintenance {
			return ErrInvalidStatusTransition
		}
		t.apply(StatusMaintenance, nil, now)
		return nil
	}

	switch t.status {
	case StatusMaintenance:
		if tr.Target != StatusIdle {
			return ErrInvalidStatusTransition
		}
		if !tr.Administrative {
			return ErrAdministrativeCommandRequired
		}
		t.apply(StatusIdle, nil, now)
		return nil

	case StatusIdle:
		switch tr.Target {
		case StatusInUse:
			t.apply(StatusInUse, nil, now)
			return nil
		case StatusReserved:
			if tr.MemberID == uuid.Nil {
				return ErrMemberRequired
			}
			member := tr.MemberID
			t.apply(StatusReserved, &member, now)
			return nil
		}

	case StatusReserved:
		switch tr.Target {
		case StatusIdle:
			t.apply(StatusIdle, nil, now)
			return nil
		case StatusInUse:
			if tr.MemberID == uuid.Nil || t.reservedFor == nil || *t.reservedFor != tr.MemberID {
				return ErrTableReservedForAnother
			}
			t.apply(StatusInUse, nil, now)
			return nil
		}

	case StatusInUse:
		if tr.Target == StatusIdle {
			t.apply(StatusIdle, nil, now)
			return nil
		}
	}

	return ErrInvalidStatusTransition
}

// ClearError is the only way out of the Error state.
func (t *Table) ClearError(now time.Time) error {
	if t.retired {
		return ErrTableRetired
	}
	if t.status != StatusError {
		return ErrInvalidStatusTransition
	}
	t.apply(StatusIdle, nil, now)
	return nil
}

func (t *Table) ChangeRate(rate money.Money, now time.Time) error {
	if t.retired {
		return ErrTableRetired
	}
	if !rate.IsPositive() {
		return ErrInvalidHourlyRate
	}
	t.hourlyRate = rate
	t.touch(now)
	return nil
}

func (t *Table) Retire(now time.Time) error {
	if t.retired {
		return ErrTableRetired
	}
	if t.status == StatusInUse || t.status == StatusReserved {
		return ErrTableBusy
	}
	t.retired = true
	t.touch(now)
	return nil
}

// AcceptsReservations reports whether future bookings may be taken for the table.
func (t *Table) AcceptsReservations() bool {
	return !t.retired && t.status != StatusError
}

func (t *Table) apply(status Status, reservedFor *uuid.UUID, now time.Time) {
	t.status = status
	t.reservedFor = reservedFor
	t.touch(now)
}

func (t *Table) touch(now time.Time) {
	t.version++
	t.updatedAt = now
}

func (t *Table) ID() uuid.UUID           { return t.id }
func (t *Table) Number() int             { return t.number }
func (t *Table) HourlyRate() money.Money { return t.hourlyRate }
func (t *Table) Status() Status          { return t.status }
func (t *Table) ReservedFor() *uuid.UUID { return t.reservedFor }
func (t *Table) Retired() bool           { return t.retired }
func (t *Table) Version() uint64         { return t.version }
func (t *Table) CreatedAt() time.Time    { return t.createdAt }
func (t *Table) UpdatedAt() time.Time    { return t.updatedAt }
