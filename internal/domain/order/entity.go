package order

import (
	"time"

	"billiard-hall/internal/domain/money"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

var (
	ErrMemberRequired         = errs.Define(errs.KindValidation, "MemberRequired", "member id is required")
	ErrTableRequired          = errs.Define(errs.KindValidation, "TableRequired", "table id is required")
	ErrMemberUnknown          = errs.Define(errs.KindValidation, "MemberUnknown", "member is not known to the orders module")
	ErrMemberInactive         = errs.Define(errs.KindValidation, "MemberInactive", "member is not active")
	ErrTableUnavailable       = errs.Define(errs.KindConflict, "TableUnavailable", "table is not available for a new order")
	ErrInvalidOrderTransition = errs.Define(errs.KindConflict, "InvalidOrderTransition", "order status transition not allowed")
	ErrOrderNotFound          = errs.Define(errs.KindValidation, "OrderNotFound", "order not found")
)

// Order is one playing session on one table, billed at the rate captured when it started.
type Order struct {
	id         uuid.UUID
	memberID   uuid.UUID
	tableID    uuid.UUID
	status     Status
	hourlyRate money.Money
	startTime  time.Time
	endTime    *time.Time
	charge     money.Money
	version    uint64
	createdAt  time.Time
	updatedAt  time.Time
}

func NewOrder(id, memberID, tableID uuid.UUID, hourlyRate money.Money, now time.Time) (*Order, error) {
	if memberID == uuid.Nil {
		return nil, ErrMemberRequired
	}
	if tableID == uuid.Nil {
		return nil, ErrTableRequired
	}
	if id == uuid.Nil {
		id = uuid.New()
	}
	return &Order{
		id:         id,
		memberID:   memberID,
		tableID:    tableID,
		status:     StatusActive,
		hourlyRate: hourlyRate,
		startTime:  now,
		version:    1,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// RequestSettlement stops the clock and computes the charge.
func (o *Order) RequestSettlement(now time.Time) error {
	if o.status != StatusActive {
		return ErrInvalidOrderTransition
	}
	end := now
	if end.Before(o.startTime) {
		end = o.startTime
	}
	o.endTime = &end
	o.charge = money.ForDuration(o.hourlyRate, end.Sub(o.startTime))
	o.status = StatusPendingSettlement
	o.touch(now)
	return nil
}

func (o *Order) Complete(now time.Time) error {
	if o.status != StatusPendingSettlement {
		return ErrInvalidOrderTransition
	}
	o.status = StatusCompleted
	o.touch(now)
	return nil
}

// Cancel voids an active order without charge.
func (o *Order) Cancel(now time.Time) error {
	if o.status != StatusActive {
		return ErrInvalidOrderTransition
	}
	end := now
	o.endTime = &end
	o.charge = money.Money{}
	o.status = StatusCancelled
	o.touch(now)
	return nil
}

func (o *Order) touch(now time.Time) {
	o.version++
	o.updatedAt = now
}

func (o *Order) ID() uuid.UUID           { return o.id }
func (o *Order) MemberID() uuid.UUID     { return o.memberID }
func (o *Order) TableID() uuid.UUID      { return o.tableID }
func (o *Order) Status() Status          { return o.status }
func (o *Order) HourlyRate() money.Money { return o.hourlyRate }
func (o *Order) StartTime() time.Time    { return o.startTime }
func (o *Order) EndTime() *time.Time     { return o.endTime }
func (o *Order) Charge() money.Money     { return o.charge }
func (o *Order) Version() uint64         { return o.version }
func (o *Order) CreatedAt() time.Time    { return o.createdAt }
func (o *Order) UpdatedAt() time.Time    { return o.updatedAt }

// Snapshot is the persisted shape of an Order.
type Snapshot struct {
	ID              uuid.UUID
	MemberID        uuid.UUID
	TableID         uuid.UUID
	Status          Status
	HourlyRateCents int64
	StartTime       time.Time
	EndTime         *time.Time
	ChargeCents     int64
	Version         uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:              o.id,
		MemberID:        o.memberID,
		TableID:         o.tableID,
		Status:          o.status,
		HourlyRateCents: o.hourlyRate.Cents(),
		StartTime:       o.startTime,
		EndTime:         o.endTime,
		ChargeCents:     o.charge.Cents(),
		Version:         o.version,
		CreatedAt:       o.createdAt,
		UpdatedAt:       o.updatedAt,
	}
}

func Reconstruct(s Snapshot) *Order {
	return &Order{
		id:         s.ID,
		memberID:   s.MemberID,
		tableID:    s.TableID,
		status:     s.Status,
		hourlyRate: money.FromCents(s.HourlyRateCents),
		startTime:  s.StartTime,
		endTime:    s.EndTime,
		charge:     money.FromCents(s.ChargeCents),
		version:    s.Version,
		createdAt:  s.CreatedAt,
		updatedAt:  s.UpdatedAt,
	}
}
