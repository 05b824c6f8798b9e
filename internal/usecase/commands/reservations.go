package commands

import (
	"context"
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
)

// ReservationCommands serializes every reservation change of a table on the
// table's lock, which is what keeps accepted slots from overlapping.
type ReservationCommands struct {
	pipeline *Pipeline
	reads    shared.CommandReads
	policy   reservation.Policy
}

func NewReservationCommands(pipeline *Pipeline, uow shared.UnitOfWork, policy reservation.Policy) *ReservationCommands {
	return &ReservationCommands{pipeline: pipeline, reads: uow.CommandReads(), policy: policy}
}

func (c *ReservationCommands) Register(r *messaging.Registry) error {
	return register(r,
		handlerEntry{contracts.CreateReservation, c.Create},
		handlerEntry{contracts.ConfirmReservation, c.Confirm},
		handlerEntry{contracts.CancelReservation, c.Cancel},
		handlerEntry{contracts.CompleteReservation, c.Complete},
	)
}

// Create books a slot and confirms it once no overlapping reservation exists.
func (c *ReservationCommands) Create(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.CreateReservationPayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	if p.TableID == uuid.Nil {
		return messaging.Result{}, errs.Wrap(table.ErrTableNotFound, "table id is empty")
	}
	if p.MemberID == uuid.Nil {
		return messaging.Result{}, reservation.ErrMemberRequired
	}
	slot, err := reservation.NewTimeSlot(p.StartTime, p.EndTime)
	if err != nil {
		return messaging.Result{}, err
	}
	id := aggregateIDFor(p.ReservationID, cmd.CorrelationID)

	return c.pipeline.Execute(ctx, cmd, p, []string{tableKey(p.TableID)}, func(ctx context.Context, tx shared.Tx, now time.Time) (Outcome, error) {
		t, err := tx.Tables().Get(ctx, p.TableID)
		if err != nil {
			return Outcome{}, err
		}
		if !t.AcceptsReservations() {
			return Outcome{}, errs.Wrapf(reservation.ErrTableNotAcceptingReservations, "table #%d is %s", t.Number(), t.Status())
		}

		r, err := reservation.NewReservation(id, p.TableID, p.MemberID, slot, c.policy, now)
		if err != nil {
			return Outcome{}, err
		}

		from, to := slot.DayWindow()
		existing, err := tx.Reservations().ListByTableWindow(ctx, p.TableID, from, to)
		if err != nil {
			return Outcome{}, err
		}
		if conflict := reservation.FindConflict(existing, slot, id); conflict != nil {
			return Outcome{}, errs.Wrapf(reservation.ErrTimeSlotConflict, "overlaps reservation %s", conflict.ID())
		}

		created, err := reservationEvent(contracts.ReservationCreated, r, now)
		if err != nil {
			return Outcome{}, err
		}
		if err := r.Confirm(now); err != nil {
			return Outcome{}, err
		}
		confirmed, err := reservationEvent(contracts.ReservationConfirmed, r, now)
		if err != nil {
			return Outcome{}, err
		}
		if err := tx.Reservations().Save(ctx, r); err != nil {
			return Outcome{}, err
		}
		return Outcome{AggregateID: r.ID(), Version: r.Version(), Events: []messaging.Event{created, confirmed}}, nil
	})
}

func (c *ReservationCommands) Confirm(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	return c.transition(ctx, cmd, contracts.ReservationConfirmed, func(r *reservation.Reservation, now time.Time) error {
		return r.Confirm(now)
	})
}

func (c *ReservationCommands) Cancel(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	return c.transition(ctx, cmd, contracts.ReservationCancelled, func(r *reservation.Reservation, now time.Time) error {
		return r.Cancel(c.policy, now)
	})
}

func (c *ReservationCommands) Complete(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	return c.transition(ctx, cmd, contracts.ReservationCompleted, func(r *reservation.Reservation, now time.Time) error {
		return r.Complete(now)
	})
}

func (c *ReservationCommands) transition(
	ctx context.Context,
	cmd messaging.Command,
	kind messaging.Kind,
	apply func(r *reservation.Reservation, now time.Time) error,
) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.ReservationRefPayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	// The table id is needed for the lock key before the transaction starts.
	snap, err := c.reads.ReservationByID(ctx, p.ReservationID)
	if err != nil {
		return messaging.Result{}, err
	}
	if snap == nil {
		return messaging.Result{}, reservation.ErrReservationNotFound
	}

	return c.pipeline.Execute(ctx, cmd, p, []string{tableKey(snap.TableID)}, func(ctx context.Context, tx shared.Tx, now time.Time) (Outcome, error) {
		r, err := tx.Reservations().Get(ctx, p.ReservationID)
		if err != nil {
			return Outcome{}, err
		}
		if err := apply(r, now); err != nil {
			return Outcome{}, err
		}
		if err := tx.Reservations().Save(ctx, r); err != nil {
			return Outcome{}, err
		}
		evt, err := reservationEvent(kind, r, now)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{AggregateID: r.ID(), Version: r.Version(), Events: []messaging.Event{evt}}, nil
	})
}
