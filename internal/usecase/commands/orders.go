package commands

import (
	"context"
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/money"
	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/usecase/readmodel"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
)

// OrderCommands validates members and tables against local replicas only; the
// Members and Tables modules are never queried synchronously.
type OrderCommands struct {
	pipeline *Pipeline
	members  readmodel.ReplicaStore[readmodel.MemberReplica]
	tables   readmodel.ReplicaStore[readmodel.TableReplica]
}

func NewOrderCommands(
	pipeline *Pipeline,
	members readmodel.ReplicaStore[readmodel.MemberReplica],
	tables readmodel.ReplicaStore[readmodel.TableReplica],
) *OrderCommands {
	return &OrderCommands{pipeline: pipeline, members: members, tables: tables}
}

func (c *OrderCommands) Register(r *messaging.Registry) error {
	return register(r,
		handlerEntry{contracts.CreateOrder, c.Create},
		handlerEntry{contracts.RequestOrderSettlement, c.RequestSettlement},
		handlerEntry{contracts.CompleteOrder, c.Complete},
		handlerEntry{contracts.CancelOrder, c.Cancel},
	)
}

func (c *OrderCommands) Create(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.CreateOrderPayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	if p.MemberID == uuid.Nil {
		return messaging.Result{}, order.ErrMemberRequired
	}
	if p.TableID == uuid.Nil {
		return messaging.Result{}, order.ErrTableRequired
	}

	member, found, err := c.members.Load(ctx, p.MemberID)
	if err != nil {
		return messaging.Result{}, errs.Wrap(err, "load member replica")
	}
	if !found {
		return messaging.Result{}, errs.Wrapf(order.ErrMemberUnknown, "member %s", p.MemberID)
	}
	if !member.IsActive {
		return messaging.Result{}, errs.Wrapf(order.ErrMemberInactive, "member %s", p.MemberID)
	}

	tbl, found, err := c.tables.Load(ctx, p.TableID)
	if err != nil {
		return messaging.Result{}, errs.Wrap(err, "load table replica")
	}
	if !found {
		return messaging.Result{}, errs.Wrapf(order.ErrTableUnavailable, "table %s is unknown", p.TableID)
	}
	if !tbl.AvailableFor(p.MemberID) {
		return messaging.Result{}, errs.Wrapf(order.ErrTableUnavailable, "table #%d is %s", tbl.Number, tbl.Status)
	}
	id := aggregateIDFor(p.OrderID, cmd.CorrelationID)
	rate := money.FromCents(tbl.HourlyRateCents)

	return c.pipeline.Execute(ctx, cmd, p, []string{orderTableKey(p.TableID)}, func(ctx context.Context, tx shared.Tx, now time.Time) (Outcome, error) {
		active, err := tx.Orders().FindActiveByTable(ctx, p.TableID)
		if err != nil {
			return Outcome{}, err
		}
		if active != nil {
			return Outcome{}, errs.Wrapf(order.ErrTableUnavailable, "order %s is active on the table", active.ID())
		}

		o, err := order.NewOrder(id, p.MemberID, p.TableID, rate, now)
		if err != nil {
			return Outcome{}, err
		}
		return saveOrder(ctx, tx, o, contracts.OrderStarted, now)
	})
}

func (c *OrderCommands) RequestSettlement(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	return c.transition(ctx, cmd, contracts.OrderSettlementRequested, (*order.Order).RequestSettlement)
}

func (c *OrderCommands) Complete(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	return c.transition(ctx, cmd, contracts.OrderCompleted, (*order.Order).Complete)
}

func (c *OrderCommands) Cancel(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	return c.transition(ctx, cmd, contracts.OrderCancelled, (*order.Order).Cancel)
}

func (c *OrderCommands) transition(
	ctx context.Context,
	cmd messaging.Command,
	kind messaging.Kind,
	apply func(o *order.Order, now time.Time) error,
) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.OrderRefPayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	if p.OrderID == uuid.Nil {
		return messaging.Result{}, errs.Wrap(order.ErrOrderNotFound, "order id is empty")
	}

	return c.pipeline.Execute(ctx, cmd, p, []string{orderKey(p.OrderID)}, func(ctx context.Context, tx shared.Tx, now time.Time) (Outcome, error) {
		o, err := tx.Orders().Get(ctx, p.OrderID)
		if err != nil {
			return Outcome{}, err
		}
		if err := apply(o, now); err != nil {
			return Outcome{}, err
		}
		return saveOrder(ctx, tx, o, kind, now)
	})
}

func saveOrder(ctx context.Context, tx shared.Tx, o *order.Order, kind messaging.Kind, now time.Time) (Outcome, error) {
	if err := tx.Orders().Save(ctx, o); err != nil {
		return Outcome{}, err
	}
	evt, err := orderEvent(kind, o, now)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{AggregateID: o.ID(), Version: o.Version(), Events: []messaging.Event{evt}}, nil
}
