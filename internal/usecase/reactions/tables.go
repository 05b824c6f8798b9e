// Package reactions lets the Tables module follow Orders through events. It only
// ever sends commands over the bus and never reaches into another module's state.
package reactions

import (
	"context"
	"log/slog"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

const Subscriber = "tables.order-reactions"

var correlationNamespace = uuid.MustParse("2b9e7c1d-8a43-4f6e-b5d0-93c7e1a4f218")

// CommandSender is the synchronous half of the bus.
type CommandSender interface {
	Send(ctx context.Context, cmd messaging.Command) (messaging.Result, error)
}

type TableReactions struct {
	sender CommandSender
	inbox  messaging.InboxStore
	clock  clock.Clock
	logger *slog.Logger
}

func NewTableReactions(sender CommandSender, inbox messaging.InboxStore, clk clock.Clock, logger *slog.Logger) *TableReactions {
	return &TableReactions{sender: sender, inbox: inbox, clock: clk, logger: logger}
}

// Register subscribes to every orders event on one queue so the status changes
// of an order are sent in the order they happened.
func (r *TableReactions) Register(reg *messaging.Registry) error {
	handler := messaging.Deduplicate(Subscriber, r.inbox, r.clock, r.logger, messaging.EventHandlerFunc(r.Handle))
	return reg.Subscribe(contracts.OrderEvents, Subscriber, handler)
}

// Handle turns an order event into a tables.set_status command. The command's
// correlation id is derived from the event id so a redelivered event replays.
func (r *TableReactions) Handle(ctx context.Context, evt messaging.Event) error {
	switch evt.Kind {
	case contracts.OrderStarted, contracts.OrderSettlementRequested, contracts.OrderCancelled:
	default:
		return nil
	}
	var p contracts.OrderPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	payload := contracts.SetTableStatusPayload{TableID: p.TableID}
	switch evt.Kind {
	case contracts.OrderStarted:
		payload.Status = string(table.StatusInUse)
		payload.MemberID = p.MemberID
		payload.Reason = "order " + p.OrderID.String() + " started"
	case contracts.OrderSettlementRequested:
		payload.Status = string(table.StatusIdle)
		payload.Reason = "order " + p.OrderID.String() + " settled"
	case contracts.OrderCancelled:
		payload.Status = string(table.StatusIdle)
		payload.Reason = "order " + p.OrderID.String() + " cancelled"
	}

	cmd := messaging.NewCommand(contracts.SetTableStatus, uuid.NewSHA1(correlationNamespace, evt.ID[:]), payload)
	_, err := r.sender.Send(ctx, cmd)
	if err == nil {
		return nil
	}
	if errs.KindOf(err) == errs.KindConflict {
		r.logger.Warn("Table rejected status change from order",
			slog.String("event_kind", string(evt.Kind)),
			slog.String("order_id", p.OrderID.String()),
			slog.String("table_id", p.TableID.String()),
			slog.String("code", errs.CodeOf(err)),
		)
		return nil
	}
	return errs.Wrapf(err, "react to %s", evt.Kind)
}
