package commands

import (
	"context"
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/money"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
)

// TableCommands owns the BilliardTable aggregate.
type TableCommands struct {
	pipeline *Pipeline
}

func NewTableCommands(pipeline *Pipeline) *TableCommands {
	return &TableCommands{pipeline: pipeline}
}

func (c *TableCommands) Register(r *messaging.Registry) error {
	return register(r,
		handlerEntry{contracts.RegisterTable, c.RegisterTable},
		handlerEntry{contracts.ChangeTableRate, c.ChangeRate},
		handlerEntry{contracts.SetTableStatus, c.SetStatus},
		handlerEntry{contracts.ClearTableError, c.ClearError},
		handlerEntry{contracts.RetireTable, c.Retire},
	)
}

func (c *TableCommands) RegisterTable(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.RegisterTablePayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	if p.Number <= 0 {
		return messaging.Result{}, table.ErrInvalidTableNumber
	}
	rate, err := parseRate(p.HourlyRate)
	if err != nil {
		return messaging.Result{}, err
	}
	id := aggregateIDFor(p.TableID, cmd.CorrelationID)

	keys := []string{tableNumberKey(p.Number), tableKey(id)}
	return c.pipeline.Execute(ctx, cmd, p, keys, func(ctx context.Context, tx shared.Tx, now time.Time) (Outcome, error) {
		taken, err := tx.Tables().FindByNumber(ctx, p.Number)
		if err != nil {
			return Outcome{}, err
		}
		if taken != nil {
			return Outcome{}, errs.Wrapf(table.ErrTableNumberTaken, "table #%d", p.Number)
		}
		if _, err := tx.Tables().Get(ctx, id); err == nil {
			return Outcome{}, table.ErrTableAlreadyRegistered
		} else if !errs.Is(err, table.ErrTableNotFound) {
			return Outcome{}, err
		}

		t, err := table.NewTable(id, p.Number, rate, now)
		if err != nil {
			return Outcome{}, err
		}
		return c.save(ctx, tx, t, contracts.TableRegistered, "", "", now)
	})
}

func (c *TableCommands) ChangeRate(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.ChangeTableRatePayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	rate, err := parseRate(p.HourlyRate)
	if err != nil {
		return messaging.Result{}, err
	}

	return c.mutate(ctx, cmd, p, p.TableID, contracts.TableRateChanged, "", func(t *table.Table, now time.Time) error {
		return t.ChangeRate(rate, now)
	})
}

func (c *TableCommands) SetStatus(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.SetTableStatusPayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	target, err := table.ParseStatus(p.Status)
	if err != nil {
		return messaging.Result{}, err
	}
	tr := table.Transition{
		Target:         target,
		MemberID:       p.MemberID,
		Administrative: p.Administrative,
		Reason:         p.Reason,
	}

	return c.mutate(ctx, cmd, p, p.TableID, contracts.TableStatusChanged, p.Reason, func(t *table.Table, now time.Time) error {
		return t.ChangeStatus(tr, now)
	})
}

func (c *TableCommands) ClearError(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.TableRefPayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	return c.mutate(ctx, cmd, p, p.TableID, contracts.TableStatusChanged, "error cleared", func(t *table.Table, now time.Time) error {
		return t.ClearError(now)
	})
}

func (c *TableCommands) Retire(ctx context.Context, cmd messaging.Command) (messaging.Result, error) {
	p, err := messaging.PayloadAs[contracts.TableRefPayload](cmd)
	if err != nil {
		return messaging.Result{}, err
	}
	return c.mutate(ctx, cmd, p, p.TableID, contracts.TableRetired, "", func(t *table.Table, now time.Time) error {
		return t.Retire(now)
	})
}

func (c *TableCommands) mutate(
	ctx context.Context,
	cmd messaging.Command,
	payload any,
	tableID uuid.UUID,
	kind messaging.Kind,
	reason string,
	apply func(t *table.Table, now time.Time) error,
) (messaging.Result, error) {
	if tableID == uuid.Nil {
		return messaging.Result{}, errs.Wrap(table.ErrTableNotFound, "table id is empty")
	}
	return c.pipeline.Execute(ctx, cmd, payload, []string{tableKey(tableID)}, func(ctx context.Context, tx shared.Tx, now time.Time) (Outcome, error) {
		t, err := tx.Tables().Get(ctx, tableID)
		if err != nil {
			return Outcome{}, err
		}
		previous := t.Status()
		if err := apply(t, now); err != nil {
			return Outcome{}, err
		}
		return c.save(ctx, tx, t, kind, previous, reason, now)
	})
}

func (c *TableCommands) save(ctx context.Context, tx shared.Tx, t *table.Table, kind messaging.Kind, previous table.Status, reason string, now time.Time) (Outcome, error) {
	if err := tx.Tables().Save(ctx, t); err != nil {
		return Outcome{}, err
	}
	evt, err := tableEvent(kind, t, previous, reason, now)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{AggregateID: t.ID(), Version: t.Version(), Events: []messaging.Event{evt}}, nil
}

func parseRate(s string) (money.Money, error) {
	rate, err := money.Parse(s)
	if err != nil {
		return money.Money{}, errs.Mark(err, table.ErrInvalidHourlyRate)
	}
	if !rate.IsPositive() {
		return money.Money{}, table.ErrInvalidHourlyRate
	}
	return rate, nil
}
