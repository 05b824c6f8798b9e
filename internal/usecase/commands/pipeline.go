package commands

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/keylock"
	"billiard-hall/internal/usecase/shared"

	"github.com/google/uuid"
)

// Outcome is what a handler's transactional step produced.
type Outcome struct {
	AggregateID uuid.UUID
	Version     uint64
	Events      []messaging.Event
}

// TxFunc re-validates invariants against current state, mutates and persists the
// aggregate. It may run more than once when the unit of work retries.
type TxFunc func(ctx context.Context, tx shared.Tx, now time.Time) (Outcome, error)

// Notifier is nudged after a commit that enqueued events.
type Notifier interface {
	Notify()
}

type Pipeline struct {
	uow      shared.UnitOfWork
	locks    *keylock.Locker
	clock    clock.Clock
	notifier Notifier
	ttl      time.Duration
	logger   *slog.Logger
}

func NewPipeline(uow shared.UnitOfWork, locks *keylock.Locker, clk clock.Clock, notifier Notifier, ttl time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		uow:      uow,
		locks:    locks,
		clock:    clk,
		notifier: notifier,
		ttl:      ttl,
		logger:   logger,
	}
}

// Execute runs fn once per CorrelationID.
//
// A repeated command with the same payload replays the stored result without
// running fn; the same CorrelationID with a different payload is rejected.
// The in-process locks serialize callers of this process, tx.Lock serializes
// processes sharing a database.
func (p *Pipeline) Execute(ctx context.Context, cmd messaging.Command, payload any, lockKeys []string, fn TxFunc) (messaging.Result, error) {
	if cmd.CorrelationID == uuid.Nil {
		return messaging.Result{}, errs.ErrCorrelationIDRequired
	}
	requestHash, err := hashRequest(cmd.Kind, payload)
	if err != nil {
		return messaging.Result{}, err
	}

	now := p.clock.UtcNow()
	existing, err := p.uow.CommandReads().IdempotencyByKey(ctx, cmd.CorrelationID)
	if err != nil {
		return messaging.Result{}, errs.Wrap(err, "read idempotency record")
	}
	if existing != nil && !existing.Expired(now) {
		return p.replay(cmd, *existing, requestHash)
	}

	keys := sortedKeys(append([]string{"cmd:" + cmd.CorrelationID.String()}, lockKeys...))
	release, err := p.locks.AcquireAll(ctx, keys...)
	if err != nil {
		return messaging.Result{}, err
	}
	defer release()

	var (
		result   messaging.Result
		enqueued int
	)
	err = p.uow.Within(ctx, func(ctx context.Context, tx shared.Tx) error {
		enqueued = 0
		for _, key := range keys {
			if err := tx.Lock(ctx, key); err != nil {
				return err
			}
		}

		now = p.clock.UtcNow()
		rec, err := tx.Idempotency().Get(ctx, cmd.CorrelationID)
		if err != nil {
			return errs.Wrap(err, "read idempotency record")
		}
		if rec != nil && !rec.Expired(now) {
			result, err = p.replay(cmd, *rec, requestHash)
			return err
		}

		out, err := fn(ctx, tx, now)
		if err != nil {
			return err
		}

		events := make([]messaging.Event, len(out.Events))
		for i, evt := range out.Events {
			events[i] = evt.WithCorrelation(cmd.CorrelationID)
		}
		if len(events) > 0 {
			if err := tx.Events().Append(ctx, events...); err != nil {
				return errs.Wrap(err, "append events")
			}
			if err := tx.Outbox().Enqueue(ctx, events...); err != nil {
				return errs.Wrap(err, "enqueue outbox")
			}
		}

		result = messaging.Result{AggregateID: out.AggregateID, Version: out.Version}
		record := shared.IdempotencyRecord{
			Key:         cmd.CorrelationID,
			CommandKind: string(cmd.Kind),
			RequestHash: requestHash,
			Result:      result,
			CreatedAt:   now,
			ExpiresAt:   now.Add(p.ttl),
		}
		if err := tx.Idempotency().Save(ctx, record, now); err != nil {
			return err
		}
		enqueued = len(events)
		return nil
	})

	if errs.Is(err, shared.ErrIdempotencyKeyTaken) {
		// Another process committed the same command between our check and insert.
		rec, readErr := p.uow.CommandReads().IdempotencyByKey(ctx, cmd.CorrelationID)
		if readErr == nil && rec != nil {
			return p.replay(cmd, *rec, requestHash)
		}
	}
	if err != nil {
		p.logger.Debug("Command rejected",
			slog.String("kind", string(cmd.Kind)),
			slog.String("correlation_id", cmd.CorrelationID.String()),
			slog.String("error_kind", string(errs.KindOf(err))),
			slog.String("error", err.Error()),
		)
		return messaging.Result{}, err
	}

	if enqueued > 0 && p.notifier != nil {
		p.notifier.Notify()
	}
	if !result.Replayed {
		p.logger.Info("Command handled",
			slog.String("kind", string(cmd.Kind)),
			slog.String("correlation_id", cmd.CorrelationID.String()),
			slog.String("aggregate_id", result.AggregateID.String()),
			slog.Uint64("version", result.Version),
			slog.Int("events", enqueued),
		)
	}
	return result, nil
}

func (p *Pipeline) replay(cmd messaging.Command, rec shared.IdempotencyRecord, requestHash string) (messaging.Result, error) {
	if rec.CommandKind != string(cmd.Kind) || rec.RequestHash != requestHash {
		return messaging.Result{}, errs.Wrapf(errs.ErrCorrelationReused, "%s first used for %s", cmd.CorrelationID, rec.CommandKind)
	}
	p.logger.Debug("Command replayed",
		slog.String("kind", string(cmd.Kind)),
		slog.String("correlation_id", cmd.CorrelationID.String()),
	)
	res := rec.Result
	res.Replayed = true
	return res, nil
}

func hashRequest(kind messaging.Kind, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", errs.Wrapf(err, "hash %s payload", kind)
	}
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func sortedKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func tableKey(id uuid.UUID) string      { return "table:" + id.String() }
func tableNumberKey(n int) string       { return "table-number:" + strconv.Itoa(n) }
func orderTableKey(id uuid.UUID) string { return "order-table:" + id.String() }
func orderKey(id uuid.UUID) string      { return "order:" + id.String() }
