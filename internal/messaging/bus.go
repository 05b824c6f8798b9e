package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/errs"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
)

type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0
	exp.Reset()

	var b backoff.BackOff = exp
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Bus routes commands synchronously and delivers events asynchronously.
//
// Every subscription owns a FIFO queue and a goroutine, so events of one kind reach
// a given subscriber in publish order while a slow subscriber never delays others.
// Failed deliveries are retried with exponential backoff; non-retryable failures and
// exhausted retries are parked in the dead-letter store.
type Bus struct {
	registry    *Registry
	deadLetters DeadLetterStore
	clock       clock.Clock
	logger      *slog.Logger
	retry       RetryPolicy

	mu          sync.RWMutex
	subscribers map[Kind][]*subscriber
	patterns    []*subscriber
	started     bool
	closed      bool

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	pending atomic.Int64
}

type subscriber struct {
	name    string
	kind    Kind
	handler EventHandler
	queue   *queue
}

func NewBus(registry *Registry, deadLetters DeadLetterStore, clk clock.Clock, logger *slog.Logger, retry RetryPolicy) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		registry:    registry,
		deadLetters: deadLetters,
		clock:       clk,
		logger:      logger,
		retry:       retry,
		subscribers: make(map[Kind][]*subscriber),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start spawns one delivery goroutine per subscription. The registry must be sealed.
func (b *Bus) Start() error {
	if !b.registry.Sealed() {
		return ErrRegistryNotSealed
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if b.started {
		return nil
	}

	for _, s := range b.registry.Subscriptions() {
		sub := &subscriber{name: s.Name, kind: s.Kind, handler: s.Handler, queue: newQueue()}
		if s.Kind.IsPattern() {
			b.patterns = append(b.patterns, sub)
		} else {
			b.subscribers[s.Kind] = append(b.subscribers[s.Kind], sub)
		}
		b.wg.Add(1)
		go b.run(sub)
	}
	b.started = true

	b.logger.Info("Message bus started", slog.Int("subscriptions", len(b.registry.Subscriptions())))
	return nil
}

// Stop refuses new events, drains queued ones and waits for the workers.
// When ctx expires first, in-flight retries are abandoned.
func (b *Bus) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	for _, sub := range b.all() {
		sub.queue.close()
	}
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.cancel()
		b.logger.Info("Message bus stopped")
		return nil
	case <-ctx.Done():
		b.cancel()
		<-done
		b.logger.Warn("Message bus stopped before draining", slog.Int64("pending", b.pending.Load()))
		return errs.Wrap(ctx.Err(), "drain bus")
	}
}

// Send routes cmd to its single handler and returns the handler's result or error unchanged.
func (b *Bus) Send(ctx context.Context, cmd Command) (Result, error) {
	if cmd.Kind == "" {
		return Result{}, errs.Wrap(ErrInvalidEnvelope, "command kind is empty")
	}
	handler, err := b.registry.commandHandler(cmd.Kind)
	if err != nil {
		return Result{}, err
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = b.clock.UtcNow()
	}
	return b.invokeCommand(ctx, handler, cmd)
}

// SendWithRetry resends cmd while it fails with a retryable error.
// Handlers are idempotent by CorrelationID, so a resend never applies twice.
func (b *Bus) SendWithRetry(ctx context.Context, cmd Command) (Result, error) {
	var result Result
	attempt := 0
	op := func() error {
		attempt++
		res, err := b.Send(ctx, cmd)
		if err != nil {
			if !errs.Retryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result = res
		return nil
	}
	notify := func(err error, wait time.Duration) {
		b.logger.Debug("Command failed, retrying",
			slog.String("kind", string(cmd.Kind)),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}
	if err := backoff.RetryNotify(op, b.retry.newBackOff(ctx), notify); err != nil {
		return Result{}, err
	}
	return result, nil
}

// Publish enqueues events for every subscriber of their kind and returns immediately.
func (b *Bus) Publish(_ context.Context, events ...Event) error {
	_, err := b.enqueue(events, false)
	return err
}

// PublishAndWait enqueues events like Publish and returns once every subscriber
// has handled each event or parked it as a dead letter. It fails when the bus
// stops before that, or ctx ends first; the caller must then keep its durable
// copy and publish again, relying on subscribers to deduplicate.
func (b *Bus) PublishAndWait(ctx context.Context, events ...Event) error {
	rc, err := b.enqueue(events, true)
	if err != nil {
		return err
	}
	if rc == nil {
		return nil
	}
	select {
	case <-rc.done:
	case <-ctx.Done():
		return errs.Wrap(ctx.Err(), "wait for event delivery")
	}
	if rc.failed.Load() {
		return ErrDeliveryAbandoned
	}
	return nil
}

func (b *Bus) enqueue(events []Event, wait bool) (*receipt, error) {
	for _, evt := range events {
		if err := evt.Validate(); err != nil {
			return nil, err
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, ErrBusClosed
	}
	if !b.started {
		return nil, ErrBusNotStarted
	}

	type target struct {
		sub *subscriber
		evt Event
	}
	var targets []target
	for _, evt := range events {
		subs := b.matching(evt.Kind)
		if len(subs) == 0 {
			b.logger.Debug("Event has no subscribers", slog.String("kind", string(evt.Kind)))
			continue
		}
		for _, sub := range subs {
			targets = append(targets, target{sub: sub, evt: evt})
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}

	var rc *receipt
	if wait {
		rc = newReceipt(len(targets))
	}
	var err error
	for _, t := range targets {
		b.pending.Add(1)
		if !t.sub.queue.push(delivery{evt: t.evt, receipt: rc}) {
			b.pending.Add(-1)
			rc.settle(false)
			err = ErrBusClosed
		}
	}
	return rc, err
}

// Redeliver puts a dead-lettered event back on its subscriber's queue.
func (b *Bus) Redeliver(ctx context.Context, dl DeadLetter) error {
	b.mu.RLock()
	var target *subscriber
	for _, sub := range b.matching(dl.Event.Kind) {
		if sub.name == dl.Subscriber {
			target = sub
			break
		}
	}
	closed := b.closed
	b.mu.RUnlock()

	if closed {
		return ErrBusClosed
	}
	if target == nil {
		return errs.Wrapf(ErrUnknownSubscriber, "%s on %s", dl.Subscriber, dl.Event.Kind)
	}
	if err := b.deadLetters.Remove(ctx, dl.ID); err != nil {
		return errs.Wrap(err, "remove dead letter")
	}
	b.pending.Add(1)
	if !target.queue.push(delivery{evt: dl.Event}) {
		b.pending.Add(-1)
		return ErrBusClosed
	}
	return nil
}

// WaitIdle blocks until every published event has been handled or parked.
func (b *Bus) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		if b.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return errs.Wrap(ctx.Err(), "wait for bus to become idle")
		case <-ticker.C:
		}
	}
}

// matching returns exact subscribers of kind followed by pattern subscribers. Callers hold b.mu.
func (b *Bus) matching(kind Kind) []*subscriber {
	subs := b.subscribers[kind]
	for _, sub := range b.patterns {
		if sub.kind.Matches(kind) {
			subs = append(subs[:len(subs):len(subs)], sub)
		}
	}
	return subs
}

func (b *Bus) all() []*subscriber {
	var subs []*subscriber
	for _, s := range b.subscribers {
		subs = append(subs, s...)
	}
	return append(subs, b.patterns...)
}

func (b *Bus) run(sub *subscriber) {
	defer b.wg.Done()
	for {
		d, ok := sub.queue.pop(b.ctx)
		if !ok {
			for _, left := range sub.queue.drain() {
				left.receipt.settle(false)
				b.pending.Add(-1)
			}
			return
		}
		d.receipt.settle(b.deliver(sub, d.evt))
		b.pending.Add(-1)
	}
}

// deliver reports whether evt was handled or parked. An event abandoned because
// the bus is stopping is neither; its publisher still owns it.
func (b *Bus) deliver(sub *subscriber, evt Event) bool {
	attempt := 0
	op := func() error {
		attempt++
		err := b.invokeEvent(b.ctx, sub, evt)
		if err != nil && !errs.Retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		b.logger.Warn("Event delivery failed, retrying",
			slog.String("subscriber", sub.name),
			slog.String("kind", string(evt.Kind)),
			slog.String("aggregate_id", evt.AggregateID.String()),
			slog.Uint64("version", evt.Version),
			slog.Int("attempt", attempt),
			slog.Duration("wait", wait),
			slog.String("error", err.Error()),
		)
	}

	err := backoff.RetryNotify(op, b.retry.newBackOff(b.ctx), notify)
	if err == nil {
		return true
	}
	if b.ctx.Err() != nil {
		b.logger.Warn("Event delivery abandoned by shutdown",
			slog.String("subscriber", sub.name),
			slog.String("kind", string(evt.Kind)),
			slog.String("aggregate_id", evt.AggregateID.String()),
			slog.Uint64("version", evt.Version),
		)
		return false
	}
	return b.park(sub, evt, attempt, err)
}

func (b *Bus) park(sub *subscriber, evt Event, attempts int, cause error) bool {
	dl := DeadLetter{
		ID:         uuid.New(),
		Subscriber: sub.name,
		Event:      evt,
		Attempts:   attempts,
		LastError:  cause.Error(),
		ParkedAt:   b.clock.UtcNow(),
	}
	b.logger.Error("Event parked in dead-letter store",
		slog.String("subscriber", sub.name),
		slog.String("kind", string(evt.Kind)),
		slog.String("aggregate_id", evt.AggregateID.String()),
		slog.Uint64("version", evt.Version),
		slog.Int("attempts", attempts),
		slog.String("error_kind", string(errs.KindOf(cause))),
		slog.String("error", cause.Error()),
	)
	if err := b.deadLetters.Park(context.WithoutCancel(b.ctx), dl); err != nil {
		b.logger.Error("Failed to park dead letter",
			slog.String("subscriber", sub.name),
			slog.String("event_id", evt.ID.String()),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

func (b *Bus) invokeCommand(ctx context.Context, handler CommandHandler, cmd Command) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.MarkKind(errs.Newf("command handler for %s panicked: %v", cmd.Kind, r), errs.KindInfrastructure)
			b.logger.Error("Command handler panicked",
				slog.String("kind", string(cmd.Kind)),
				slog.String("correlation_id", cmd.CorrelationID.String()),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	return handler.Handle(ctx, cmd)
}

func (b *Bus) invokeEvent(ctx context.Context, sub *subscriber, evt Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.MarkKind(errs.Newf("subscriber %s panicked on %s: %v", sub.name, evt.Kind, r), errs.KindInfrastructure)
		}
	}()
	return sub.handler.Handle(ctx, evt)
}
