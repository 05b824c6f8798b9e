//go:build unit

package messaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/errs"
	"billiard-hall/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errs.MarkKind(errors.New("connection reset"), errs.KindInfrastructure)
	errRejected  = errs.Define(errs.KindConflict, "Rejected", "rejected by guard")
)

var testRetry = RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func newTestBus(t *testing.T, setup func(r *Registry)) (*Bus, *MemoryDeadLetters) {
	t.Helper()
	r := NewRegistry()
	if setup != nil {
		setup(r)
	}
	require.NoError(t, r.Seal())

	dl := NewMemoryDeadLetters()
	clk := clock.NewMockClock(time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC))
	bus := NewBus(r, dl, clk, logger.Discard(), testRetry)
	require.NoError(t, bus.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = bus.Stop(ctx)
	})
	return bus, dl
}

func testEvent(t *testing.T, kind Kind, aggregateID uuid.UUID, version uint64) Event {
	t.Helper()
	evt, err := NewEvent(kind, aggregateID, version, time.Now(), map[string]any{"n": version})
	require.NoError(t, err)
	return evt
}

func waitIdle(t *testing.T, bus *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bus.WaitIdle(ctx))
}

func TestBus_Send(t *testing.T) {
	aggregateID := uuid.New()
	bus, _ := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.RegisterCommand("orders.create", CommandHandlerFunc(func(_ context.Context, cmd Command) (Result, error) {
			assert.False(t, cmd.IssuedAt.IsZero())
			return Result{AggregateID: aggregateID, Version: 1}, nil
		})))
		require.NoError(t, r.RegisterCommand("orders.cancel", CommandHandlerFunc(func(context.Context, Command) (Result, error) {
			return Result{}, errs.Wrap(errRejected, "cancel order")
		})))
		require.NoError(t, r.RegisterCommand("orders.explode", CommandHandlerFunc(func(context.Context, Command) (Result, error) {
			panic("boom")
		})))
	})

	t.Run("routes to the single handler", func(t *testing.T) {
		res, err := bus.Send(context.Background(), NewCommand("orders.create", uuid.New(), nil))

		require.NoError(t, err)
		assert.Equal(t, Result{AggregateID: aggregateID, Version: 1}, res)
	})

	t.Run("propagates handler errors unchanged", func(t *testing.T) {
		_, err := bus.Send(context.Background(), NewCommand("orders.cancel", uuid.New(), nil))

		assert.True(t, errors.Is(err, errRejected))
		assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	})

	t.Run("unknown kind fails with NoHandlerRegistered", func(t *testing.T) {
		_, err := bus.Send(context.Background(), NewCommand("orders.refund", uuid.New(), nil))

		assert.True(t, errors.Is(err, ErrNoHandlerRegistered))
	})

	t.Run("panics become infrastructure errors", func(t *testing.T) {
		_, err := bus.Send(context.Background(), NewCommand("orders.explode", uuid.New(), nil))

		require.Error(t, err)
		assert.Equal(t, errs.KindInfrastructure, errs.KindOf(err))
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestBus_SendWithRetry(t *testing.T) {
	var calls atomic.Int32
	bus, _ := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.RegisterCommand("tables.set_status", CommandHandlerFunc(func(context.Context, Command) (Result, error) {
			if calls.Add(1) < 3 {
				return Result{}, errs.ErrContention
			}
			return Result{Version: 7}, nil
		})))
		require.NoError(t, r.RegisterCommand("tables.retire", CommandHandlerFunc(func(context.Context, Command) (Result, error) {
			return Result{}, errRejected
		})))
	})

	res, err := bus.SendWithRetry(context.Background(), NewCommand("tables.set_status", uuid.New(), nil))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), res.Version)
	assert.Equal(t, int32(3), calls.Load())

	_, err = bus.SendWithRetry(context.Background(), NewCommand("tables.retire", uuid.New(), nil))
	assert.True(t, errors.Is(err, errRejected))
}

func TestBus_PublishPreservesOrderPerSubscriber(t *testing.T) {
	var mu sync.Mutex
	var fast, slow []uint64

	bus, _ := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.Subscribe("tables.status_changed", "fast", EventHandlerFunc(func(_ context.Context, evt Event) error {
			mu.Lock()
			defer mu.Unlock()
			fast = append(fast, evt.Version)
			return nil
		})))
		require.NoError(t, r.Subscribe("tables.status_changed", "slow", EventHandlerFunc(func(_ context.Context, evt Event) error {
			time.Sleep(time.Millisecond)
			mu.Lock()
			defer mu.Unlock()
			slow = append(slow, evt.Version)
			return nil
		})))
	})

	tableID := uuid.New()
	var want []uint64
	for v := uint64(1); v <= 25; v++ {
		require.NoError(t, bus.Publish(context.Background(), testEvent(t, "tables.status_changed", tableID, v)))
		want = append(want, v)
	}
	waitIdle(t, bus)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, fast)
	assert.Equal(t, want, slow)
}

func TestBus_PatternSubscription(t *testing.T) {
	var mu sync.Mutex
	var kinds []Kind

	bus, _ := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.Subscribe("orders.*", "tables", EventHandlerFunc(func(_ context.Context, evt Event) error {
			mu.Lock()
			defer mu.Unlock()
			kinds = append(kinds, evt.Kind)
			return nil
		})))
	})

	orderID := uuid.New()
	require.NoError(t, bus.Publish(context.Background(),
		testEvent(t, "orders.started", orderID, 1),
		testEvent(t, "tables.status_changed", uuid.New(), 1),
		testEvent(t, "orders.settlement_requested", orderID, 2),
		testEvent(t, "ordersx.started", uuid.New(), 1),
	))
	waitIdle(t, bus)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Kind{"orders.started", "orders.settlement_requested"}, kinds)
}

func TestBus_PublishAndWait(t *testing.T) {
	t.Run("returns once every subscriber handled the events", func(t *testing.T) {
		var fast, slow atomic.Int32
		bus, _ := newTestBus(t, func(r *Registry) {
			require.NoError(t, r.Subscribe("orders.started", "fast", EventHandlerFunc(func(context.Context, Event) error {
				fast.Add(1)
				return nil
			})))
			require.NoError(t, r.Subscribe("orders.*", "slow", EventHandlerFunc(func(context.Context, Event) error {
				time.Sleep(5 * time.Millisecond)
				slow.Add(1)
				return nil
			})))
		})
		orderID := uuid.New()

		err := bus.PublishAndWait(context.Background(),
			testEvent(t, "orders.started", orderID, 1),
			testEvent(t, "orders.settlement_requested", orderID, 2),
		)

		require.NoError(t, err)
		assert.Equal(t, int32(1), fast.Load())
		assert.Equal(t, int32(2), slow.Load())
	})

	t.Run("a parked event counts as settled", func(t *testing.T) {
		bus, dl := newTestBus(t, func(r *Registry) {
			require.NoError(t, r.Subscribe("orders.started", "tables", EventHandlerFunc(func(context.Context, Event) error {
				return errRejected
			})))
		})

		err := bus.PublishAndWait(context.Background(), testEvent(t, "orders.started", uuid.New(), 1))

		require.NoError(t, err)
		parked, err := dl.List(context.Background(), 0)
		require.NoError(t, err)
		assert.Len(t, parked, 1)
	})

	t.Run("no subscribers returns at once", func(t *testing.T) {
		bus, _ := newTestBus(t, nil)

		assert.NoError(t, bus.PublishAndWait(context.Background(), testEvent(t, "orders.started", uuid.New(), 1)))
	})

	t.Run("caller deadline while subscriber is busy", func(t *testing.T) {
		release := make(chan struct{})
		bus, _ := newTestBus(t, func(r *Registry) {
			require.NoError(t, r.Subscribe("orders.started", "tables", EventHandlerFunc(func(context.Context, Event) error {
				<-release
				return nil
			})))
		})
		t.Cleanup(func() { close(release) })
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := bus.PublishAndWait(ctx, testEvent(t, "orders.started", uuid.New(), 1))

		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})

	t.Run("shutdown before delivery fails the call", func(t *testing.T) {
		started := make(chan struct{}, 1)
		bus, dl := newTestBus(t, func(r *Registry) {
			require.NoError(t, r.Subscribe("orders.started", "tables", EventHandlerFunc(func(ctx context.Context, _ Event) error {
				select {
				case started <- struct{}{}:
				default:
				}
				<-ctx.Done()
				return errs.MarkKind(ctx.Err(), errs.KindInfrastructure)
			})))
		})

		result := make(chan error, 1)
		go func() {
			result <- bus.PublishAndWait(context.Background(),
				testEvent(t, "orders.started", uuid.New(), 1),
				testEvent(t, "orders.started", uuid.New(), 1),
			)
		}()
		<-started

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_ = bus.Stop(ctx)

		select {
		case err := <-result:
			assert.True(t, errors.Is(err, ErrDeliveryAbandoned), "got %v", err)
		case <-time.After(2 * time.Second):
			t.Fatal("PublishAndWait did not return after stop")
		}
		parked, err := dl.List(context.Background(), 0)
		require.NoError(t, err)
		assert.Empty(t, parked)
	})
}

func TestBus_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	bus, dl := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.Subscribe("orders.started", "tables", EventHandlerFunc(func(context.Context, Event) error {
			if calls.Add(1) < 3 {
				return errTransient
			}
			return nil
		})))
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent(t, "orders.started", uuid.New(), 1)))
	waitIdle(t, bus)

	assert.Equal(t, int32(3), calls.Load())
	letters, err := dl.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, letters)
}

func TestBus_DeadLetters(t *testing.T) {
	type testCase struct {
		name         string
		handlerErr   error
		wantAttempts int
		wantErrText  string
	}

	tests := []testCase{
		{name: "retries exhausted", handlerErr: errTransient, wantAttempts: testRetry.MaxAttempts, wantErrText: "connection reset"},
		{name: "non-retryable failure is parked at once", handlerErr: errRejected, wantAttempts: 1, wantErrText: "rejected by guard"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			bus, dl := newTestBus(t, func(r *Registry) {
				require.NoError(t, r.Subscribe("orders.started", "tables", EventHandlerFunc(func(context.Context, Event) error {
					calls.Add(1)
					return tc.handlerErr
				})))
			})

			evt := testEvent(t, "orders.started", uuid.New(), 1)
			require.NoError(t, bus.Publish(context.Background(), evt))
			waitIdle(t, bus)

			letters, err := dl.List(context.Background(), 0)
			require.NoError(t, err)
			require.Len(t, letters, 1)
			assert.Equal(t, "tables", letters[0].Subscriber)
			assert.Equal(t, evt.ID, letters[0].Event.ID)
			assert.Equal(t, tc.wantAttempts, letters[0].Attempts)
			assert.Contains(t, letters[0].LastError, tc.wantErrText)
			assert.Equal(t, int32(tc.wantAttempts), calls.Load())
		})
	}
}

func TestBus_PanickingSubscriberIsRetried(t *testing.T) {
	var calls atomic.Int32
	bus, dl := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.Subscribe("orders.started", "flaky", EventHandlerFunc(func(context.Context, Event) error {
			if calls.Add(1) == 1 {
				panic("nil map")
			}
			return nil
		})))
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent(t, "orders.started", uuid.New(), 1)))
	waitIdle(t, bus)

	assert.Equal(t, int32(2), calls.Load())
	letters, _ := dl.List(context.Background(), 0)
	assert.Empty(t, letters)
}

func TestBus_Redeliver(t *testing.T) {
	var healthy atomic.Bool
	var handled atomic.Int32
	bus, dl := newTestBus(t, func(r *Registry) {
		require.NoError(t, r.Subscribe("orders.started", "tables", EventHandlerFunc(func(context.Context, Event) error {
			if !healthy.Load() {
				return errRejected
			}
			handled.Add(1)
			return nil
		})))
	})

	require.NoError(t, bus.Publish(context.Background(), testEvent(t, "orders.started", uuid.New(), 1)))
	waitIdle(t, bus)
	letters, _ := dl.List(context.Background(), 0)
	require.Len(t, letters, 1)

	healthy.Store(true)
	require.NoError(t, bus.Redeliver(context.Background(), letters[0]))
	waitIdle(t, bus)

	assert.Equal(t, int32(1), handled.Load())
	letters, _ = dl.List(context.Background(), 0)
	assert.Empty(t, letters)
}

func TestBus_PublishValidatesEnvelope(t *testing.T) {
	bus, _ := newTestBus(t, nil)

	evt := testEvent(t, "orders.started", uuid.New(), 1)
	evt.SchemaVersion = ""

	err := bus.Publish(context.Background(), evt)

	assert.True(t, errors.Is(err, ErrMissingSchemaVersion))
}

func TestBus_Lifecycle(t *testing.T) {
	t.Run("start requires a sealed registry", func(t *testing.T) {
		bus := NewBus(NewRegistry(), NewMemoryDeadLetters(), clock.NewRealClock(), logger.Discard(), testRetry)

		assert.True(t, errors.Is(bus.Start(), ErrRegistryNotSealed))
	})

	t.Run("publish before start", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Seal())
		bus := NewBus(r, NewMemoryDeadLetters(), clock.NewRealClock(), logger.Discard(), testRetry)

		err := bus.Publish(context.Background(), testEvent(t, "orders.started", uuid.New(), 1))

		assert.True(t, errors.Is(err, ErrBusNotStarted))
	})

	t.Run("stop drains queued events", func(t *testing.T) {
		var handled atomic.Int32
		bus, _ := newTestBus(t, func(r *Registry) {
			require.NoError(t, r.Subscribe("orders.started", "slow", EventHandlerFunc(func(context.Context, Event) error {
				time.Sleep(time.Millisecond)
				handled.Add(1)
				return nil
			})))
		})
		for v := uint64(1); v <= 10; v++ {
			require.NoError(t, bus.Publish(context.Background(), testEvent(t, "orders.started", uuid.New(), v)))
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, bus.Stop(ctx))

		assert.Equal(t, int32(10), handled.Load())
		assert.True(t, errors.Is(bus.Publish(context.Background(), testEvent(t, "orders.started", uuid.New(), 11)), ErrBusClosed))
	})
}

func TestDeduplicate(t *testing.T) {
	var handled atomic.Int32
	inbox := NewMemoryInbox()
	bus, _ := newTestBus(t, func(r *Registry) {
		h := Deduplicate("tables", inbox, clock.NewRealClock(), logger.Discard(), EventHandlerFunc(func(context.Context, Event) error {
			handled.Add(1)
			return nil
		}))
		require.NoError(t, r.Subscribe("orders.started", "tables", h))
	})

	evt := testEvent(t, "orders.started", uuid.New(), 1)
	redelivered := evt
	redelivered.ID = uuid.New()

	require.NoError(t, bus.Publish(context.Background(), evt, redelivered, evt))
	waitIdle(t, bus)

	assert.Equal(t, int32(1), handled.Load())
	seen, err := inbox.Processed(context.Background(), "tables", KeyOf(evt))
	require.NoError(t, err)
	assert.True(t, seen)
}
