//go:build unit

package commands_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/domain/table"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tomorrowAt(hour, minute int) time.Time {
	return time.Date(2025, 6, 2, hour, minute, 0, 0, time.UTC)
}

func TestCreateReservation_OverlapIsRejected(t *testing.T) {
	h := newHarness(t)
	tableID := h.registerTable(t, 5, "50.0")
	m1, m2 := uuid.New(), uuid.New()

	res, err := h.reserve(tableID, m1, tomorrowAt(14, 0), tomorrowAt(15, 0))
	require.NoError(t, err)

	snap, err := h.store.CommandReads().ReservationByID(context.Background(), res.AggregateID)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, reservation.StatusConfirmed, snap.Status)
	assert.Equal(t, uint64(2), res.Version)

	events := h.events(t, res.AggregateID)
	require.Len(t, events, 2)
	assert.Equal(t, contracts.ReservationCreated, events[0].Kind)
	assert.Equal(t, contracts.ReservationConfirmed, events[1].Kind)

	_, err = h.reserve(tableID, m2, tomorrowAt(14, 30), tomorrowAt(15, 30))
	require.Error(t, err)
	assert.True(t, errs.Is(err, reservation.ErrTimeSlotConflict))
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}

func TestCreateReservation_Rejections(t *testing.T) {
	type testCase struct {
		name       string
		start, end time.Time
		setup      func(h *harness, tableID uuid.UUID)
		errIs      error
	}

	tests := []testCase{
		{
			name:  "starts in the past",
			start: time.Date(2025, 5, 31, 9, 0, 0, 0, time.UTC),
			end:   time.Date(2025, 5, 31, 10, 0, 0, 0, time.UTC),
			errIs: reservation.ErrReservationInPast,
		},
		{
			name:  "end before start",
			start: tomorrowAt(15, 0),
			end:   tomorrowAt(14, 0),
			errIs: reservation.ErrInvalidReservationTime,
		},
		{
			name:  "beyond the horizon",
			start: baseTime.Add(31 * 24 * time.Hour),
			end:   baseTime.Add(31*24*time.Hour + time.Hour),
			errIs: reservation.ErrReservationTooFar,
		},
		{
			name:  "table out of order",
			start: tomorrowAt(14, 0),
			end:   tomorrowAt(15, 0),
			setup: func(h *harness, tableID uuid.UUID) {
				require.NoError(t, h.setStatus(tableID, table.StatusError, uuid.Nil))
			},
			errIs: reservation.ErrTableNotAcceptingReservations,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			tableID := h.registerTable(t, 5, "50")
			if tc.setup != nil {
				tc.setup(h, tableID)
			}

			_, err := h.reserve(tableID, uuid.New(), tc.start, tc.end)

			require.Error(t, err)
			assert.True(t, errs.Is(err, tc.errIs), "got %v", err)
		})
	}
}

func TestCreateReservation_AdjacentSlotsAndCancelledSlots(t *testing.T) {
	h := newHarness(t)
	tableID := h.registerTable(t, 5, "50")

	first, err := h.reserve(tableID, uuid.New(), tomorrowAt(14, 0), tomorrowAt(15, 0))
	require.NoError(t, err)
	_, err = h.reserve(tableID, uuid.New(), tomorrowAt(15, 0), tomorrowAt(16, 0))
	require.NoError(t, err, "touching slots do not overlap")

	_, err = h.send(contracts.CancelReservation, contracts.ReservationRefPayload{ReservationID: first.AggregateID})
	require.NoError(t, err)

	_, err = h.reserve(tableID, uuid.New(), tomorrowAt(14, 0), tomorrowAt(15, 0))
	assert.NoError(t, err, "a cancelled reservation frees its slot")
}

func TestConcurrentOverlappingReservations(t *testing.T) {
	h := newHarness(t)
	tableID := h.registerTable(t, 5, "50")

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		failures  []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			<-start
			_, err := h.reserve(tableID, uuid.New(), tomorrowAt(14, offset), tomorrowAt(15, offset))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			failures = append(failures, err)
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	for _, err := range failures {
		assert.True(t, errs.Is(err, reservation.ErrTimeSlotConflict) || errs.Is(err, errs.ErrContention), "got %v", err)
	}

	accepted, err := h.store.ReservationsByTable(context.Background(), tableID, tomorrowAt(0, 0), tomorrowAt(23, 0))
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

func TestConcurrentRandomReservationsNeverOverlap(t *testing.T) {
	h := newHarness(t)
	tables := []uuid.UUID{
		h.registerTable(t, 1, "50"),
		h.registerTable(t, 2, "50"),
		h.registerTable(t, 3, "50"),
	}

	type attempt struct {
		tableID    uuid.UUID
		start, end time.Time
		cancel     bool
	}
	const (
		workers        = 12
		attemptsPerRun = 10
	)
	rng := rand.New(rand.NewSource(7))
	plans := make([][]attempt, workers)
	for w := range plans {
		for range attemptsPerRun {
			start := tomorrowAt(8, 0).Add(time.Duration(rng.Intn(48)) * 15 * time.Minute)
			plans[w] = append(plans[w], attempt{
				tableID: tables[rng.Intn(len(tables))],
				start:   start,
				end:     start.Add(time.Duration(1+rng.Intn(8)) * 15 * time.Minute),
				cancel:  rng.Intn(4) == 0,
			})
		}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted = map[uuid.UUID]int{}
	)
	gate := make(chan struct{})
	for _, plan := range plans {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-gate
			for _, a := range plan {
				res, err := h.reserve(a.tableID, uuid.New(), a.start, a.end)
				if err != nil {
					assert.True(t, errs.Is(err, reservation.ErrTimeSlotConflict) || errs.Is(err, errs.ErrContention), "got %v", err)
					continue
				}
				if a.cancel {
					_, err = h.send(contracts.CancelReservation, contracts.ReservationRefPayload{ReservationID: res.AggregateID})
					if assert.NoError(t, err) {
						continue
					}
				}
				mu.Lock()
				accepted[a.tableID]++
				mu.Unlock()
			}
		}()
	}
	close(gate)
	wg.Wait()

	for _, tableID := range tables {
		all, err := h.store.ReservationsByTable(context.Background(), tableID, tomorrowAt(0, 0), tomorrowAt(23, 59))
		require.NoError(t, err)

		var active []reservation.Snapshot
		for _, r := range all {
			if r.Status != reservation.StatusCancelled {
				active = append(active, r)
			}
		}
		assert.Len(t, active, accepted[tableID])
		for i := range active {
			for j := i + 1; j < len(active); j++ {
				a, b := active[i], active[j]
				overlap := a.StartTime.Before(b.EndTime) && b.StartTime.Before(a.EndTime)
				assert.False(t, overlap, "table %s: %s-%s overlaps %s-%s", tableID,
					a.StartTime.Format("15:04"), a.EndTime.Format("15:04"), b.StartTime.Format("15:04"), b.EndTime.Format("15:04"))
			}
		}
	}
}

func TestCancelReservation_Cutoff(t *testing.T) {
	h := newHarness(t)
	tableID := h.registerTable(t, 5, "50")
	res, err := h.reserve(tableID, uuid.New(), tomorrowAt(14, 0), tomorrowAt(15, 0))
	require.NoError(t, err)

	h.clock.Set(tomorrowAt(13, 30))
	_, err = h.send(contracts.CancelReservation, contracts.ReservationRefPayload{ReservationID: res.AggregateID})

	require.Error(t, err)
	assert.True(t, errs.Is(err, reservation.ErrCannotCancelReservation))
}

func TestCompleteReservation(t *testing.T) {
	h := newHarness(t)
	tableID := h.registerTable(t, 5, "50")
	res, err := h.reserve(tableID, uuid.New(), tomorrowAt(14, 0), tomorrowAt(15, 0))
	require.NoError(t, err)

	_, err = h.send(contracts.CompleteReservation, contracts.ReservationRefPayload{ReservationID: res.AggregateID})
	assert.True(t, errs.Is(err, reservation.ErrInvalidReservationTransition), "cannot complete before the slot starts")

	h.clock.Set(tomorrowAt(15, 0))
	done, err := h.send(contracts.CompleteReservation, contracts.ReservationRefPayload{ReservationID: res.AggregateID})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), done.Version)
}

func TestReservationTransition_UnknownReservation(t *testing.T) {
	h := newHarness(t)

	_, err := h.send(contracts.ConfirmReservation, contracts.ReservationRefPayload{ReservationID: uuid.New()})

	assert.True(t, errs.Is(err, reservation.ErrReservationNotFound))
}
