//go:build unit

package reservation_test

import (
	"testing"
	"time"

	"billiard-hall/internal/domain/reservation"
	"billiard-hall/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name   string
	mutate func(*builder.ReservationBuilder)
	errIs  error
}

func runCases(t *testing.T, cases []testCase) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			actual, err := builder.NewReservationBuilder().With(c.mutate).BuildDomain()

			if c.errIs == nil {
				require.NoError(t, err)
				require.NotNil(t, actual)
			} else {
				require.Nil(t, actual)
				require.ErrorIs(t, err, c.errIs)
			}
		})
	}
}

func TestNewReservation(t *testing.T) {
	t.Run("basic success case", func(t *testing.T) {
		b := builder.NewReservationBuilder()
		actual, err := b.BuildDomain()
		require.NoError(t, err)

		assert.Equal(t, b.ID, actual.ID())
		assert.Equal(t, reservation.StatusPending, actual.Status())
		assert.Equal(t, 2*time.Hour, actual.TimeSlot().Duration())
		assert.Equal(t, uint64(1), actual.Version())
		assert.True(t, actual.IsActive())
	})

	t.Run("time validation", func(t *testing.T) {
		runCases(t, []testCase{
			{
				name:   "end before start",
				mutate: func(b *builder.ReservationBuilder) { b.EndTime = b.StartTime.Add(-time.Minute) },
				errIs:  reservation.ErrInvalidReservationTime,
			},
			{
				name:   "zero length",
				mutate: func(b *builder.ReservationBuilder) { b.EndTime = b.StartTime },
				errIs:  reservation.ErrInvalidReservationTime,
			},
			{
				name: "start in the past",
				mutate: func(b *builder.ReservationBuilder) {
					b.Between(b.Now.Add(-time.Minute), b.Now.Add(time.Hour))
				},
				errIs: reservation.ErrReservationInPast,
			},
			{
				name:   "start exactly now",
				mutate: func(b *builder.ReservationBuilder) { b.Between(b.Now, b.Now.Add(time.Hour)) },
				errIs:  reservation.ErrReservationInPast,
			},
			{
				name:   "start just after now",
				mutate: func(b *builder.ReservationBuilder) { b.Between(b.Now.Add(time.Nanosecond), b.Now.Add(time.Hour)) },
			},
			{
				name: "at the horizon",
				mutate: func(b *builder.ReservationBuilder) {
					start := b.Now.Add(b.Policy.MaxHorizon)
					b.Between(start, start.Add(time.Hour))
				},
			},
			{
				name: "beyond the horizon",
				mutate: func(b *builder.ReservationBuilder) {
					start := b.Now.Add(b.Policy.MaxHorizon + time.Minute)
					b.Between(start, start.Add(time.Hour))
				},
				errIs: reservation.ErrReservationTooFar,
			},
			{
				name:   "missing member",
				mutate: func(b *builder.ReservationBuilder) { b.MemberID = uuid.Nil },
				errIs:  reservation.ErrMemberRequired,
			},
		})
	})
}

func TestCancel(t *testing.T) {
	b := builder.NewReservationBuilder()
	policy := reservation.Policy{MaxHorizon: 30 * 24 * time.Hour, CancellationCutoff: time.Hour}
	cutoff := b.StartTime.Add(-time.Hour)

	type cancelCase struct {
		name   string
		status reservation.Status
		now    time.Time
		errIs  error
	}

	cases := []cancelCase{
		{name: "confirmed well before start", status: reservation.StatusConfirmed, now: cutoff.Add(-time.Minute)},
		{name: "pending well before start", status: reservation.StatusPending, now: cutoff.Add(-time.Minute)},
		{name: "exactly at the cutoff", status: reservation.StatusConfirmed, now: cutoff, errIs: reservation.ErrCannotCancelReservation},
		{name: "inside the cutoff", status: reservation.StatusConfirmed, now: cutoff.Add(time.Minute), errIs: reservation.ErrCannotCancelReservation},
		{name: "already cancelled", status: reservation.StatusCancelled, now: cutoff.Add(-time.Hour), errIs: reservation.ErrCannotCancelReservation},
		{name: "completed", status: reservation.StatusCompleted, now: cutoff.Add(-time.Hour), errIs: reservation.ErrCannotCancelReservation},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := builder.NewReservationBuilder().
				Between(b.StartTime, b.EndTime).
				WithStatus(c.status).
				BuildReconstructed()

			err := r.Cancel(policy, c.now)

			if c.errIs != nil {
				require.ErrorIs(t, err, c.errIs)
				assert.Equal(t, c.status, r.Status())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, reservation.StatusCancelled, r.Status())
			require.NotNil(t, r.CancelledAt())
			assert.Equal(t, c.now, *r.CancelledAt())
		})
	}
}

func TestConfirmAndComplete(t *testing.T) {
	r, err := builder.NewReservationBuilder().BuildDomain()
	require.NoError(t, err)
	start := r.TimeSlot().Start()

	require.ErrorIs(t, r.Complete(start), reservation.ErrInvalidReservationTransition, "pending cannot complete")

	require.NoError(t, r.Confirm(start.Add(-time.Hour)))
	assert.Equal(t, reservation.StatusConfirmed, r.Status())
	require.ErrorIs(t, r.Confirm(start), reservation.ErrInvalidReservationTransition)

	require.ErrorIs(t, r.Complete(start.Add(-time.Second)), reservation.ErrInvalidReservationTransition, "slot has not started")
	require.NoError(t, r.Complete(start))
	assert.Equal(t, reservation.StatusCompleted, r.Status())
	assert.Equal(t, uint64(3), r.Version())
}

func TestTimeSlot_DayWindow(t *testing.T) {
	start := time.Date(2025, 6, 2, 22, 0, 0, 0, time.UTC)
	slot, err := reservation.NewTimeSlot(start, start.Add(3*time.Hour))
	require.NoError(t, err)

	from, to := slot.DayWindow()

	assert.Equal(t, time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC), to)
}
