//go:build unit

package reservation_test

import (
	"math/rand"
	"testing"
	"time"

	"billiard-hall/internal/domain/reservation"
	"billiard-hall/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotAt(t *testing.T, base time.Time, fromMin, toMin int) reservation.TimeSlot {
	t.Helper()
	slot, err := reservation.NewTimeSlot(base.Add(time.Duration(fromMin)*time.Minute), base.Add(time.Duration(toMin)*time.Minute))
	require.NoError(t, err)
	return slot
}

func TestFindConflict(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	tableID := uuid.New()
	existing := builder.NewReservationBuilder().
		ForTable(tableID).
		Between(base, base.Add(2*time.Hour)).
		BuildReconstructed()

	type conflictCase struct {
		name     string
		from, to int
		want     bool
	}

	cases := []conflictCase{
		{name: "inside", from: 30, to: 90, want: true},
		{name: "overlaps start", from: -60, to: 1, want: true},
		{name: "overlaps end", from: 119, to: 180, want: true},
		{name: "covers", from: -10, to: 200, want: true},
		{name: "identical", from: 0, to: 120, want: true},
		{name: "touches end", from: 120, to: 180, want: false},
		{name: "touches start", from: -60, to: 0, want: false},
		{name: "disjoint", from: 300, to: 360, want: false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := reservation.FindConflict([]*reservation.Reservation{existing}, slotAt(t, base, c.from, c.to), uuid.Nil)

			assert.Equal(t, c.want, got != nil)
		})
	}

	t.Run("cancelled reservations do not block", func(t *testing.T) {
		cancelled := builder.NewReservationBuilder().
			Between(base, base.Add(2*time.Hour)).
			WithStatus(reservation.StatusCancelled).
			BuildReconstructed()

		got := reservation.FindConflict([]*reservation.Reservation{cancelled}, slotAt(t, base, 30, 90), uuid.Nil)

		assert.Nil(t, got)
	})

	t.Run("excluded reservation is ignored", func(t *testing.T) {
		got := reservation.FindConflict([]*reservation.Reservation{existing}, slotAt(t, base, 30, 90), existing.ID())

		assert.Nil(t, got)
	})
}

// Accepting reservations greedily through FindConflict must never leave two
// accepted slots overlapping, whatever order the requests arrive in.
func TestFindConflict_AcceptedSlotsNeverOverlap(t *testing.T) {
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		var accepted []*reservation.Reservation
		for i := 0; i < 30; i++ {
			from := rng.Intn(24 * 60)
			slot := slotAt(t, base, from, from+15+rng.Intn(180))
			if reservation.FindConflict(accepted, slot, uuid.Nil) != nil {
				continue
			}
			accepted = append(accepted, builder.NewReservationBuilder().
				Between(slot.Start(), slot.End()).
				BuildReconstructed())
		}

		for i := range accepted {
			for j := i + 1; j < len(accepted); j++ {
				require.False(t, accepted[i].TimeSlot().Overlaps(accepted[j].TimeSlot()),
					"round %d: %s overlaps %s", round, accepted[i].TimeSlot().ToTstzrange(), accepted[j].TimeSlot().ToTstzrange())
			}
		}
	}
}
