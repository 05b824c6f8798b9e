//go:build unit

package table_test

import (
	"testing"
	"time"

	"billiard-hall/internal/domain/money"
	"billiard-hall/internal/domain/table"
	"billiard-hall/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name   string
	mutate func(*builder.TableBuilder)
	errIs  error
}

func runCases(t *testing.T, cases []testCase) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			actual, err := builder.NewTableBuilder().With(c.mutate).BuildDomain()

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

func TestNewTable(t *testing.T) {
	t.Run("basic success case", func(t *testing.T) {
		b := builder.NewTableBuilder()
		actual, err := b.BuildDomain()
		require.NoError(t, err)

		assert.Equal(t, b.ID, actual.ID())
		assert.Equal(t, table.StatusIdle, actual.Status())
		assert.Equal(t, int64(5000), actual.HourlyRate().Cents())
		assert.Equal(t, uint64(1), actual.Version())
		assert.False(t, actual.Retired())
	})

	t.Run("validation", func(t *testing.T) {
		runCases(t, []testCase{
			{name: "zero rate", mutate: func(b *builder.TableBuilder) { b.WithHourlyRate("0") }, errIs: table.ErrInvalidHourlyRate},
			{name: "negative rate", mutate: func(b *builder.TableBuilder) { b.WithHourlyRate("-5.00") }, errIs: table.ErrInvalidHourlyRate},
			{name: "smallest positive rate", mutate: func(b *builder.TableBuilder) { b.WithHourlyRate("0.01") }},
			{name: "zero number", mutate: func(b *builder.TableBuilder) { b.WithNumber(0) }, errIs: table.ErrInvalidTableNumber},
		})
	})
}

func TestChangeStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	member := uuid.New()
	other := uuid.New()

	type transitionCase struct {
		name       string
		from       *builder.TableBuilder
		transition table.Transition
		want       table.Status
		errIs      error
	}

	cases := []transitionCase{
		{name: "idle to in use", from: builder.NewTableBuilder(), transition: table.Transition{Target: table.StatusInUse}, want: table.StatusInUse},
		{name: "in use to idle", from: builder.NewTableBuilder().WithStatus(table.StatusInUse), transition: table.Transition{Target: table.StatusIdle}, want: table.StatusIdle},
		{name: "idle to reserved", from: builder.NewTableBuilder(), transition: table.Transition{Target: table.StatusReserved, MemberID: member}, want: table.StatusReserved},
		{name: "reserve without member", from: builder.NewTableBuilder(), transition: table.Transition{Target: table.StatusReserved}, errIs: table.ErrMemberRequired},
		{name: "reserved to idle", from: builder.NewTableBuilder().ReservedForMember(member), transition: table.Transition{Target: table.StatusIdle}, want: table.StatusIdle},
		{name: "reserved to in use by holder", from: builder.NewTableBuilder().ReservedForMember(member), transition: table.Transition{Target: table.StatusInUse, MemberID: member}, want: table.StatusInUse},
		{name: "reserved to in use by another member", from: builder.NewTableBuilder().ReservedForMember(member), transition: table.Transition{Target: table.StatusInUse, MemberID: other}, errIs: table.ErrTableReservedForAnother},
		{name: "in use to reserved", from: builder.NewTableBuilder().WithStatus(table.StatusInUse), transition: table.Transition{Target: table.StatusReserved, MemberID: member}, errIs: table.ErrInvalidStatusTransition},
		{name: "idle to idle", from: builder.NewTableBuilder(), transition: table.Transition{Target: table.StatusIdle}, errIs: table.ErrInvalidStatusTransition},
		{name: "in use to maintenance", from: builder.NewTableBuilder().WithStatus(table.StatusInUse), transition: table.Transition{Target: table.StatusMaintenance}, want: table.StatusMaintenance},
		{name: "reserved to maintenance", from: builder.NewTableBuilder().ReservedForMember(member), transition: table.Transition{Target: table.StatusMaintenance}, want: table.StatusMaintenance},
		{name: "maintenance to maintenance", from: builder.NewTableBuilder().WithStatus(table.StatusMaintenance), transition: table.Transition{Target: table.StatusMaintenance}, errIs: table.ErrInvalidStatusTransition},
		{name: "maintenance to idle needs an administrator", from: builder.NewTableBuilder().WithStatus(table.StatusMaintenance), transition: table.Transition{Target: table.StatusIdle}, errIs: table.ErrAdministrativeCommandRequired},
		{name: "maintenance to idle by administrator", from: builder.NewTableBuilder().WithStatus(table.StatusMaintenance), transition: table.Transition{Target: table.StatusIdle, Administrative: true}, want: table.StatusIdle},
		{name: "maintenance to in use", from: builder.NewTableBuilder().WithStatus(table.StatusMaintenance), transition: table.Transition{Target: table.StatusInUse, Administrative: true}, errIs: table.ErrInvalidStatusTransition},
		{name: "any state to error", from: builder.NewTableBuilder().WithStatus(table.StatusMaintenance), transition: table.Transition{Target: table.StatusError, Reason: "cloth torn"}, want: table.StatusError},
		{name: "error to in use", from: builder.NewTableBuilder().WithStatus(table.StatusError), transition: table.Transition{Target: table.StatusInUse}, errIs: table.ErrCannotChangeStatusFromOutOfOrder},
		{name: "error to idle even as administrator", from: builder.NewTableBuilder().WithStatus(table.StatusError), transition: table.Transition{Target: table.StatusIdle, Administrative: true}, errIs: table.ErrCannotChangeStatusFromOutOfOrder},
		{name: "error to maintenance", from: builder.NewTableBuilder().WithStatus(table.StatusError), transition: table.Transition{Target: table.StatusMaintenance}, errIs: table.ErrCannotChangeStatusFromOutOfOrder},
		{name: "unknown target", from: builder.NewTableBuilder(), transition: table.Transition{Target: "broken"}, errIs: table.ErrUnknownStatus},
		{name: "retired table", from: builder.NewTableBuilder().WithRetired(), transition: table.Transition{Target: table.StatusInUse}, errIs: table.ErrTableRetired},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tbl := c.from.BuildReconstructed()
			before := tbl.Version()
			beforeStatus := tbl.Status()

			err := tbl.ChangeStatus(c.transition, now)

			if c.errIs != nil {
				require.ErrorIs(t, err, c.errIs)
				assert.Equal(t, beforeStatus, tbl.Status(), "rejected transition must not change state")
				assert.Equal(t, before, tbl.Version())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, tbl.Status())
			assert.Equal(t, before+1, tbl.Version())
			assert.Equal(t, now, tbl.UpdatedAt())
		})
	}
}

func TestReservedForIsTrackedOnlyWhileReserved(t *testing.T) {
	member := uuid.New()
	tbl := builder.NewTableBuilder().BuildReconstructed()
	now := time.Now()

	require.NoError(t, tbl.ChangeStatus(table.Transition{Target: table.StatusReserved, MemberID: member}, now))
	require.NotNil(t, tbl.ReservedFor())
	assert.Equal(t, member, *tbl.ReservedFor())

	require.NoError(t, tbl.ChangeStatus(table.Transition{Target: table.StatusInUse, MemberID: member}, now))
	assert.Nil(t, tbl.ReservedFor())
}

func TestOutOfOrderRecovery(t *testing.T) {
	tbl := builder.NewTableBuilder().WithStatus(table.StatusError).BuildReconstructed()
	now := time.Now()

	err := tbl.ChangeStatus(table.Transition{Target: table.StatusInUse}, now)
	require.ErrorIs(t, err, table.ErrCannotChangeStatusFromOutOfOrder)

	require.NoError(t, tbl.ClearError(now))
	assert.Equal(t, table.StatusIdle, tbl.Status())

	require.NoError(t, tbl.ChangeStatus(table.Transition{Target: table.StatusInUse}, now))
	assert.Equal(t, table.StatusInUse, tbl.Status())
}

func TestClearError_OnlyFromError(t *testing.T) {
	tbl := builder.NewTableBuilder().BuildReconstructed()

	assert.ErrorIs(t, tbl.ClearError(time.Now()), table.ErrInvalidStatusTransition)
}

func TestChangeRate(t *testing.T) {
	tbl := builder.NewTableBuilder().WithStatus(table.StatusInUse).BuildReconstructed()

	require.ErrorIs(t, tbl.ChangeRate(money.FromCents(0), time.Now()), table.ErrInvalidHourlyRate)
	assert.Equal(t, int64(5000), tbl.HourlyRate().Cents())

	require.NoError(t, tbl.ChangeRate(money.FromCents(6500), time.Now()))
	assert.Equal(t, int64(6500), tbl.HourlyRate().Cents())
	assert.Equal(t, uint64(2), tbl.Version())
}

func TestRetire(t *testing.T) {
	t.Run("busy tables cannot be retired", func(t *testing.T) {
		tbl := builder.NewTableBuilder().WithStatus(table.StatusInUse).BuildReconstructed()

		assert.ErrorIs(t, tbl.Retire(time.Now()), table.ErrTableBusy)
	})

	t.Run("retired tables keep their identity and refuse changes", func(t *testing.T) {
		b := builder.NewTableBuilder().WithStatus(table.StatusMaintenance)
		tbl := b.BuildReconstructed()

		require.NoError(t, tbl.Retire(time.Now()))

		assert.True(t, tbl.Retired())
		assert.Equal(t, b.ID, tbl.ID())
		assert.False(t, tbl.AcceptsReservations())
		assert.ErrorIs(t, tbl.ChangeRate(money.FromCents(100), time.Now()), table.ErrTableRetired)
		assert.ErrorIs(t, tbl.Retire(time.Now()), table.ErrTableRetired)
	})
}

func TestSnapshotRoundTrip(t *testing.T) {
	member := uuid.New()
	original := builder.NewTableBuilder().ReservedForMember(member).BuildReconstructed()

	restored := table.Reconstruct(original.Snapshot())

	assert.Equal(t, original.Snapshot(), restored.Snapshot())
}
