//go:build unit

package queries_test

import (
	"context"
	"testing"
	"time"

	"billiard-hall/internal/domain/money"
	"billiard-hall/internal/domain/order"
	"billiard-hall/internal/infra/memstore"
	"billiard-hall/internal/usecase/queries"
	"billiard-hall/internal/usecase/shared"
	"billiard-hall/tests/common/builder"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, fn func(ctx context.Context, tx shared.Tx) error) *memstore.Store {
	t.Helper()
	store := memstore.New()
	require.NoError(t, store.Within(context.Background(), fn))
	return store
}

func TestTableQueries_Get(t *testing.T) {
	tb := builder.NewTableBuilder().WithNumber(7).WithHourlyRate("42.50")
	store := seed(t, func(ctx context.Context, tx shared.Tx) error {
		return tx.Tables().Save(ctx, tb.BuildReconstructed())
	})

	view, err := queries.NewTableQueries(store).Get(context.Background(), tb.ID)

	require.NoError(t, err)
	assert.Equal(t, 7, view.Number)
	assert.Equal(t, "idle", view.Status)
	assert.Equal(t, int64(4250), view.HourlyRateCents)
	assert.Equal(t, "42.50", view.HourlyRate)
}

func TestReservationQueries_ListByTable(t *testing.T) {
	tableID := uuid.New()
	day := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	late := builder.NewReservationBuilder().ForTable(tableID).Between(day.Add(20*time.Hour), day.Add(21*time.Hour))
	early := builder.NewReservationBuilder().ForTable(tableID).Between(day.Add(10*time.Hour), day.Add(11*time.Hour))
	otherTable := builder.NewReservationBuilder().Between(day.Add(10*time.Hour), day.Add(11*time.Hour))

	store := seed(t, func(ctx context.Context, tx shared.Tx) error {
		for _, b := range []*builder.ReservationBuilder{late, early, otherTable} {
			if err := tx.Reservations().Save(ctx, b.BuildReconstructed()); err != nil {
				return err
			}
		}
		return nil
	})

	views, err := queries.NewReservationQueries(store).ListByTable(context.Background(), tableID, day, day.Add(24*time.Hour))

	require.NoError(t, err)
	want := []*queries.ReservationView{
		{ID: early.ID, TableID: tableID, MemberID: early.MemberID, StartTime: early.StartTime, EndTime: early.EndTime, Status: "confirmed", Version: 2, CreatedAt: early.Now},
		{ID: late.ID, TableID: tableID, MemberID: late.MemberID, StartTime: late.StartTime, EndTime: late.EndTime, Status: "confirmed", Version: 2, CreatedAt: late.Now},
	}
	if diff := cmp.Diff(want, views); diff != "" {
		t.Errorf("ListByTable() mismatch (-want +got):\n%s", diff)
	}

	_, err = queries.NewReservationQueries(store).ListByTable(context.Background(), tableID, day, day)
	assert.Error(t, err)
}

func TestOrderQueries_Get(t *testing.T) {
	start := time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)
	o, err := order.NewOrder(uuid.New(), uuid.New(), uuid.New(), money.FromCents(6000), start)
	require.NoError(t, err)
	require.NoError(t, o.RequestSettlement(start.Add(45*time.Minute)))
	store := seed(t, func(ctx context.Context, tx shared.Tx) error {
		return tx.Orders().Save(ctx, o)
	})

	view, err := queries.NewOrderQueries(store).Get(context.Background(), o.ID())

	require.NoError(t, err)
	assert.Equal(t, "pending_settlement", view.Status)
	assert.Equal(t, int64(4500), view.ChargeCents)
	assert.Equal(t, "45.00", view.Charge)
	require.NotNil(t, view.EndTime)

	_, err = queries.NewOrderQueries(store).Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
