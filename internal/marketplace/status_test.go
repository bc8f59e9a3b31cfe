package marketplace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, false},
		{StatusCancelled, StatusConfirmed, false},
		{StatusConfirmed, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestOrder_TerminalStatesAreFinal(t *testing.T) {
	o := &Order{ID: 1, Status: StatusPending}
	require.NoError(t, o.Confirm())
	assert.True(t, o.Status.Terminal())
	assert.ErrorIs(t, o.Cancel(), ErrInvalidTransition)
	assert.Equal(t, StatusConfirmed, o.Status)
}

func TestNewOrder_TotalFromCapturedPrices(t *testing.T) {
	o := NewOrder(7, "t1", "s", []CartItem{
		{ProductID: 1, Quantity: 2, PriceCents: 1050},
		{ProductID: 2, Quantity: 1, PriceCents: 399},
	})
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(2499), o.TotalCents)
	assert.Len(t, o.Items, 2)
}

func TestMemStore_TransitionGuardsCurrentStatus(t *testing.T) {
	store := NewMemStore()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		o := &Order{UserID: 1, TenantID: "t1", Status: StatusPending}
		require.NoError(t, tx.InsertOrder(ctx, o))
		require.NoError(t, tx.TransitionOrder(ctx, o.ID, StatusPending, StatusCancelled))
		return tx.TransitionOrder(ctx, o.ID, StatusPending, StatusConfirmed)
	})
	require.ErrorIs(t, err, ErrInvalidTransition)
}
