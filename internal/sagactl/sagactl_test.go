package sagactl

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memOpener(s *marketplace.MemStore) Opener {
	return func(context.Context, string) (marketplace.Store, func(), error) {
		return s, func() {}, nil
	}
}

// seed leaves a saga that reserved 2 units and died before compensating.
func seed(t *testing.T) *marketplace.MemStore {
	t.Helper()
	s := marketplace.NewMemStore()
	p := &marketplace.Product{Name: "A", PriceCents: 100, Stock: 1, TenantID: "t1"}
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx marketplace.Tx) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		raw, err := json.Marshal(marketplace.ReservedItems{{ProductID: p.ID, Quantity: 2}})
		if err != nil {
			return err
		}
		_, err = tx.Append(ctx, saga.Entry{SagaID: "s-1", Step: marketplace.StepReserveStock, Status: saga.StatusCompleted, Data: raw})
		return err
	}))
	return s
}

func run(t *testing.T, s *marketplace.MemStore, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(memOpener(s), "")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRestoreThenLog(t *testing.T) {
	s := seed(t)

	out, err := run(t, s, "restore", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "+2 (stock now 3)")

	out, err = run(t, s, "restore", "s-1")
	require.NoError(t, err)
	assert.Contains(t, out, "already restored")

	out, err = run(t, s, "log", "s-1", "--format", "json")
	require.NoError(t, err)
	var entries []saga.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, marketplace.StepCompensateStock, entries[1].Step)
}

func TestLogUnknownSaga(t *testing.T) {
	out, err := run(t, marketplace.NewMemStore(), "log", "nope")
	require.NoError(t, err)
	assert.Contains(t, out, "No entries for saga: nope")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, marketplace.NewMemStore(), "log", "x", "--format", "yaml")
	assert.ErrorContains(t, err, "invalid format")
}

func TestRequiresSagaID(t *testing.T) {
	_, err := run(t, marketplace.NewMemStore(), "restore")
	assert.Error(t, err)
}

func TestRestoreLeavesConfirmedOrderStock(t *testing.T) {
	s := marketplace.NewMemStore()
	ctx := context.Background()
	p := &marketplace.Product{Name: "A", PriceCents: 100, Stock: 5, TenantID: "t1"}
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx marketplace.Tx) error {
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		return tx.UpsertCartItem(ctx, 7, "t1", p.ID, 2)
	}))
	svc := marketplace.NewCheckoutService(s, saga.NewRunner(nil), nil,
		marketplace.WithSagaIDs(func() string { return "s-ok" }))
	_, err := svc.Checkout(ctx, 7, "t1")
	require.NoError(t, err)

	out, err := run(t, s, "restore", "s-ok")
	require.NoError(t, err)
	assert.Contains(t, out, "nothing to do (order confirmed)")

	list, err := marketplace.NewCatalog(s, nil).ListProducts(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 3, list[0].Stock)
}
