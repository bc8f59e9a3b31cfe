package marketplace

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
	"github.com/stretchr/testify/require"
)

func seedProduct(t *testing.T, s Store, tenant, name string, price int64, stock int) Product {
	t.Helper()
	p := &Product{Name: name, PriceCents: price, Stock: stock, TenantID: tenant}
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.InsertProduct(ctx, p)
	}))
	return *p
}

func addToCart(t *testing.T, s Store, userID int64, tenant string, productID int64, qty int) {
	t.Helper()
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpsertCartItem(ctx, userID, tenant, productID, qty)
	}))
}

func stockOf(t *testing.T, s Store, tenant string, productID int64) int {
	t.Helper()
	var stock = -1
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		ps, err := tx.ListProducts(ctx, tenant)
		for _, p := range ps {
			if p.ID == productID {
				stock = p.Stock
			}
		}
		return err
	}))
	return stock
}

func sagaSteps(t *testing.T, s Store, sagaID string) []string {
	t.Helper()
	var out []string
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		es, err := tx.Entries(ctx, sagaID)
		for _, e := range es {
			out = append(out, e.Step+"/"+string(e.Status))
		}
		return err
	}))
	return out
}

func ordersOf(t *testing.T, s Store, userID int64, tenant string) []Order {
	t.Helper()
	var out []Order
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, userID, tenant)
		return err
	}))
	return out
}

func pendingOutbox(t *testing.T, s Store) []OutboxEvent {
	t.Helper()
	var out []OutboxEvent
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.PendingOutbox(ctx, 100)
		return err
	}))
	return out
}

// faultyStore injects errors into selected Tx calls.
type faultyStore struct {
	Store
	itemErr      error
	outboxErr    error
	incrementErr error
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return f.Store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return fn(ctx, &faultyTx{Tx: tx, f: f})
	})
}

type faultyTx struct {
	Tx
	f *faultyStore
}

func (t *faultyTx) InsertOrderItem(ctx context.Context, it OrderItem) error {
	if t.f.itemErr != nil {
		return t.f.itemErr
	}
	return t.Tx.InsertOrderItem(ctx, it)
}

func (t *faultyTx) EnqueueOutbox(ctx context.Context, ev OutboxEvent) error {
	if t.f.outboxErr != nil {
		return t.f.outboxErr
	}
	return t.Tx.EnqueueOutbox(ctx, ev)
}

func (t *faultyTx) IncrementStock(ctx context.Context, productID int64, qty int) (int, error) {
	if t.f.incrementErr != nil {
		return 0, t.f.incrementErr
	}
	return t.Tx.IncrementStock(ctx, productID, qty)
}

type fakeCache struct {
	mu          sync.Mutex
	data        map[string][]byte
	invalidated []string
	gets        int
}

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]byte{}} }

func (c *fakeCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (c *fakeCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.data[key] = b
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
		c.invalidated = append(c.invalidated, k)
	}
	return nil
}

func fixedIDs(ids ...string) func() string {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func newTestCheckout(s Store, c Cache, ids func() string) *CheckoutService {
	return NewCheckoutService(s, saga.NewRunner(nil), c, WithSagaIDs(ids))
}
