package marketplace

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
)

// MemStore is an in-memory Store. A transaction holds the store lock for its
// whole duration and rolls back by restoring a snapshot. Savepoints work the same way.
type MemStore struct {
	mu   sync.Mutex
	data *memData
}

type cartKey struct {
	userID   int64
	tenantID string
}

type memCart struct {
	id    int64
	items []memCartItem
}

type memCartItem struct {
	productID int64
	qty       int
}

type memData struct {
	seq      int64
	sellers  map[string]int64
	products map[int64]Product
	carts    map[cartKey]memCart
	orders   map[int64]Order
	sagaLog  []saga.Entry
	outbox   []OutboxEvent
}

func NewMemStore() *MemStore {
	return &MemStore{data: &memData{
		sellers:  map[string]int64{},
		products: map[int64]Product{},
		carts:    map[cartKey]memCart{},
		orders:   map[int64]Order{},
	}}
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.data.clone()
	if err := fn(ctx, &memTx{d: &m.data}); err != nil {
		m.data = snap
		return err
	}
	return nil
}

func (d *memData) clone() *memData {
	c := &memData{
		seq:      d.seq,
		sellers:  make(map[string]int64, len(d.sellers)),
		products: make(map[int64]Product, len(d.products)),
		carts:    make(map[cartKey]memCart, len(d.carts)),
		orders:   make(map[int64]Order, len(d.orders)),
		sagaLog:  append([]saga.Entry(nil), d.sagaLog...),
		outbox:   append([]OutboxEvent(nil), d.outbox...),
	}
	for k, v := range d.sellers {
		c.sellers[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.carts {
		v.items = append([]memCartItem(nil), v.items...)
		c.carts[k] = v
	}
	for k, v := range d.orders {
		v.Items = append([]OrderItem(nil), v.Items...)
		c.orders[k] = v
	}
	return c
}

func (d *memData) next() int64 {
	d.seq++
	return d.seq
}

type memTx struct {
	d **memData
}

func (t *memTx) data() *memData { return *t.d }

func (t *memTx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.data().clone()
	if err := fn(ctx); err != nil {
		*t.d = snap
		return err
	}
	return nil
}

func (t *memTx) Append(_ context.Context, e saga.Entry) (saga.Entry, error) {
	d := t.data()
	e.Seq = d.next()
	e.CreatedAt = time.Now().UTC()
	d.sagaLog = append(d.sagaLog, e)
	return e, nil
}

func (t *memTx) Entries(_ context.Context, sagaID string) ([]saga.Entry, error) {
	var out []saga.Entry
	for _, e := range t.data().sagaLog {
		if e.SagaID == sagaID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, tenantID string, qty int) (int, bool, error) {
	d := t.data()
	p, ok := d.products[productID]
	if !ok || p.TenantID != tenantID || p.Stock < qty {
		return 0, false, nil
	}
	p.Stock -= qty
	d.products[productID] = p
	return p.Stock, true, nil
}

func (t *memTx) IncrementStock(_ context.Context, productID int64, qty int) (int, error) {
	d := t.data()
	p, ok := d.products[productID]
	if !ok {
		return 0, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	p.Stock += qty
	d.products[productID] = p
	return p.Stock, nil
}

func (t *memTx) LoadCart(_ context.Context, userID int64, tenantID string) (*Cart, error) {
	d := t.data()
	c, ok := d.carts[cartKey{userID, tenantID}]
	if !ok {
		return nil, ErrNotFound
	}
	cart := &Cart{ID: c.id, UserID: userID, TenantID: tenantID}
	for _, it := range c.items {
		p, ok := d.products[it.productID]
		if !ok {
			continue
		}
		cart.Items = append(cart.Items, CartItem{
			ProductID:  p.ID,
			Quantity:   it.qty,
			PriceCents: p.PriceCents,
			Stock:      p.Stock,
			TenantID:   p.TenantID,
		})
	}
	return cart, nil
}

func (t *memTx) UpsertCartItem(_ context.Context, userID int64, tenantID string, productID int64, qty int) error {
	d := t.data()
	if p, ok := d.products[productID]; !ok || p.TenantID != tenantID {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	k := cartKey{userID, tenantID}
	c, ok := d.carts[k]
	if !ok {
		c = memCart{id: d.next()}
	}
	for i := range c.items {
		if c.items[i].productID == productID {
			c.items[i].qty += qty
			d.carts[k] = c
			return nil
		}
	}
	c.items = append(c.items, memCartItem{productID: productID, qty: qty})
	d.carts[k] = c
	return nil
}

func (t *memTx) ClearCart(_ context.Context, cartID int64) error {
	d := t.data()
	for k, c := range d.carts {
		if c.id == cartID {
			delete(d.carts, k)
		}
	}
	return nil
}

func (t *memTx) ListProducts(_ context.Context, tenantID string) ([]Product, error) {
	out := make([]Product, 0)
	for _, p := range t.data().products {
		if p.TenantID == tenantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *memTx) InsertProduct(_ context.Context, p *Product) error {
	d := t.data()
	sellerID, ok := d.sellers[p.TenantID]
	if !ok {
		sellerID = d.next()
		d.sellers[p.TenantID] = sellerID
	}
	p.ID = d.next()
	p.SellerID = sellerID
	p.CreatedAt = time.Now().UTC()
	d.products[p.ID] = *p
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *Order) error {
	d := t.data()
	o.ID = d.next()
	o.CreatedAt = time.Now().UTC()
	stored := *o
	stored.Items = nil
	d.orders[o.ID] = stored
	return nil
}

func (t *memTx) InsertOrderItem(_ context.Context, it OrderItem) error {
	d := t.data()
	o, ok := d.orders[it.OrderID]
	if !ok {
		return fmt.Errorf("order %d: %w", it.OrderID, ErrNotFound)
	}
	o.Items = append(o.Items, it)
	d.orders[it.OrderID] = o
	return nil
}

func (t *memTx) TransitionOrder(_ context.Context, orderID int64, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("order %d %s -> %s: %w", orderID, from, to, ErrInvalidTransition)
	}
	d := t.data()
	o, ok := d.orders[orderID]
	if !ok {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	if o.Status != from {
		return fmt.Errorf("order %d is %s, not %s: %w", orderID, o.Status, from, ErrInvalidTransition)
	}
	o.Status = to
	d.orders[orderID] = o
	return nil
}

func (t *memTx) GetOrder(_ context.Context, orderID, userID int64, tenantID string) (*Order, error) {
	o, ok := t.data().orders[orderID]
	if !ok || o.UserID != userID || o.TenantID != tenantID {
		return nil, ErrNotFound
	}
	o.Items = append([]OrderItem(nil), o.Items...)
	return &o, nil
}

func (t *memTx) ListOrders(_ context.Context, userID int64, tenantID string) ([]Order, error) {
	out := make([]Order, 0)
	for _, o := range t.data().orders {
		if o.UserID == userID && o.TenantID == tenantID {
			o.Items = append([]OrderItem(nil), o.Items...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (t *memTx) EnqueueOutbox(_ context.Context, ev OutboxEvent) error {
	d := t.data()
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	d.outbox = append(d.outbox, ev)
	return nil
}

func (t *memTx) PendingOutbox(_ context.Context, limit int) ([]OutboxEvent, error) {
	var out []OutboxEvent
	for _, ev := range t.data().outbox {
		if ev.PublishedAt != nil {
			continue
		}
		out = append(out, ev)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (t *memTx) MarkOutboxPublished(_ context.Context, ids []string, at time.Time) error {
	d := t.data()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range d.outbox {
		if want[d.outbox[i].ID] {
			ts := at
			d.outbox[i].PublishedAt = &ts
		}
	}
	return nil
}
