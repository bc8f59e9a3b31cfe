package marketplace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct{ DB *pgxpool.Pool }

var _ Store = (*PGStore)(nil)

func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTx struct{ tx pgx.Tx }

// Savepoint: pgx menerjemahkan Begin di dalam tx menjadi SAVEPOINT. Setelah
// ROLLBACK TO SAVEPOINT, tx luar bisa dipakai lagi walau statement di dalam fn error.
func (t *pgTx) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		if rerr := sp.Rollback(ctx); rerr != nil {
			return errors.Join(err, fmt.Errorf("rollback savepoint: %w", rerr))
		}
		return err
	}
	return sp.Commit(ctx)
}

func (t *pgTx) Append(ctx context.Context, e saga.Entry) (saga.Entry, error) {
	var data any
	if len(e.Data) > 0 {
		data = string(e.Data)
	}
	err := t.tx.QueryRow(ctx, `
		INSERT INTO saga_logs(saga_id, step, status, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, created_at`,
		e.SagaID, e.Step, string(e.Status), data,
	).Scan(&e.Seq, &e.CreatedAt)
	return e, err
}

func (t *pgTx) Entries(ctx context.Context, sagaID string) ([]saga.Entry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, saga_id, step, status, COALESCE(data::text, ''), created_at
		FROM saga_logs WHERE saga_id = $1 ORDER BY id`, sagaID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []saga.Entry
	for rows.Next() {
		var e saga.Entry
		var status, data string
		if err := rows.Scan(&e.Seq, &e.SagaID, &e.Step, &status, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Status = saga.Status(status)
		if data != "" {
			e.Data = []byte(data)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) DecrementStock(ctx context.Context, productID int64, tenantID string, qty int) (int, bool, error) {
	var remaining int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock = stock - $1
		WHERE id = $2 AND tenant_id = $3 AND stock >= $1
		RETURNING stock`, qty, productID, tenantID).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return remaining, true, nil
}

func (t *pgTx) IncrementStock(ctx context.Context, productID int64, qty int) (int, error) {
	var stock int
	err := t.tx.QueryRow(ctx, `UPDATE products SET stock = stock + $1 WHERE id = $2 RETURNING stock`,
		qty, productID).Scan(&stock)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	return stock, err
}

func (t *pgTx) LoadCart(ctx context.Context, userID int64, tenantID string) (*Cart, error) {
	cart := &Cart{UserID: userID, TenantID: tenantID}
	err := t.tx.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1 AND tenant_id = $2`,
		userID, tenantID).Scan(&cart.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	// harga diambil sekarang: ini snapshot yang dipakai untuk total order
	rows, err := t.tx.Query(ctx, `
		SELECT ci.product_id, ci.quantity, p.price_cents, p.stock, p.tenant_id
		FROM cart_items ci
		JOIN products p ON ci.product_id = p.id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`, cart.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it CartItem
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.PriceCents, &it.Stock, &it.TenantID); err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, it)
	}
	return cart, rows.Err()
}

func (t *pgTx) UpsertCartItem(ctx context.Context, userID int64, tenantID string, productID int64, qty int) error {
	var exists bool
	if err := t.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE id = $1 AND tenant_id = $2)`,
		productID, tenantID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}

	var cartID int64
	if err := t.tx.QueryRow(ctx, `
		INSERT INTO carts(user_id, tenant_id) VALUES ($1, $2)
		ON CONFLICT (user_id, tenant_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id`, userID, tenantID).Scan(&cartID); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO cart_items(cart_id, product_id, quantity) VALUES ($1, $2, $3)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		cartID, productID, qty)
	return err
}

func (t *pgTx) ClearCart(ctx context.Context, cartID int64) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx, `DELETE FROM carts WHERE id = $1`, cartID)
	return err
}

func (t *pgTx) ListProducts(ctx context.Context, tenantID string) ([]Product, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, seller_id, name, price_cents, stock, tenant_id, created_at
		FROM products WHERE tenant_id = $1 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.PriceCents, &p.Stock, &p.TenantID, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// InsertProduct membuat seller per tenant kalau belum ada.
func (t *pgTx) InsertProduct(ctx context.Context, p *Product) error {
	err := t.tx.QueryRow(ctx, `SELECT id FROM sellers WHERE tenant_id = $1 ORDER BY id LIMIT 1`,
		p.TenantID).Scan(&p.SellerID)
	if errors.Is(err, pgx.ErrNoRows) {
		err = t.tx.QueryRow(ctx, `INSERT INTO sellers(name, tenant_id) VALUES ($1, $2) RETURNING id`,
			"Seller for "+p.TenantID, p.TenantID).Scan(&p.SellerID)
	}
	if err != nil {
		return err
	}
	return t.tx.QueryRow(ctx, `
		INSERT INTO products(seller_id, name, price_cents, stock, tenant_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		p.SellerID, p.Name, p.PriceCents, p.Stock, p.TenantID,
	).Scan(&p.ID, &p.CreatedAt)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, total_cents, status, saga_id, tenant_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		o.UserID, o.TotalCents, string(o.Status), o.SagaID, o.TenantID,
	).Scan(&o.ID, &o.CreatedAt)
}

func (t *pgTx) InsertOrderItem(ctx context.Context, it OrderItem) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO order_items(order_id, product_id, quantity, price_cents)
		VALUES ($1, $2, $3, $4)`,
		it.OrderID, it.ProductID, it.Quantity, it.PriceCents)
	return err
}

func (t *pgTx) TransitionOrder(ctx context.Context, orderID int64, from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("order %d %s -> %s: %w", orderID, from, to, ErrInvalidTransition)
	}
	ct, err := t.tx.Exec(ctx, `UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		string(to), orderID, string(from))
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("order %d not in %s: %w", orderID, from, ErrInvalidTransition)
	}
	return nil
}

func (t *pgTx) GetOrder(ctx context.Context, orderID, userID int64, tenantID string) (*Order, error) {
	var o Order
	var status string
	err := t.tx.QueryRow(ctx, `
		SELECT id, user_id, total_cents, status, saga_id, tenant_id, created_at
		FROM orders WHERE id = $1 AND user_id = $2 AND tenant_id = $3`,
		orderID, userID, tenantID,
	).Scan(&o.ID, &o.UserID, &o.TotalCents, &status, &o.SagaID, &o.TenantID, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)

	rows, err := t.tx.Query(ctx, `
		SELECT order_id, product_id, quantity, price_cents
		FROM order_items WHERE order_id = $1 ORDER BY id`, o.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Quantity, &it.PriceCents); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (t *pgTx) ListOrders(ctx context.Context, userID int64, tenantID string) ([]Order, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, user_id, total_cents, status, saga_id, tenant_id, created_at
		FROM orders WHERE user_id = $1 AND tenant_id = $2
		ORDER BY id DESC`, userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		var o Order
		var status string
		if err := rows.Scan(&o.ID, &o.UserID, &o.TotalCents, &status, &o.SagaID, &o.TenantID, &o.CreatedAt); err != nil {
			return nil, err
		}
		o.Status = Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (t *pgTx) EnqueueOutbox(ctx context.Context, ev OutboxEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox_events(id, topic, key, event_type, payload)
		VALUES ($1, $2, $3, $4, $5::jsonb)`,
		ev.ID, ev.Topic, ev.Key, ev.EventType, string(ev.Payload))
	return err
}

// PendingOutbox mengunci baris yang diambil (SKIP LOCKED) supaya beberapa relay tidak rebutan.
func (t *pgTx) PendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, topic, key, event_type, payload::text, created_at
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEvent
	for rows.Next() {
		var ev OutboxEvent
		var payload string
		if err := rows.Scan(&ev.ID, &ev.Topic, &ev.Key, &ev.EventType, &payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.Payload = []byte(payload)
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (t *pgTx) MarkOutboxPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := t.tx.Exec(ctx, `UPDATE outbox_events SET published_at = $1 WHERE id = ANY($2)`, at, ids)
	return err
}
