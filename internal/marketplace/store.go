package marketplace

import (
	"context"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
)

// Store opens units of work. fn's error rolls everything back; nil commits.
type Store interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// StockTx is the part of a unit of work the ledger needs.
type StockTx interface {
	saga.Log
	// DecrementStock subtracts qty only if stock >= qty, atomically per row.
	// ok=false means the guard did not hold (or the product is not in tenantID).
	DecrementStock(ctx context.Context, productID int64, tenantID string, qty int) (remaining int, ok bool, err error)
	IncrementStock(ctx context.Context, productID int64, qty int) (int, error)
}

type Tx interface {
	StockTx

	// Savepoint runs fn so that its error undoes only fn's writes.
	Savepoint(ctx context.Context, fn func(ctx context.Context) error) error

	LoadCart(ctx context.Context, userID int64, tenantID string) (*Cart, error)
	UpsertCartItem(ctx context.Context, userID int64, tenantID string, productID int64, qty int) error
	ClearCart(ctx context.Context, cartID int64) error

	ListProducts(ctx context.Context, tenantID string) ([]Product, error)
	InsertProduct(ctx context.Context, p *Product) error

	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderItem(ctx context.Context, it OrderItem) error
	// TransitionOrder applies from -> to only while the row is still in from.
	TransitionOrder(ctx context.Context, orderID int64, from, to Status) error
	GetOrder(ctx context.Context, orderID, userID int64, tenantID string) (*Order, error)
	ListOrders(ctx context.Context, userID int64, tenantID string) ([]Order, error)

	EnqueueOutbox(ctx context.Context, ev OutboxEvent) error
	PendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error)
	MarkOutboxPublished(ctx context.Context, ids []string, at time.Time) error
}
