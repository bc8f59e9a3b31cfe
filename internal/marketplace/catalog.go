package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/ariefcatur/go-marketplace-checkout/internal/redisx"
)

// Catalog covers the reads and writes around checkout: products, cart, orders.
type Catalog struct {
	store Store
	cache Cache
}

func NewCatalog(store Store, cache Cache) *Catalog {
	return &Catalog{store: store, cache: cache}
}

// ListProducts membaca dari cache dulu; miss atau error cache jatuh ke DB.
func (c *Catalog) ListProducts(ctx context.Context, tenantID string) ([]Product, error) {
	key := fmt.Sprintf(redisx.KeyProducts, tenantID)
	if c.cache != nil {
		var cached []Product
		hit, err := c.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			log.Printf("products cache get %s: %v", key, err)
		}
		if hit {
			return cached, nil
		}
	}

	var out []Product
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ListProducts(ctx, tenantID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, key, out, redisx.TTLProducts); err != nil {
			log.Printf("products cache set %s: %v", key, err)
		}
	}
	return out, nil
}

type NewProduct struct {
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	Stock      int    `json:"stock"`
}

func (c *Catalog) CreateProduct(ctx context.Context, tenantID string, in NewProduct) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || in.PriceCents < 0 || in.Stock < 0 {
		return nil, fmt.Errorf("product %q price=%d stock=%d: %w", in.Name, in.PriceCents, in.Stock, ErrInvalidInput)
	}
	p := &Product{Name: name, PriceCents: in.PriceCents, Stock: in.Stock, TenantID: tenantID}
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.InsertProduct(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, tenantID)
	return p, nil
}

func (c *Catalog) AddToCart(ctx context.Context, userID int64, tenantID string, productID int64, qty int) (*Cart, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity %d: %w", qty, ErrInvalidInput)
	}
	var cart *Cart
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.UpsertCartItem(ctx, userID, tenantID, productID, qty); err != nil {
			return err
		}
		var err error
		cart, err = tx.LoadCart(ctx, userID, tenantID)
		return err
	})
	return cart, err
}

// GetCart returns an empty cart rather than ErrNotFound when the user has none.
func (c *Catalog) GetCart(ctx context.Context, userID int64, tenantID string) (*Cart, error) {
	var cart *Cart
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		cart, err = tx.LoadCart(ctx, userID, tenantID)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return &Cart{UserID: userID, TenantID: tenantID, Items: []CartItem{}}, nil
	}
	return cart, err
}

func (c *Catalog) GetOrder(ctx context.Context, orderID, userID int64, tenantID string) (*Order, error) {
	var o *Order
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		o, err = tx.GetOrder(ctx, orderID, userID, tenantID)
		return err
	})
	return o, err
}

func (c *Catalog) ListOrders(ctx context.Context, userID int64, tenantID string) ([]Order, error) {
	var out []Order
	err := c.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.ListOrders(ctx, userID, tenantID)
		return err
	})
	return out, err
}

func (c *Catalog) invalidate(ctx context.Context, tenantID string) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, fmt.Sprintf(redisx.KeyProducts, tenantID)); err != nil {
		log.Printf("products cache invalidate tenant=%s: %v", tenantID, err)
	}
}
