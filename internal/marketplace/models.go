package marketplace

import "time"

type Product struct {
	ID         int64     `json:"id"`
	SellerID   int64     `json:"sellerId"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"priceCents"`
	Stock      int       `json:"stock"`
	TenantID   string    `json:"tenantId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Cart adalah working set milik (user, tenant); tidak disimpan setelah checkout.
type Cart struct {
	ID       int64      `json:"id"`
	UserID   int64      `json:"userId"`
	TenantID string     `json:"tenantId"`
	Items    []CartItem `json:"items"`
}

// CartItem carries the product price and stock as read together with the cart.
type CartItem struct {
	ProductID  int64  `json:"productId"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"priceCents"`
	Stock      int    `json:"stock"`
	TenantID   string `json:"tenantId"`
}

type Order struct {
	ID         int64       `json:"id"`
	UserID     int64       `json:"userId"`
	TotalCents int64       `json:"totalCents"`
	Status     Status      `json:"status"`
	SagaID     string      `json:"sagaId"`
	TenantID   string      `json:"tenantId"`
	Items      []OrderItem `json:"items,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// OrderItem menyimpan salinan harga, bukan referensi ke products.
type OrderItem struct {
	OrderID    int64 `json:"orderId"`
	ProductID  int64 `json:"productId"`
	Quantity   int   `json:"quantity"`
	PriceCents int64 `json:"priceCents"`
}

type ReserveItem struct {
	ProductID int64
	Quantity  int
	TenantID  string
}

// ReservedItem is what the reserve_stock log entry records; Restore needs nothing else.
type ReservedItem struct {
	ProductID      int64 `json:"productId"`
	Quantity       int   `json:"quantity"`
	ResultingStock int   `json:"resultingStock"`
}

type ReservedItems []ReservedItem

// NewOrder builds a pending order priced from the snapshot carried by the cart items.
func NewOrder(userID int64, tenantID, sagaID string, items []CartItem) *Order {
	o := &Order{
		UserID:   userID,
		TenantID: tenantID,
		SagaID:   sagaID,
		Status:   StatusPending,
		Items:    make([]OrderItem, 0, len(items)),
	}
	for _, it := range items {
		o.TotalCents += it.PriceCents * int64(it.Quantity)
		o.Items = append(o.Items, OrderItem{
			ProductID:  it.ProductID,
			Quantity:   it.Quantity,
			PriceCents: it.PriceCents,
		})
	}
	return o
}
