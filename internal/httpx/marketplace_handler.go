package httpx

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	"github.com/go-chi/chi/v5"
)

type MarketplaceHandler struct {
	Checkout *marketplace.CheckoutService
	Catalog  *marketplace.Catalog
}

type CheckoutResp struct {
	Message    string `json:"message"`
	OrderID    int64  `json:"orderId"`
	SagaID     string `json:"sagaId"`
	TotalCents int64  `json:"totalCents"`
}

type AddToCartReq struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (h *MarketplaceHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity)
		r.Post("/checkout", h.checkout)
		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Post("/cart/items", h.addToCart)
		r.Get("/cart", h.getCart)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
	})
}

func (h *MarketplaceHandler) checkout(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	res, err := h.Checkout.Checkout(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckoutResp{
		Message:    "Order placed successfully",
		OrderID:    res.OrderID,
		SagaID:     res.SagaID,
		TotalCents: res.TotalCents,
	})
}

func (h *MarketplaceHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	ps, err := h.Catalog.ListProducts(r.Context(), id.TenantID)
	if err != nil {
		log.Printf("list products tenant=%s: %v", id.TenantID, err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *MarketplaceHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req marketplace.NewProduct
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	p, err := h.Catalog.CreateProduct(r.Context(), IdentityFrom(r.Context()).TenantID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *MarketplaceHandler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	id := IdentityFrom(r.Context())
	cart, err := h.Catalog.AddToCart(r.Context(), id.UserID, id.TenantID, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *MarketplaceHandler) getCart(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	cart, err := h.Catalog.GetCart(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

func (h *MarketplaceHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	orders, err := h.Catalog.ListOrders(r.Context(), id.UserID, id.TenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *MarketplaceHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "id")
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}
	id := IdentityFrom(r.Context())
	o, err := h.Catalog.GetOrder(r.Context(), orderID, id.UserID, id.TenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}
