package marketplace

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderCreate       = errors.New("failed to create order")
	ErrOrderConfirm      = errors.New("failed to confirm order")
	ErrInternal          = errors.New("internal error")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidInput      = errors.New("invalid input")
)
