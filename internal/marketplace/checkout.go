package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/redisx"
	"github.com/ariefcatur/go-marketplace-checkout/internal/saga"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache is the product-list cache. Invalidate is the only call checkout makes.
type Cache interface {
	GetJSON(ctx context.Context, key string, out any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

type CheckoutResult struct {
	OrderID    int64  `json:"orderId"`
	SagaID     string `json:"sagaId"`
	TotalCents int64  `json:"totalCents"`
}

type CheckoutService struct {
	store    Store
	ledger   Ledger
	runner   *saga.Runner
	cache    Cache
	producer string
	topic    string
	timeout  time.Duration
	newID    func() string
	now      func() time.Time

	outcomes metric.Int64Counter
}

type CheckoutOption func(*CheckoutService)

// WithCheckoutTimeout bounds the whole unit of work. Default 15s.
func WithCheckoutTimeout(d time.Duration) CheckoutOption {
	return func(s *CheckoutService) { s.timeout = d }
}

func WithProducerName(name string) CheckoutOption {
	return func(s *CheckoutService) { s.producer = name }
}

// WithEventsTopic sets the topic order_completed is written to. Default TopicOrderEvents.
func WithEventsTopic(topic string) CheckoutOption {
	return func(s *CheckoutService) {
		if topic != "" {
			s.topic = topic
		}
	}
}

func WithSagaIDs(fn func() string) CheckoutOption {
	return func(s *CheckoutService) { s.newID = fn }
}

func WithCheckoutClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

func NewCheckoutService(store Store, runner *saga.Runner, cache Cache, opts ...CheckoutOption) *CheckoutService {
	s := &CheckoutService{
		store:    store,
		runner:   runner,
		cache:    cache,
		producer: "marketplace-api",
		topic:    TopicOrderEvents,
		timeout:  15 * time.Second,
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.runner == nil {
		s.runner = saga.NewRunner(nil)
	}
	c, err := otel.Meter("marketplace").Int64Counter("checkout.outcomes",
		metric.WithDescription("checkout attempts by outcome"))
	if err != nil {
		log.Printf("checkout metrics disabled: %v", err)
	}
	s.outcomes = c
	return s
}

// Checkout turns the caller's cart into a confirmed order.
//
// Semua langkah jalan di satu transaksi, tiap langkah di savepoint sendiri.
// Kegagalan yang sudah dikompensasi tetap di-commit supaya stok yang
// dikembalikan, order cancelled dan saga log tersimpan. Error lain rollback total.
func (s *CheckoutService) Checkout(ctx context.Context, userID int64, tenantID string) (CheckoutResult, error) {
	// saga tidak boleh terputus di tengah karena client disconnect
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	sagaID := s.newID()
	var (
		res    CheckoutResult
		failed error
	)
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		cart, err := tx.LoadCart(ctx, userID, tenantID)
		if errors.Is(err, ErrNotFound) || (err == nil && len(cart.Items) == 0) {
			return ErrEmptyCart
		}
		if err != nil {
			return fmt.Errorf("%w: load cart: %v", ErrInternal, err)
		}

		order := NewOrder(userID, tenantID, sagaID, cart.Items)
		runErr := s.runner.Run(ctx, saga.Saga{
			ID:      sagaID,
			Log:     tx,
			Isolate: tx.Savepoint,
			Steps:   s.steps(tx, cart, order),
		})
		if runErr == nil {
			res = CheckoutResult{OrderID: order.ID, SagaID: sagaID, TotalCents: order.TotalCents}
			return nil
		}
		cerr := classify(runErr)
		if errors.Is(cerr, ErrInternal) {
			return cerr
		}
		failed = cerr
		return nil
	})
	if err == nil {
		err = failed
	}
	if err != nil {
		log.Printf("checkout saga=%s user=%d tenant=%s failed: %v", sagaID, userID, tenantID, err)
		s.count(ctx, outcomeOf(err))
		return CheckoutResult{SagaID: sagaID}, err
	}

	if s.cache != nil {
		if cerr := s.cache.Invalidate(ctx, fmt.Sprintf(redisx.KeyProducts, tenantID)); cerr != nil {
			log.Printf("checkout saga=%s invalidate products cache: %v", sagaID, cerr)
		}
	}
	log.Printf("checkout saga=%s order=%d total=%d confirmed", sagaID, res.OrderID, res.TotalCents)
	s.count(ctx, "confirmed")
	return res, nil
}

func (s *CheckoutService) steps(tx Tx, cart *Cart, order *Order) []saga.Step {
	reserve := make([]ReserveItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		reserve = append(reserve, ReserveItem{ProductID: it.ProductID, Quantity: it.Quantity, TenantID: it.TenantID})
	}

	return []saga.Step{
		{
			Name: StepReserveStock,
			Action: func(ctx context.Context) (any, error) {
				return s.ledger.Reserve(ctx, tx, reserve)
			},
			Compensation: &saga.Compensation{
				Name: StepCompensateStock,
				Do: func(ctx context.Context) (any, error) {
					return s.ledger.Restore(ctx, tx, order.SagaID)
				},
			},
		},
		{
			Name: StepCreateOrder,
			Action: func(ctx context.Context) (any, error) {
				if err := tx.InsertOrder(ctx, order); err != nil {
					return nil, fmt.Errorf("insert order: %w", err)
				}
				for i := range order.Items {
					order.Items[i].OrderID = order.ID
					if err := tx.InsertOrderItem(ctx, order.Items[i]); err != nil {
						return nil, fmt.Errorf("insert order item %d: %w", order.Items[i].ProductID, err)
					}
				}
				return map[string]any{"orderId": order.ID, "totalCents": order.TotalCents}, nil
			},
			Compensation: &saga.Compensation{
				Name: StepCancelOrder,
				Do: func(ctx context.Context) (any, error) {
					if err := tx.TransitionOrder(ctx, order.ID, order.Status, StatusCancelled); err != nil {
						return nil, err
					}
					if err := order.Cancel(); err != nil {
						return nil, err
					}
					return map[string]any{"orderId": order.ID, "status": order.Status}, nil
				},
			},
		},
		{
			Name: StepConfirmOrder,
			Action: func(ctx context.Context) (any, error) {
				if !CanTransition(order.Status, StatusConfirmed) {
					return nil, fmt.Errorf("order %d is %s: %w", order.ID, order.Status, ErrInvalidTransition)
				}
				if err := tx.TransitionOrder(ctx, order.ID, order.Status, StatusConfirmed); err != nil {
					return nil, err
				}
				if err := tx.ClearCart(ctx, cart.ID); err != nil {
					return nil, fmt.Errorf("clear cart: %w", err)
				}
				ev, err := s.completedEvent(order)
				if err != nil {
					return nil, err
				}
				if err := tx.EnqueueOutbox(ctx, ev); err != nil {
					return nil, fmt.Errorf("enqueue %s: %w", ev.EventType, err)
				}
				// status di memori diubah terakhir, setelah semua write sukses
				if err := order.Confirm(); err != nil {
					return nil, err
				}
				return map[string]any{"orderId": order.ID, "status": order.Status, "eventId": ev.ID}, nil
			},
		},
	}
}

func (s *CheckoutService) completedEvent(o *Order) (OutboxEvent, error) {
	payload, err := json.Marshal(OrderCompletedPayload{
		Type:     EventOrderCompleted,
		OrderID:  o.ID,
		UserID:   o.UserID,
		TenantID: o.TenantID,
		Total:    o.TotalCents,
	})
	if err != nil {
		return OutboxEvent{}, err
	}
	now := s.now().UTC()
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderCompleted,
		EventVersion:  1,
		OccurredAt:    now,
		Producer:      s.producer,
		CorrelationID: o.SagaID,
		Payload:       payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return OutboxEvent{}, err
	}
	return OutboxEvent{
		ID:        env.EventID,
		Topic:     s.topic,
		Key:       PartitionKey(o.ID),
		EventType: EventOrderCompleted,
		Payload:   value,
		CreatedAt: now,
	}, nil
}

// classify maps a saga failure to the error class the caller sees. Anything it
// cannot attribute to a compensated step is ErrInternal.
func classify(err error) error {
	var se *saga.StepError
	if !errors.As(err, &se) || !se.Compensated() {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	switch se.Step {
	case StepReserveStock:
		if errors.Is(se.Err, ErrInsufficientStock) || errors.Is(se.Err, ErrInvalidInput) {
			return se.Err
		}
	case StepCreateOrder:
		return fmt.Errorf("%w: %v", ErrOrderCreate, se.Err)
	case StepConfirmOrder:
		return fmt.Errorf("%w: %v", ErrOrderConfirm, se.Err)
	}
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

func outcomeOf(err error) string {
	switch {
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrOrderCreate):
		return "create_failed"
	case errors.Is(err, ErrOrderConfirm):
		return "confirm_failed"
	default:
		return "internal"
	}
}

func (s *CheckoutService) count(ctx context.Context, outcome string) {
	if s.outcomes == nil {
		return
	}
	s.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
