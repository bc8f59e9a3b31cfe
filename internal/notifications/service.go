package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	kafkax "github.com/ariefcatur/go-marketplace-checkout/internal/kafka"
	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	kafkago "github.com/segmentio/kafka-go"
)

// Deduper claims an event id so it is processed once across workers and restarts.
type Deduper interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type Service struct {
	Store Store
	Dedup Deduper
}

func (s *Service) Create(ctx context.Context, userID int64, tenantID, message string) (*Notification, error) {
	message = strings.TrimSpace(message)
	if userID == 0 || message == "" {
		return nil, ErrInvalid
	}
	n := &Notification{UserID: userID, Message: message, TenantID: tenantID}
	if err := s.Store.Insert(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *Service) List(ctx context.Context, userID int64, tenantID string) ([]Notification, error) {
	return s.Store.List(ctx, userID, tenantID)
}

// HandleOrderEvent: dipasang sebagai handler consumer order_events.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	var env marketplace.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// pesan rusak tidak akan pernah bisa diproses; jangan blok partisi
		log.Printf("order_events offset=%d: drop undecodable message: %v", m.Offset, err)
		return nil
	}
	if env.EventType != marketplace.EventOrderCompleted {
		return nil
	} // ignore

	// 2) decode payload
	p, err := kafkax.UnwrapPayload[marketplace.OrderCompletedPayload](env.Payload)
	if err != nil {
		log.Printf("order_events event=%s: %v", env.EventID, err)
		return nil
	}

	// 3) dedup via Redis (pakai event_id); dilepas lagi kalau insert gagal
	if s.Dedup != nil {
		first, err := s.Dedup.Claim(ctx, env.EventID)
		if err != nil {
			return fmt.Errorf("dedup claim %s: %w", env.EventID, err)
		}
		if !first {
			return nil
		}
	}

	n := &Notification{UserID: p.UserID, Message: OrderConfirmedMessage(p.OrderID, p.Total), TenantID: p.TenantID}
	if err := s.Store.Insert(ctx, n); err != nil {
		if s.Dedup != nil {
			if rerr := s.Dedup.Release(ctx, env.EventID); rerr != nil {
				log.Printf("dedup release %s: %v", env.EventID, rerr)
			}
		}
		return fmt.Errorf("insert notification order=%d: %w", p.OrderID, err)
	}
	log.Printf("notification created for order %d (saga=%s)", p.OrderID, env.CorrelationID)
	return nil
}

// OrderConfirmedMessage formats totalCents as dollars with two decimals.
func OrderConfirmedMessage(orderID, totalCents int64) string {
	return fmt.Sprintf("Your order #%d has been confirmed. Total: $%d.%02d", orderID, totalCents/100, totalCents%100)
}
