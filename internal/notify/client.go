package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/breaker"
	"github.com/go-resty/resty/v2"
)

// Client calls the notification service: POST /notify {userId, message}.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

type notifyRequest struct {
	UserID  int64  `json:"userId"`
	Message string `json:"message"`
}

// Notify returns an error for transport failures and any non-2xx status.
func (c *Client) Notify(ctx context.Context, userID int64, tenantID, message string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-Tenant-Id", tenantID).
		SetBody(notifyRequest{UserID: userID, Message: message}).
		Post("/notify")
	if err != nil {
		return fmt.Errorf("notify user %d: %w", userID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify user %d: status %d", userID, resp.StatusCode())
	}
	return nil
}

type Sender interface {
	Notify(ctx context.Context, userID int64, tenantID, message string) error
}

// Guarded runs a Sender through a breaker. Notifikasi tidak kritis: semua
// error (termasuk breaker open) cukup di-log, caller tidak pernah gagal karenanya.
type Guarded struct {
	next Sender
	b    *breaker.Breaker
}

func NewGuarded(next Sender, b *breaker.Breaker) *Guarded {
	return &Guarded{next: next, b: b}
}

func (g *Guarded) Notify(ctx context.Context, userID int64, tenantID, message string) {
	err := g.b.Do(ctx, func(ctx context.Context) error {
		return g.next.Notify(ctx, userID, tenantID, message)
	})
	switch {
	case err == nil:
	case errors.Is(err, breaker.ErrOpen):
		log.Printf("notification skipped user=%d tenant=%s: breaker %s is %s", userID, tenantID, g.b.Name(), g.b.Snapshot().State)
	default:
		log.Printf("notification failed user=%d tenant=%s (breaker %s): %v", userID, tenantID, g.b.Name(), err)
	}
}

func (g *Guarded) Breaker() *breaker.Breaker { return g.b }
