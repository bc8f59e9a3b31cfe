package marketplace

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	EventOrderCompleted = "order_completed"

	TopicOrderEvents = "order_events"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // EventOrderCompleted
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g. "marketplace-api"
	CorrelationID string          `json:"correlation_id,omitempty"` // saga id
	Payload       json.RawMessage `json:"payload"`
}

// OrderCompletedPayload keeps the field names consumers already read. Total is in cents.
type OrderCompletedPayload struct {
	Type     string `json:"type"`
	OrderID  int64  `json:"orderId"`
	UserID   int64  `json:"userId"`
	TenantID string `json:"tenantId"`
	Total    int64  `json:"total"`
}

// OutboxEvent is an event persisted in the same unit of work as the order.
type OutboxEvent struct {
	ID          string     `json:"id"`
	Topic       string     `json:"topic"`
	Key         string     `json:"key"`
	EventType   string     `json:"eventType"`
	Payload     []byte     `json:"payload"`
	CreatedAt   time.Time  `json:"createdAt"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
}

// PartitionKey = order id, supaya semua event satu order tetap berurutan.
func PartitionKey(orderID int64) string {
	return strconv.FormatInt(orderID, 10)
}
