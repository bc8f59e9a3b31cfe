package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-checkout/internal/marketplace"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memDedup struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (d *memDedup) Claim(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDedup) Release(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	return nil
}

type failingStore struct{ MemStore }

func (f *failingStore) Insert(context.Context, *Notification) error { return errors.New("db down") }

func orderCompleted(t *testing.T, eventID string, orderID, total int64) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(marketplace.OrderCompletedPayload{
		Type: marketplace.EventOrderCompleted, OrderID: orderID, UserID: 7, TenantID: "t1", Total: total,
	})
	require.NoError(t, err)
	v, err := json.Marshal(marketplace.Envelope{
		EventID: eventID, EventType: marketplace.EventOrderCompleted, EventVersion: 1,
		OccurredAt: time.Now(), Producer: "test", Payload: payload,
	})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(marketplace.PartitionKey(orderID)), Value: v}
}

func TestHandleOrderEvent_CreatesNotificationOnce(t *testing.T) {
	store := &MemStore{}
	svc := &Service{Store: store, Dedup: &memDedup{seen: map[string]bool{}}}
	msg := orderCompleted(t, "ev-1", 42, 3050)

	require.NoError(t, svc.HandleOrderEvent(context.Background(), msg))
	require.NoError(t, svc.HandleOrderEvent(context.Background(), msg))

	list, err := svc.List(context.Background(), 7, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Your order #42 has been confirmed. Total: $30.50", list[0].Message)
}

func TestHandleOrderEvent_ReleasesClaimWhenInsertFails(t *testing.T) {
	dedup := &memDedup{seen: map[string]bool{}}
	svc := &Service{Store: &failingStore{}, Dedup: dedup}

	err := svc.HandleOrderEvent(context.Background(), orderCompleted(t, "ev-2", 1, 100))
	require.Error(t, err)
	assert.False(t, dedup.seen["ev-2"], "retry must be able to claim again")
}

func TestHandleOrderEvent_IgnoresOtherAndBrokenMessages(t *testing.T) {
	store := &MemStore{}
	svc := &Service{Store: store}

	other, _ := json.Marshal(marketplace.Envelope{EventID: "x", EventType: "order_shipped", Payload: json.RawMessage(`{}`)})
	require.NoError(t, svc.HandleOrderEvent(context.Background(), kafkago.Message{Value: other}))
	require.NoError(t, svc.HandleOrderEvent(context.Background(), kafkago.Message{Value: []byte("not json")}))

	list, err := store.List(context.Background(), 7, "t1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreate_Validates(t *testing.T) {
	svc := &Service{Store: &MemStore{}}
	_, err := svc.Create(context.Background(), 0, "t1", "hi")
	assert.ErrorIs(t, err, ErrInvalid)
	_, err = svc.Create(context.Background(), 7, "t1", "   ")
	assert.ErrorIs(t, err, ErrInvalid)

	n, err := svc.Create(context.Background(), 7, "t1", "hi")
	require.NoError(t, err)
	assert.NotZero(t, n.ID)
}

func TestOrderConfirmedMessage(t *testing.T) {
	assert.Equal(t, "Your order #5 has been confirmed. Total: $0.07", OrderConfirmedMessage(5, 7))
	assert.Equal(t, "Your order #5 has been confirmed. Total: $120.00", OrderConfirmedMessage(5, 12000))
}
