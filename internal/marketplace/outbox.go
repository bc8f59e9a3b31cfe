package marketplace

import (
	"context"
	"errors"
	"log"
	"time"
)

// EventPublisher delivers one message synchronously; nil means the broker acked it.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// OutboxRelay moves committed outbox rows to the broker. Delivery is
// at-least-once: a crash between publish and mark republishes the row, so
// consumers dedup by event id.
type OutboxRelay struct {
	store    Store
	pub      EventPublisher
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewOutboxRelay(store Store, pub EventPublisher, interval time.Duration, batch int) *OutboxRelay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batch <= 0 {
		batch = 100
	}
	return &OutboxRelay{store: store, pub: pub, interval: interval, batch: batch, now: time.Now}
}

// Run polls until ctx is done.
func (r *OutboxRelay) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					if !errors.Is(err, context.Canceled) {
						log.Printf("outbox flush: %v", err)
					}
					break
				}
				// batch penuh: kemungkinan masih ada sisa, lanjut tanpa nunggu tick
				if n < r.batch {
					break
				}
			}
		}
	}
}

// Flush publishes one batch and returns how many rows were marked published.
// Rows published before a broker error are still marked.
func (r *OutboxRelay) Flush(ctx context.Context) (int, error) {
	var (
		marked int
		pubErr error
	)
	err := r.store.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		events, err := tx.PendingOutbox(ctx, r.batch)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(events))
		for _, ev := range events {
			if err := r.pub.Publish(ctx, ev.Topic, []byte(ev.Key), ev.Payload); err != nil {
				pubErr = err
				break
			}
			ids = append(ids, ev.ID)
		}
		if err := tx.MarkOutboxPublished(ctx, ids, r.now().UTC()); err != nil {
			return err
		}
		marked = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return marked, pubErr
}
