package kafka

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler harus return nil hanya jika proses sukses & boleh commit offset.
type Handler func(ctx context.Context, m kafka.Message) error

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       MessageReader
	workers int
	backoff time.Duration // jeda retry pertama, dobel tiap gagal sampai maxBackoff
}

const maxBackoff = 5 * time.Second

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers)
}

func newConsumer(r MessageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, backoff: 200 * time.Millisecond}
}

// Start blocks until ctx is done or the reader fails.
//
// Each partition is pinned to one worker so its offsets are handled and
// committed in order. A failing message is retried in place with backoff
// until it succeeds or ctx is done; later messages of that partition wait
// behind it, so a commit never skips an unhandled offset.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup

	// workers
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 128)
		wg.Add(1)
		go func(id int, in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				if !c.handle(ctx, id, h, m) {
					// ctx selesai: sisa pesan partisi ini dibaca ulang setelah restart
					for range in {
					}
					return
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					log.Printf("worker=%d commit partition=%d offset=%d: %v", id, m.Partition, m.Offset, err)
				}
			}
		}(i, jobs[i])
	}

	// FetchMessage, bukan ReadMessage: ReadMessage auto-commit kalau pakai GroupID
	var err error
	for {
		var m kafka.Message
		m, err = c.r.FetchMessage(ctx)
		if err != nil {
			break
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
			continue
		case <-ctx.Done():
		}
		break
	}
	for _, ch := range jobs {
		close(ch)
	}
	wg.Wait()

	// kecilkan noise saat shutdown
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// handle runs h until it succeeds. It returns false when ctx ends first.
func (c *Consumer) handle(ctx context.Context, id int, h Handler, m kafka.Message) bool {
	wait := c.backoff
	for attempt := 1; ; attempt++ {
		err := h(ctx, m)
		if err == nil {
			return true
		}
		log.Printf("worker=%d topic=%s partition=%d offset=%d attempt=%d handler error: %v", id, m.Topic, m.Partition, m.Offset, attempt, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}
		if wait *= 2; wait > maxBackoff {
			wait = maxBackoff
		}
	}
}
