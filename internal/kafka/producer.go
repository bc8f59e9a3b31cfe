package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer menulis satu pesan per panggilan dan menunggu ack semua replica.
// Outbox relay butuh hasil tulis yang pasti sebelum menandai baris published.
type Producer struct {
	w *kafka.Writer
}

// NewProducer leaves the writer topic empty; each message carries its own.
func NewProducer(brokers []string) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
	}
}

func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	return p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error { return p.w.Close() }
