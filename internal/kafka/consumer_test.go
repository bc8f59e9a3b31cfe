package kafka

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
	endErr    error
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.msgs) == 0 {
		return kafka.Message{}, f.endErr
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestConsumer_RetriesFailedMessageBeforeCommittingLater(t *testing.T) {
	readerDone := errors.New("reader closed")
	r := &fakeReader{
		msgs:   []kafka.Message{{Offset: 1}, {Offset: 2, Value: []byte("flaky")}, {Offset: 3}},
		endErr: readerDone,
	}
	c := newConsumer(r, 1)
	c.backoff = time.Millisecond

	var (
		mu       sync.Mutex
		attempts int
		handled  []int64
	)
	err := c.Start(context.Background(), func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if string(m.Value) == "flaky" {
			attempts++
			if attempts < 3 {
				return errors.New("store unavailable")
			}
		}
		handled = append(handled, m.Offset)
		return nil
	})
	require.ErrorIs(t, err, readerDone)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []int64{1, 2, 3}, handled)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
	assert.True(t, r.closed)
}

func TestConsumer_StopsWithoutCommittingPastFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := &fakeReader{
		msgs:   []kafka.Message{{Offset: 1}, {Offset: 2, Value: []byte("bad")}, {Offset: 3}},
		endErr: context.Canceled,
	}
	c := newConsumer(r, 1)
	c.backoff = time.Millisecond

	var attempts int32
	err := c.Start(ctx, func(_ context.Context, m kafka.Message) error {
		if string(m.Value) == "bad" {
			if atomic.AddInt32(&attempts, 1) == 3 {
				cancel()
			}
			return errors.New("cannot decode")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, r.committed)
}

func TestConsumer_PartitionsKeepOrderAcrossWorkers(t *testing.T) {
	var msgs []kafka.Message
	for off := int64(0); off < 20; off++ {
		msgs = append(msgs, kafka.Message{Partition: int(off % 3), Offset: off})
	}
	r := &fakeReader{msgs: msgs, endErr: errors.New("eof")}

	var (
		mu   sync.Mutex
		seen = map[int][]int64{}
	)
	_ = newConsumer(r, 2).Start(context.Background(), func(_ context.Context, m kafka.Message) error {
		mu.Lock()
		seen[m.Partition] = append(seen[m.Partition], m.Offset)
		mu.Unlock()
		return nil
	})
	for p, offs := range seen {
		assert.IsIncreasing(t, offs, "partition %d", p)
	}
	assert.Len(t, r.committed, 20)
}

func TestConsumer_CancelledContextIsCleanExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeReader{endErr: context.Canceled}
	require.NoError(t, newConsumer(r, 2).Start(ctx, func(context.Context, kafka.Message) error { return nil }))
}
