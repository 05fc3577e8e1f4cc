package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/event"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
	wrote  chan struct{}
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{wrote: make(chan struct{}, 16)}
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	f.wrote <- struct{}{}
	return f.err
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaPublish(t *testing.T) {
	w := newFakeWriter()
	k := newKafka(w, KafkaConfig{Producer: "rental-api", Buffer: 4}, zap.NewNop())
	at := time.Date(2025, time.January, 9, 10, 0, 0, 0, time.UTC)
	k.now = func() time.Time { return at }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Run(ctx, time.Second) }()

	k.Publish(context.Background(), event.Event{
		Type:    event.OrderConfirmed,
		Key:     "ord-1",
		Payload: map[string]string{"order_number": "S20250100001"},
	})

	select {
	case <-w.wrote:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not written")
	}
	cancel()
	require.NoError(t, <-done)

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.msgs, 1)
	assert.True(t, w.closed)

	msg := w.msgs[0]
	assert.Equal(t, "ord-1", string(msg.Key))
	assert.Equal(t, at, msg.Time)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, event.OrderConfirmed, env.EventType)
	assert.Equal(t, EnvelopeVersion, env.EventVersion)
	assert.Equal(t, "rental-api", env.Producer)
	assert.Equal(t, "ord-1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)
	assert.JSONEq(t, `{"order_number":"S20250100001"}`, string(env.Payload))
}

func TestKafkaFlushesOnShutdown(t *testing.T) {
	w := newFakeWriter()
	w.err = errors.New("broker unavailable")
	k := newKafka(w, KafkaConfig{Buffer: 2}, zap.NewNop())

	k.Publish(context.Background(), event.Event{Type: event.OrderReturned, Key: "a"})
	k.Publish(context.Background(), event.Event{Type: event.OrderReturned, Key: "b"})
	k.Publish(context.Background(), event.Event{Type: event.OrderReturned, Key: "c"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, k.Run(ctx, time.Second))

	assert.Len(t, w.msgs, 2, "the event over the buffer is dropped, write errors are logged")
	assert.True(t, w.closed)
}

func TestKafkaPayloadError(t *testing.T) {
	w := newFakeWriter()
	k := newKafka(w, KafkaConfig{}, zap.NewNop())
	k.Publish(context.Background(), event.Event{Type: event.OrderCancelled, Payload: make(chan int)})
	assert.Empty(t, k.inbox)
}

func TestNewKafka_Validation(t *testing.T) {
	_, err := NewKafka(KafkaConfig{Topic: "rental.events"}, zap.NewNop())
	require.Error(t, err)
	_, err = NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}}, zap.NewNop())
	require.Error(t, err)

	k, err := NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "rental.events"}, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 1024, cap(k.inbox))
}
