package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/event"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Producer string
	// Buffer is the number of events queued before Publish starts dropping.
	Buffer int
}

// Kafka queues events in memory and writes them from Run. Publish never
// blocks the caller.
type Kafka struct {
	w        messageWriter
	inbox    chan kafka.Message
	producer string
	lg       *zap.Logger
	now      func() time.Time
}

// NewKafka creates a publisher writing to cfg.Topic, keyed by event key.
func NewKafka(cfg KafkaConfig, lg *zap.Logger) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return newKafka(w, cfg, lg), nil
}

func newKafka(w messageWriter, cfg KafkaConfig, lg *zap.Logger) *Kafka {
	buf := cfg.Buffer
	if buf <= 0 {
		buf = 1024
	}
	return &Kafka{
		w:        w,
		inbox:    make(chan kafka.Message, buf),
		producer: cfg.Producer,
		lg:       lg,
		now:      time.Now,
	}
}

var _ event.Publisher = (*Kafka)(nil)

func (k *Kafka) Publish(ctx context.Context, e event.Event) {
	env, err := NewEnvelope(ctx, k.producer, e, k.now())
	if err != nil {
		zctx.From(ctx).Warn("Drop event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}
	value, err := json.Marshal(env)
	if err != nil {
		zctx.From(ctx).Warn("Drop event", zap.String("type", string(e.Type)), zap.Error(err))
		return
	}

	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(env.EventID)},
		},
	}
	select {
	case k.inbox <- msg:
	default:
		zctx.From(ctx).Warn("Event buffer full, dropping event",
			zap.String("type", string(e.Type)),
			zap.String("key", e.Key),
		)
	}
}

// Run writes queued events until ctx is done, then flushes what is left
// within flushTimeout and closes the writer.
func (k *Kafka) Run(ctx context.Context, flushTimeout time.Duration) error {
	for {
		select {
		case msg := <-k.inbox:
			k.write(ctx, msg)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), flushTimeout)
			defer cancel()
			for {
				select {
				case msg := <-k.inbox:
					k.write(flushCtx, msg)
				default:
					return errors.Wrap(k.w.Close(), "close kafka writer")
				}
			}
		}
	}
}

func (k *Kafka) write(ctx context.Context, msg kafka.Message) {
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		k.lg.Warn("Publish event failed",
			zap.ByteString("key", msg.Key),
			zap.Error(err),
		)
	}
}
