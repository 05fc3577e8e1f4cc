package events

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/rental-ledger/internal/domain/event"
)

// Log writes events to the request logger. Used when no brokers are
// configured.
type Log struct{}

var _ event.Publisher = Log{}

func (Log) Publish(ctx context.Context, e event.Event) {
	zctx.From(ctx).Info("Event",
		zap.String("type", string(e.Type)),
		zap.String("key", e.Key),
		zap.Any("payload", e.Payload),
	)
}
