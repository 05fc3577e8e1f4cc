// Package events delivers domain lifecycle events to Kafka or to the log.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/rental-ledger/internal/domain/event"
)

// EnvelopeVersion is bumped on incompatible envelope changes.
const EnvelopeVersion = 1

// Envelope is the wire format of every published event.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     event.Type      `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// NewEnvelope wraps e, taking the trace id from ctx.
func NewEnvelope(ctx context.Context, producer string, e event.Event, at time.Time) (Envelope, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return Envelope{}, errors.Wrapf(err, "marshal %s payload", e.Type)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     e.Type,
		EventVersion:  EnvelopeVersion,
		OccurredAt:    at.UTC(),
		Producer:      producer,
		CorrelationID: e.Key,
		Payload:       payload,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return env, nil
}
