package cloudevents

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/tracing"
)

// EventFactory creates CloudEvents for a single source
type EventFactory struct {
	source string
}

// NewEventFactory creates a new EventFactory for a specific source
func NewEventFactory(source string) *EventFactory {
	return &EventFactory{source: source}
}

// Source returns the factory's event source
func (f *EventFactory) Source() string {
	return f.source
}

// CreateEvent builds an envelope stamped with occurredAt. The correlation id
// and trace context are taken from ctx when present.
func (f *EventFactory) CreateEvent(ctx context.Context, eventType, subject string, occurredAt time.Time, data interface{}) *ProdTrackCloudEvent {
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	event := &ProdTrackCloudEvent{
		SpecVersion:     "1.0",
		Type:            eventType,
		Source:          f.source,
		Subject:         subject,
		ID:              uuid.New().String(),
		Time:            occurredAt.UTC(),
		DataContentType: "application/json",
		Data:            data,
	}

	if v, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
		event.CorrelationID = v
	}

	carrier := tracing.MapCarrier{}
	tracing.InjectTraceContext(ctx, carrier)
	event.TraceParent = carrier.Get("traceparent")
	event.TraceState = carrier.Get("tracestate")

	return event
}

// WithStage sets the stage extension
func (e *ProdTrackCloudEvent) WithStage(stage string) *ProdTrackCloudEvent {
	e.Stage = stage
	return e
}
