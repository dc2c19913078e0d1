package infrastructure

import (
	"context"
	"fmt"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/outbox"
)

// Kafka topics written through the outbox
const (
	ProductionEventsTopic = "prodtrack.production.events"
	WarehouseEventsTopic  = "prodtrack.warehouse.events"
)

// Aggregate types recorded on outbox events
const (
	AggregateWorkItem         = "WorkItem"
	AggregateWarehouseRequest = "WarehouseRequest"
	AggregateDelayEscalation  = "DelayEscalation"
)

// ToOutboxEvents wraps domain events in CloudEvents and outbox records
func ToOutboxEvents(
	ctx context.Context,
	factory *cloudevents.EventFactory,
	aggregateType string,
	topic string,
	events []domain.DomainEvent,
) ([]*outbox.OutboxEvent, error) {
	out := make([]*outbox.OutboxEvent, 0, len(events))
	for _, e := range events {
		ce := factory.CreateEvent(ctx, e.EventType(), subject(aggregateType, e.AggregateID()), e.OccurredAt(), e)
		if stage := eventStage(e); stage != "" {
			ce.WithStage(stage)
		}

		oe, err := outbox.NewOutboxEventFromCloudEvent(e.AggregateID(), aggregateType, topic, ce)
		if err != nil {
			return nil, fmt.Errorf("failed to create outbox event: %w", err)
		}
		out = append(out, oe)
	}
	return out, nil
}

func subject(aggregateType, id string) string {
	switch aggregateType {
	case AggregateWarehouseRequest:
		return "warehouse-request/" + id
	default:
		return "item/" + id
	}
}

func eventStage(e domain.DomainEvent) string {
	switch ev := e.(type) {
	case *domain.ItemCreatedEvent:
		return ev.Stage
	case *domain.ItemStageChangedEvent:
		return ev.To.Stage
	case *domain.ItemDelayEscalatedEvent:
		return ev.Stage
	case *domain.ReworkRequestedEvent:
		return ev.Stage
	case *domain.InspectionStartedEvent:
		return ev.Stage
	case *domain.InspectionResolvedEvent:
		return ev.Stage
	case *domain.InspectionOverrideReleasedEvent:
		return ev.Stage
	}
	return ""
}
