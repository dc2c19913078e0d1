package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/infrastructure"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/outbox"
)

// DelayEscalationRepository is an in-memory domain.DelayEscalationRepository
type DelayEscalationRepository struct {
	mu           sync.Mutex
	escalations  map[string]*domain.DelayEscalation
	outbox       outbox.Repository
	eventFactory *cloudevents.EventFactory
}

// NewDelayEscalationRepository creates an empty repository
func NewDelayEscalationRepository(outboxRepo outbox.Repository, eventFactory *cloudevents.EventFactory) *DelayEscalationRepository {
	return &DelayEscalationRepository{
		escalations:  make(map[string]*domain.DelayEscalation),
		outbox:       outboxRepo,
		eventFactory: eventFactory,
	}
}

// Record stores e unless the item was already escalated in that stage
func (r *DelayEscalationRepository) Record(ctx context.Context, e *domain.DelayEscalation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.escalations[e.ID]; exists {
		return false, nil
	}
	events, err := infrastructure.ToOutboxEvents(ctx, r.eventFactory, infrastructure.AggregateDelayEscalation, infrastructure.ProductionEventsTopic, e.GetDomainEvents())
	if err != nil {
		return false, err
	}
	if err := r.outbox.SaveAll(ctx, events); err != nil {
		return false, err
	}

	c := *e
	c.DomainEvents = nil
	r.escalations[e.ID] = &c
	e.ClearDomainEvents()
	return true, nil
}

// FindByItem returns an item's escalations in the order they happened
func (r *DelayEscalationRepository) FindByItem(_ context.Context, itemID string) ([]*domain.DelayEscalation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*domain.DelayEscalation, 0)
	for _, e := range r.escalations {
		if e.ItemID == itemID {
			c := *e
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EscalatedAt.Before(out[j].EscalatedAt) })
	return out, nil
}
