package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/production-tracking/pkg/outbox"
)

// OutboxRepository keeps outbox events in memory. It backs the memory
// storage mode so the publisher runs the same way against it.
type OutboxRepository struct {
	mu     sync.Mutex
	events map[string]*outbox.OutboxEvent
	order  []string
}

// NewOutboxRepository creates an empty outbox
func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{events: make(map[string]*outbox.OutboxEvent)}
}

// SaveAll stores events
func (r *OutboxRepository) SaveAll(_ context.Context, events []*outbox.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		if _, exists := r.events[e.ID]; !exists {
			r.order = append(r.order, e.ID)
		}
		cp := *e
		r.events[e.ID] = &cp
	}
	return nil
}

// FindUnpublished returns unpublished events with retries left in insertion order
func (r *OutboxRepository) FindUnpublished(_ context.Context, limit int) ([]*outbox.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*outbox.OutboxEvent
	for _, e := range r.inOrder() {
		if e.ShouldRetry() {
			cp := *e
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkPublished marks an event as published
func (r *OutboxRepository) MarkPublished(_ context.Context, eventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event not found: %s", eventID)
	}
	now := time.Now().UTC()
	e.PublishedAt = &now
	return nil
}

// IncrementRetry records a failed publish attempt
func (r *OutboxRepository) IncrementRetry(_ context.Context, eventID string, errorMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[eventID]
	if !ok {
		return fmt.Errorf("event not found: %s", eventID)
	}
	e.RetryCount++
	e.LastError = errorMsg
	return nil
}

// DeletePublished drops events published more than olderThan ago
func (r *OutboxRepository) DeletePublished(_ context.Context, olderThan time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	threshold := time.Now().UTC().Add(-olderThan)
	kept := r.order[:0]
	for _, id := range r.order {
		e := r.events[id]
		if e.PublishedAt != nil && e.PublishedAt.Before(threshold) {
			delete(r.events, id)
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return nil
}

// FindByAggregateID returns the events of one aggregate in insertion order
func (r *OutboxRepository) FindByAggregateID(_ context.Context, aggregateID string) ([]*outbox.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*outbox.OutboxEvent
	for _, e := range r.inOrder() {
		if e.AggregateID == aggregateID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// inOrder returns stored events in insertion order; callers hold mu
func (r *OutboxRepository) inOrder() []*outbox.OutboxEvent {
	out := make([]*outbox.OutboxEvent, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.events[id])
	}
	return out
}
