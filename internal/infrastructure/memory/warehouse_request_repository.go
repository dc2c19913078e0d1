package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/infrastructure"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/outbox"
)

// WarehouseRequestRepository is an in-memory domain.WarehouseRequestRepository
type WarehouseRequestRepository struct {
	mu           sync.RWMutex
	requests     map[string]*domain.WarehouseRequest
	outbox       outbox.Repository
	eventFactory *cloudevents.EventFactory
}

// NewWarehouseRequestRepository creates an empty repository
func NewWarehouseRequestRepository(outboxRepo outbox.Repository, eventFactory *cloudevents.EventFactory) *WarehouseRequestRepository {
	return &WarehouseRequestRepository{
		requests:     make(map[string]*domain.WarehouseRequest),
		outbox:       outboxRepo,
		eventFactory: eventFactory,
	}
}

// Create stores a new request
func (r *WarehouseRequestRepository) Create(ctx context.Context, req *domain.WarehouseRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[req.RequestID]; exists {
		return fmt.Errorf("%w: request %s already exists", domain.ErrConflict, req.RequestID)
	}
	if err := r.saveEvents(ctx, req); err != nil {
		return err
	}
	req.Version = 1
	r.requests[req.RequestID] = copyRequest(req)
	req.ClearDomainEvents()
	return nil
}

// Update replaces the request if its version is current
func (r *WarehouseRequestRepository) Update(ctx context.Context, req *domain.WarehouseRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.requests[req.RequestID]
	if !ok {
		return fmt.Errorf("%w: request %s", domain.ErrNotFound, req.RequestID)
	}
	if stored.Version != req.Version {
		return fmt.Errorf("%w: request %s is at version %d", domain.ErrConflict, req.RequestID, stored.Version)
	}
	if err := r.saveEvents(ctx, req); err != nil {
		return err
	}
	req.Version++
	r.requests[req.RequestID] = copyRequest(req)
	req.ClearDomainEvents()
	return nil
}

// FindByID returns a copy of the request
func (r *WarehouseRequestRepository) FindByID(_ context.Context, requestID string) (*domain.WarehouseRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	req, ok := r.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: warehouse request %s", domain.ErrNotFound, requestID)
	}
	return copyRequest(req), nil
}

// List returns requests matching filter, oldest first
func (r *WarehouseRequestRepository) List(_ context.Context, filter domain.WarehouseRequestFilter) ([]*domain.WarehouseRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.WarehouseRequest, 0)
	for _, req := range r.requests {
		if filter.Type != "" && req.Type != filter.Type {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		out = append(out, copyRequest(req))
	}
	domain.SortOldestFirst(out)
	return out, nil
}

func (r *WarehouseRequestRepository) saveEvents(ctx context.Context, req *domain.WarehouseRequest) error {
	events, err := infrastructure.ToOutboxEvents(ctx, r.eventFactory, infrastructure.AggregateWarehouseRequest, infrastructure.WarehouseEventsTopic, req.GetDomainEvents())
	if err != nil {
		return err
	}
	return r.outbox.SaveAll(ctx, events)
}

func copyRequest(req *domain.WarehouseRequest) *domain.WarehouseRequest {
	c := *req
	if req.CompletedAt != nil {
		t := *req.CompletedAt
		c.CompletedAt = &t
	}
	c.DomainEvents = nil
	return &c
}
