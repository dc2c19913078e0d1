package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/infrastructure"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/outbox"
)

// WorkItemRepository is an in-memory domain.WorkItemRepository
type WorkItemRepository struct {
	mu           sync.RWMutex
	items        map[string]*domain.WorkItem
	outbox       outbox.Repository
	eventFactory *cloudevents.EventFactory
}

// NewWorkItemRepository creates an empty repository writing events to outboxRepo
func NewWorkItemRepository(outboxRepo outbox.Repository, eventFactory *cloudevents.EventFactory) *WorkItemRepository {
	return &WorkItemRepository{
		items:        make(map[string]*domain.WorkItem),
		outbox:       outboxRepo,
		eventFactory: eventFactory,
	}
}

// Create stores a new item
func (r *WorkItemRepository) Create(ctx context.Context, item *domain.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[item.ItemID]; exists {
		return fmt.Errorf("%w: item %s already exists", domain.ErrConflict, item.ItemID)
	}
	if err := r.saveEvents(ctx, item); err != nil {
		return err
	}
	item.Version = 1
	r.items[item.ItemID] = item.Clone()
	item.ClearDomainEvents()
	return nil
}

// Update replaces the item if its version is current
func (r *WorkItemRepository) Update(ctx context.Context, item *domain.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkVersion(item); err != nil {
		return err
	}
	if err := r.saveEvents(ctx, item); err != nil {
		return err
	}
	item.Version++
	r.items[item.ItemID] = item.Clone()
	item.ClearDomainEvents()
	return nil
}

// SaveRework writes the closed original and the spawned item together
func (r *WorkItemRepository) SaveRework(ctx context.Context, closed *domain.WorkItem, spawned *domain.WorkItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkVersion(closed); err != nil {
		return err
	}
	if _, exists := r.items[spawned.ItemID]; exists {
		return fmt.Errorf("%w: item %s already exists", domain.ErrConflict, spawned.ItemID)
	}
	if err := r.saveEvents(ctx, closed); err != nil {
		return err
	}
	if err := r.saveEvents(ctx, spawned); err != nil {
		return err
	}

	closed.Version++
	spawned.Version = 1
	r.items[closed.ItemID] = closed.Clone()
	r.items[spawned.ItemID] = spawned.Clone()
	closed.ClearDomainEvents()
	spawned.ClearDomainEvents()
	return nil
}

// FindByID returns a copy of the item
func (r *WorkItemRepository) FindByID(_ context.Context, itemID string) (*domain.WorkItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[itemID]
	if !ok {
		return nil, fmt.Errorf("%w: item %s", domain.ErrNotFound, itemID)
	}
	return item.Clone(), nil
}

// FindOpen returns queued and active items
func (r *WorkItemRepository) FindOpen(_ context.Context) ([]*domain.WorkItem, error) {
	return r.collect(func(item *domain.WorkItem) bool { return item.IsOpen() }), nil
}

// FindRecentlyFinished returns finished items, newest first
func (r *WorkItemRepository) FindRecentlyFinished(_ context.Context, limit int) ([]*domain.WorkItem, error) {
	items := r.collect(func(item *domain.WorkItem) bool {
		return item.Status == domain.ItemStatusFinished && item.FinishedAt != nil
	})
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].FinishedAt.Equal(*items[j].FinishedAt) {
			return items[i].FinishedAt.After(*items[j].FinishedAt)
		}
		return items[i].ItemID < items[j].ItemID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// FindUpdatedSince returns items touched at or after since
func (r *WorkItemRepository) FindUpdatedSince(_ context.Context, since time.Time) ([]*domain.WorkItem, error) {
	return r.collect(func(item *domain.WorkItem) bool { return !item.UpdatedAt.Before(since) }), nil
}

// Search runs the history query, newest first
func (r *WorkItemRepository) Search(_ context.Context, q domain.HistoryQuery) ([]*domain.WorkItem, int64, error) {
	ref := strings.ToLower(q.ReferenceNumber)
	code := strings.ToLower(q.ItemCode)
	stage := strings.ToLower(q.Stage)

	items := r.collect(func(item *domain.WorkItem) bool {
		if ref != "" && !strings.Contains(strings.ToLower(item.ReferenceNumber), ref) {
			return false
		}
		if code != "" && !strings.Contains(strings.ToLower(item.ItemCode), code) {
			return false
		}
		if stage != "" && item.Stage != stage {
			return false
		}
		if q.From != nil && item.CreatedAt.Before(*q.From) {
			return false
		}
		if q.To != nil && item.CreatedAt.After(*q.To) {
			return false
		}
		return true
	})
	sortNewest(items)

	total := int64(len(items))
	if q.Offset >= total {
		return []*domain.WorkItem{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < total {
		end = q.Offset + q.Limit
	}
	return items[q.Offset:end], total, nil
}

// SearchText matches code, reference and description, newest first
func (r *WorkItemRepository) SearchText(_ context.Context, text string, limit int) ([]*domain.WorkItem, error) {
	q := strings.ToLower(strings.TrimSpace(text))
	items := r.collect(func(item *domain.WorkItem) bool {
		return strings.Contains(strings.ToLower(item.ItemCode), q) ||
			strings.Contains(strings.ToLower(item.ReferenceNumber), q) ||
			strings.Contains(strings.ToLower(item.Description), q)
	})
	sortNewest(items)
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *WorkItemRepository) collect(match func(*domain.WorkItem) bool) []*domain.WorkItem {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.WorkItem, 0)
	for _, item := range r.items {
		if match(item) {
			out = append(out, item.Clone())
		}
	}
	return out
}

func (r *WorkItemRepository) checkVersion(item *domain.WorkItem) error {
	stored, ok := r.items[item.ItemID]
	if !ok {
		return fmt.Errorf("%w: item %s", domain.ErrNotFound, item.ItemID)
	}
	if stored.Version != item.Version {
		return fmt.Errorf("%w: item %s is at version %d", domain.ErrConflict, item.ItemID, stored.Version)
	}
	return nil
}

func (r *WorkItemRepository) saveEvents(ctx context.Context, item *domain.WorkItem) error {
	events, err := infrastructure.ToOutboxEvents(ctx, r.eventFactory, infrastructure.AggregateWorkItem, infrastructure.ProductionEventsTopic, item.GetDomainEvents())
	if err != nil {
		return err
	}
	return r.outbox.SaveAll(ctx, events)
}

func sortNewest(items []*domain.WorkItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ItemID > items[j].ItemID
	})
}
