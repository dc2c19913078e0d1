package domain

import (
	"context"
	"time"
)

// HistoryQuery filters the item history search
type HistoryQuery struct {
	ReferenceNumber string
	ItemCode        string
	Stage           string
	From            *time.Time
	To              *time.Time
	Offset          int64
	Limit           int64
}

// WarehouseRequestFilter filters warehouse request listings
type WarehouseRequestFilter struct {
	Type   string
	Status RequestStatus
}

// WorkItemRepository defines the interface for work item persistence.
// Writes of existing items are conditional on Version; a mismatch yields
// ErrConflict and a successful write increments Version on the passed item.
type WorkItemRepository interface {
	// Create stores a new item together with its events
	Create(ctx context.Context, item *WorkItem) error

	// Update writes item if the stored version still equals item.Version
	Update(ctx context.Context, item *WorkItem) error

	// SaveRework closes the original and stores the spawned item atomically
	SaveRework(ctx context.Context, closed *WorkItem, spawned *WorkItem) error

	// FindByID finds an item by its item ID
	FindByID(ctx context.Context, itemID string) (*WorkItem, error)

	// FindOpen finds all queued and active items
	FindOpen(ctx context.Context) ([]*WorkItem, error)

	// FindRecentlyFinished finds the latest finished items, newest first
	FindRecentlyFinished(ctx context.Context, limit int) ([]*WorkItem, error)

	// FindUpdatedSince finds items of any status touched since the given time
	FindUpdatedSince(ctx context.Context, since time.Time) ([]*WorkItem, error)

	// Search runs a paginated history query, newest first
	Search(ctx context.Context, q HistoryQuery) ([]*WorkItem, int64, error)

	// SearchText matches item code, reference and description
	SearchText(ctx context.Context, text string, limit int) ([]*WorkItem, error)
}

// WarehouseRequestRepository defines the interface for warehouse request persistence
type WarehouseRequestRepository interface {
	Create(ctx context.Context, r *WarehouseRequest) error
	Update(ctx context.Context, r *WarehouseRequest) error
	FindByID(ctx context.Context, requestID string) (*WarehouseRequest, error)
	List(ctx context.Context, filter WarehouseRequestFilter) ([]*WarehouseRequest, error)
}

// DisplaySessionRepository defines the interface for display configuration persistence
type DisplaySessionRepository interface {
	// FindByID returns ErrNotFound for sessions never saved
	FindByID(ctx context.Context, sessionID string) (*DisplaySession, error)

	// Save upserts the session; version 0 means insert
	Save(ctx context.Context, s *DisplaySession) error
}

// DelayEscalationRepository stores escalations uniquely per item and stage
type DelayEscalationRepository interface {
	// Record stores e unless one exists for the same item and stage.
	// It reports whether e was stored.
	Record(ctx context.Context, e *DelayEscalation) (bool, error)

	FindByItem(ctx context.Context, itemID string) ([]*DelayEscalation, error)
}
