package outbox

import (
	"context"
	"time"
)

// Repository defines outbox event persistence
type Repository interface {
	// SaveAll saves events; inside a transaction when ctx carries a session
	SaveAll(ctx context.Context, events []*OutboxEvent) error

	// FindUnpublished returns unpublished events that still have retries left, oldest first
	FindUnpublished(ctx context.Context, limit int) ([]*OutboxEvent, error)

	MarkPublished(ctx context.Context, eventID string) error

	// IncrementRetry increments the retry count and records the last error
	IncrementRetry(ctx context.Context, eventID string, errorMsg string) error

	// DeletePublished removes events published before now minus olderThan
	DeletePublished(ctx context.Context, olderThan time.Duration) error

	// FindByAggregateID returns every event recorded for one aggregate
	FindByAggregateID(ctx context.Context, aggregateID string) ([]*OutboxEvent, error)
}
