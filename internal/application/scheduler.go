package application

import "context"

// DeadlineScheduler starts the delay watch for an item in a stage. Starting
// the same watch twice is a no-op.
type DeadlineScheduler interface {
	ScheduleDeadlineWatch(ctx context.Context, itemID, stage string) error
}

// NoopScheduler is used when Temporal is disabled
type NoopScheduler struct{}

// ScheduleDeadlineWatch does nothing
func (NoopScheduler) ScheduleDeadlineWatch(context.Context, string, string) error { return nil }
