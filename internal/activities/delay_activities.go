package activities

import (
	"context"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/client"
	"github.com/wms-platform/production-tracking/pkg/metrics"
)

// DelayChecker asks the tracking API to escalate a late item.
// client.Client implements it.
type DelayChecker interface {
	DelayCheck(ctx context.Context, itemID, stage string) (*application.DelayCheckDTO, error)
}

// DelayActivities contains the activities of the deadline watch
type DelayActivities struct {
	api     DelayChecker
	metrics *metrics.Metrics
}

// NewDelayActivities creates a new DelayActivities instance. metrics may be nil.
func NewDelayActivities(api DelayChecker, m *metrics.Metrics) *DelayActivities {
	return &DelayActivities{api: api, metrics: m}
}

// CheckDelayInput identifies the item and the stage being watched
type CheckDelayInput struct {
	ItemID string `json:"itemId"`
	Stage  string `json:"stage"`
}

// CheckDelayResult is what the workflow needs to decide whether to keep waiting
type CheckDelayResult struct {
	ItemID           string    `json:"itemId"`
	Stage            string    `json:"stage"`
	Open             bool      `json:"open"`
	HasDeadline      bool      `json:"hasDeadline"`
	Deadline         time.Time `json:"deadline"`
	Level            string    `json:"level"`
	Escalated        bool      `json:"escalated"`
	AlreadyEscalated bool      `json:"alreadyEscalated"`
}

// CheckDelay re-reads the item's deadline and escalates it once if it is late
func (a *DelayActivities) CheckDelay(ctx context.Context, input CheckDelayInput) (*CheckDelayResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Checking item delay", "itemId", input.ItemID, "stage", input.Stage)

	start := time.Now()
	res, err := a.api.DelayCheck(ctx, input.ItemID, input.Stage)
	a.record(err == nil, time.Since(start))
	if err != nil {
		if client.IsNotFound(err) {
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("item %s not found", input.ItemID), "NotFoundError", err)
		}
		logger.Error("Delay check failed", "itemId", input.ItemID, "error", err)
		return nil, fmt.Errorf("delay check failed: %w", err)
	}

	if res.Escalated {
		logger.Info("Item escalated as late", "itemId", res.ItemID, "stage", res.Stage)
	}

	return &CheckDelayResult{
		ItemID:           res.ItemID,
		Stage:            res.Stage,
		Open:             res.Open,
		HasDeadline:      res.Urgency.HasDeadline,
		Deadline:         res.Urgency.Deadline,
		Level:            string(res.Level),
		Escalated:        res.Escalated,
		AlreadyEscalated: res.AlreadyEscalated,
	}, nil
}

func (a *DelayActivities) record(success bool, d time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordActivityCompleted("CheckDelay", success, d)
	}
}
