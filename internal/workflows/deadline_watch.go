package workflows

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/wms-platform/production-tracking/internal/activities"
	pkgtemporal "github.com/wms-platform/production-tracking/pkg/temporal"
)

// Outcomes of a deadline watch
const (
	OutcomeEscalated        = "ESCALATED"
	OutcomeAlreadyEscalated = "ALREADY_ESCALATED"
	OutcomeLeftStage        = "LEFT_STAGE"
	OutcomeClosed           = "CLOSED"
	OutcomeNoDeadline       = "NO_DEADLINE"
)

// checks per run before the history is trimmed with ContinueAsNew
const maxChecksPerRun = 50

// a deadline that is due but not yet reported late is re-checked after this
const minRecheckDelay = time.Minute

// DeadlineWatchInput identifies the item and stage to watch
type DeadlineWatchInput struct {
	ItemID string `json:"itemId"`
	Stage  string `json:"stage"`
}

// DeadlineWatchResult reports why the watch ended
type DeadlineWatchResult struct {
	ItemID  string `json:"itemId"`
	Stage   string `json:"stage"`
	Outcome string `json:"outcome"`
	Checks  int    `json:"checks"`
}

// DeadlineWatchWorkflow sleeps until an item's deadline in one stage and then
// asks for a delay escalation. The deadline is re-read on every wake-up since
// starting work on the stage moves its reference time. Time never changes
// the item itself.
func DeadlineWatchWorkflow(ctx workflow.Context, input DeadlineWatchInput) (*DeadlineWatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting deadline watch", "itemId", input.ItemID, "stage", input.Stage)

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: pkgtemporal.ActivityDefaults.StartToCloseTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        pkgtemporal.ActivityDefaults.InitialInterval,
			BackoffCoefficient:     2.0,
			MaximumInterval:        pkgtemporal.ActivityDefaults.MaximumInterval,
			MaximumAttempts:        pkgtemporal.ActivityDefaults.MaximumAttempts,
			NonRetryableErrorTypes: []string{"NotFoundError"},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var acts *activities.DelayActivities
	result := &DeadlineWatchResult{ItemID: input.ItemID, Stage: input.Stage}

	for result.Checks < maxChecksPerRun {
		var check activities.CheckDelayResult
		err := workflow.ExecuteActivity(ctx, acts.CheckDelay, activities.CheckDelayInput{
			ItemID: input.ItemID,
			Stage:  input.Stage,
		}).Get(ctx, &check)
		if err != nil {
			logger.Error("Delay check failed", "itemId", input.ItemID, "error", err)
			return nil, fmt.Errorf("delay check failed: %w", err)
		}
		result.Checks++

		switch {
		case !check.Open:
			result.Outcome = OutcomeClosed
		case check.Stage != input.Stage:
			result.Outcome = OutcomeLeftStage
		case !check.HasDeadline:
			result.Outcome = OutcomeNoDeadline
		case check.Escalated:
			result.Outcome = OutcomeEscalated
		case check.AlreadyEscalated:
			result.Outcome = OutcomeAlreadyEscalated
		}
		if result.Outcome != "" {
			logger.Info("Deadline watch finished", "itemId", input.ItemID, "stage", input.Stage, "outcome", result.Outcome)
			return result, nil
		}

		wait := check.Deadline.Sub(workflow.Now(ctx))
		if wait < minRecheckDelay {
			wait = minRecheckDelay
		}
		logger.Info("Waiting for deadline", "itemId", input.ItemID, "deadline", check.Deadline, "wait", wait)
		if err := workflow.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, workflow.NewContinueAsNewError(ctx, DeadlineWatchWorkflow, input)
}
