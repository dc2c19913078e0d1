package workflows

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/production-tracking/internal/activities"
)

var watchStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newWatchEnv(t *testing.T) (*testsuite.TestWorkflowEnvironment, *activities.DelayActivities) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestWorkflowEnvironment()
	env.SetStartTime(watchStart)

	acts := activities.NewDelayActivities(nil, nil)
	env.RegisterActivity(acts)
	return env, acts
}

func TestDeadlineWatch_SleepsUntilDeadlineThenEscalates(t *testing.T) {
	env, acts := newWatchEnv(t)
	deadline := watchStart.Add(2 * time.Hour)

	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(&activities.CheckDelayResult{
		ItemID: "WI-1", Stage: "washing", Open: true, HasDeadline: true, Deadline: deadline, Level: "NORMAL",
	}, nil).Once()
	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(&activities.CheckDelayResult{
		ItemID: "WI-1", Stage: "washing", Open: true, HasDeadline: true, Deadline: deadline, Level: "LATE", Escalated: true,
	}, nil).Once()

	env.ExecuteWorkflow(DeadlineWatchWorkflow, DeadlineWatchInput{ItemID: "WI-1", Stage: "washing"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result DeadlineWatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeEscalated, result.Outcome)
	assert.Equal(t, 2, result.Checks)
	assert.False(t, env.Now().Before(deadline))
	env.AssertExpectations(t)
}

func TestDeadlineWatch_RereadsMovedDeadline(t *testing.T) {
	env, acts := newWatchEnv(t)
	first := watchStart.Add(30 * time.Minute)
	moved := watchStart.Add(3 * time.Hour)

	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(&activities.CheckDelayResult{
		Stage: "washing", Open: true, HasDeadline: true, Deadline: first, Level: "NORMAL",
	}, nil).Once()
	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(&activities.CheckDelayResult{
		Stage: "washing", Open: true, HasDeadline: true, Deadline: moved, Level: "NORMAL",
	}, nil).Once()
	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(&activities.CheckDelayResult{
		Stage: "washing", Open: true, HasDeadline: true, Deadline: moved, Level: "LATE", AlreadyEscalated: true,
	}, nil).Once()

	env.ExecuteWorkflow(DeadlineWatchWorkflow, DeadlineWatchInput{ItemID: "WI-1", Stage: "washing"})

	require.NoError(t, env.GetWorkflowError())
	var result DeadlineWatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeAlreadyEscalated, result.Outcome)
	assert.Equal(t, 3, result.Checks)
	assert.False(t, env.Now().Before(moved))
}

func TestDeadlineWatch_EndsWhenItemLeftStage(t *testing.T) {
	env, acts := newWatchEnv(t)

	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(&activities.CheckDelayResult{
		Stage: "adhesive", Open: true, HasDeadline: true, Deadline: watchStart.Add(time.Hour),
	}, nil).Once()

	env.ExecuteWorkflow(DeadlineWatchWorkflow, DeadlineWatchInput{ItemID: "WI-1", Stage: "washing"})

	require.NoError(t, env.GetWorkflowError())
	var result DeadlineWatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeLeftStage, result.Outcome)
	assert.Equal(t, 1, result.Checks)
}

func TestDeadlineWatch_EndsForClosedItem(t *testing.T) {
	env, acts := newWatchEnv(t)

	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(&activities.CheckDelayResult{
		Stage: "washing", Open: false,
	}, nil).Once()

	env.ExecuteWorkflow(DeadlineWatchWorkflow, DeadlineWatchInput{ItemID: "WI-1", Stage: "washing"})

	var result DeadlineWatchResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, OutcomeClosed, result.Outcome)
}

func TestDeadlineWatch_FailsOnUnknownItem(t *testing.T) {
	env, acts := newWatchEnv(t)

	env.OnActivity(acts.CheckDelay, mock.Anything, mock.Anything).Return(
		nil, temporal.NewNonRetryableApplicationError("item WI-404 not found", "NotFoundError", nil))

	env.ExecuteWorkflow(DeadlineWatchWorkflow, DeadlineWatchInput{ItemID: "WI-404", Stage: "washing"})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
}
