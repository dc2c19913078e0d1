package activities

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/client"
	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/pkg/metrics"
)

// MockDelayChecker is a mock implementation of the tracking API
type MockDelayChecker struct {
	mock.Mock
}

func (m *MockDelayChecker) DelayCheck(ctx context.Context, itemID, stage string) (*application.DelayCheckDTO, error) {
	args := m.Called(ctx, itemID, stage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.DelayCheckDTO), args.Error(1)
}

func runCheckDelay(t *testing.T, api DelayChecker, input CheckDelayInput) (*CheckDelayResult, error) {
	t.Helper()
	testSuite := &testsuite.WorkflowTestSuite{}
	env := testSuite.NewTestActivityEnvironment()
	acts := NewDelayActivities(api, metrics.New(metrics.DefaultConfig("test")))
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.CheckDelay, input)
	if err != nil {
		return nil, err
	}
	var result CheckDelayResult
	require.NoError(t, val.Get(&result))
	return &result, nil
}

func TestCheckDelay_MapsEscalation(t *testing.T) {
	deadline := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	api := new(MockDelayChecker)
	api.On("DelayCheck", mock.Anything, "WI-1", "washing").Return(&application.DelayCheckDTO{
		ItemID:    "WI-1",
		Stage:     "washing",
		Open:      true,
		Urgency:   domain.Urgency{Deadline: deadline, HasDeadline: true, Level: domain.UrgencyLate},
		Level:     domain.UrgencyLate,
		Escalated: true,
	}, nil)

	result, err := runCheckDelay(t, api, CheckDelayInput{ItemID: "WI-1", Stage: "washing"})
	require.NoError(t, err)

	assert.True(t, result.Escalated)
	assert.True(t, result.HasDeadline)
	assert.True(t, deadline.Equal(result.Deadline))
	assert.Equal(t, "LATE", result.Level)
	api.AssertExpectations(t)
}

func TestCheckDelay_UnknownItemIsNotRetried(t *testing.T) {
	api := new(MockDelayChecker)
	api.On("DelayCheck", mock.Anything, "WI-404", "washing").
		Return(nil, &client.APIError{Status: http.StatusNotFound, Code: "NOT_FOUND", Message: "item not found"})

	_, err := runCheckDelay(t, api, CheckDelayInput{ItemID: "WI-404", Stage: "washing"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, "NotFoundError", appErr.Type())
}

func TestCheckDelay_TransportErrorIsRetryable(t *testing.T) {
	api := new(MockDelayChecker)
	api.On("DelayCheck", mock.Anything, "WI-1", "washing").Return(nil, errors.New("connection refused"))

	_, err := runCheckDelay(t, api, CheckDelayInput{ItemID: "WI-1", Stage: "washing"})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		assert.False(t, appErr.NonRetryable())
	}
}
