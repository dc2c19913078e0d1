package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-tracking/internal/infrastructure/memory"
	"github.com/wms-platform/production-tracking/pkg/cloudevents"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/outbox"
	pkgtesting "github.com/wms-platform/production-tracking/pkg/testing"
)

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishEvent(ctx context.Context, topic string, event *cloudevents.ProdTrackCloudEvent) error {
	args := m.Called(ctx, topic, event)
	return args.Error(0)
}

const itemTopic = "prodtrack.production.events"

func saveEvent(t *testing.T, repo outbox.Repository, aggregateID, eventType string) *outbox.OutboxEvent {
	t.Helper()
	factory := cloudevents.NewEventFactory(cloudevents.SourceProductionTracking)
	ce := factory.CreateEvent(context.Background(), eventType, aggregateID, time.Time{}, map[string]string{"itemId": aggregateID})
	event, err := outbox.NewOutboxEventFromCloudEvent(aggregateID, "WorkItem", itemTopic, ce)
	require.NoError(t, err)
	require.NoError(t, repo.SaveAll(context.Background(), []*outbox.OutboxEvent{event}))
	return event
}

func TestPublisher_ProcessBatchPublishesAndMarks(t *testing.T) {
	repo := memory.NewOutboxRepository()
	first := saveEvent(t, repo, "WI-1", cloudevents.ItemCreated)
	saveEvent(t, repo, "WI-1", cloudevents.ItemStageChanged)

	producer := new(MockEventPublisher)
	var types []string
	producer.On("PublishEvent", mock.Anything, itemTopic, mock.Anything).
		Run(func(args mock.Arguments) {
			types = append(types, args.Get(2).(*cloudevents.ProdTrackCloudEvent).Type)
		}).
		Return(nil)

	p := outbox.NewPublisher(repo, producer, logging.NewNop(), nil, nil)
	n := p.ProcessBatch(context.Background())

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{cloudevents.ItemCreated, cloudevents.ItemStageChanged}, types, "outbox order is kept")

	pending, err := repo.FindUnpublished(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	events, err := repo.FindByAggregateID(context.Background(), "WI-1")
	require.NoError(t, err)
	for _, e := range events {
		if e.ID == first.ID {
			assert.True(t, e.IsPublished())
		}
	}
	assert.Equal(t, map[string]int{"published": 2, "failed": 0}, p.Stats())
}

func TestPublisher_FailureIncrementsRetry(t *testing.T) {
	repo := memory.NewOutboxRepository()
	event := saveEvent(t, repo, "WR-1", cloudevents.WarehouseRequestCreated)

	producer := new(MockEventPublisher)
	producer.On("PublishEvent", mock.Anything, itemTopic, mock.Anything).Return(errors.New("broker down"))

	p := outbox.NewPublisher(repo, producer, logging.NewNop(), nil, nil)
	assert.Equal(t, 0, p.ProcessBatch(context.Background()))

	events, err := repo.FindByAggregateID(context.Background(), "WR-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ID, events[0].ID)
	assert.Equal(t, 1, events[0].RetryCount)
	assert.Contains(t, events[0].LastError, "broker down")
	assert.False(t, events[0].IsPublished())
	assert.Equal(t, 1, p.Stats()["failed"])
}

func TestPublisher_StartDrainsUntilStopped(t *testing.T) {
	repo := memory.NewOutboxRepository()
	saveEvent(t, repo, "WI-9", cloudevents.ItemFinished)

	producer := new(MockEventPublisher)
	producer.On("PublishEvent", mock.Anything, itemTopic, mock.Anything).Return(nil)

	p := outbox.NewPublisher(repo, producer, logging.NewNop(), nil, &outbox.PublisherConfig{
		PollInterval: 10 * time.Millisecond,
		BatchSize:    10,
	})
	require.NoError(t, p.Start(context.Background()))
	assert.Error(t, p.Start(context.Background()), "second start is rejected")

	pkgtesting.AssertEventually(t, func() bool {
		pending, _ := repo.FindUnpublished(context.Background(), 10)
		return len(pending) == 0
	}, 2*time.Second, "outbox drained")

	require.NoError(t, p.Stop())
	assert.False(t, p.IsRunning())
	producer.AssertNumberOfCalls(t, "PublishEvent", 1)
}
