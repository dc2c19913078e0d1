package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkItem(t *testing.T) {
	p := MustDefaultPipeline()

	t.Run("queued at first stage", func(t *testing.T) {
		item, err := NewWorkItem(p, NewWorkItemParams{ReferenceNumber: "OP-1", ItemCode: "PF-1", Quantity: 5}, t0)
		require.NoError(t, err)

		assert.Regexp(t, `^WI-[0-9a-f]{8}$`, item.ItemID)
		assert.Equal(t, Queued("washing"), item.Position())
		require.Len(t, item.StageHistory, 1)
		assert.Equal(t, t0, item.StageHistory[0].EntryAt)

		events := item.GetDomainEvents()
		require.Len(t, events, 1)
		_, ok := events[0].(*ItemCreatedEvent)
		assert.True(t, ok)
	})

	t.Run("entry uses upstream finish time", func(t *testing.T) {
		upstream := t0.Add(-25 * time.Minute)
		item, err := NewWorkItem(p, NewWorkItemParams{ReferenceNumber: "OP-1", ItemCode: "PF-1", Quantity: 5, UpstreamFinishedAt: &upstream}, t0)
		require.NoError(t, err)
		assert.Equal(t, upstream, item.StageHistory[0].EntryAt)
	})

	t.Run("future upstream time falls back to now", func(t *testing.T) {
		upstream := t0.Add(time.Hour)
		item, err := NewWorkItem(p, NewWorkItemParams{ReferenceNumber: "OP-1", ItemCode: "PF-1", Quantity: 5, UpstreamFinishedAt: &upstream}, t0)
		require.NoError(t, err)
		assert.Equal(t, t0, item.StageHistory[0].EntryAt)
	})

	t.Run("validation", func(t *testing.T) {
		for _, params := range []NewWorkItemParams{
			{ReferenceNumber: "OP-1", Quantity: 1},
			{ItemCode: "PF-1", Quantity: 1},
			{ReferenceNumber: "OP-1", ItemCode: "PF-1"},
		} {
			_, err := NewWorkItem(p, params, t0)
			assert.ErrorIs(t, err, ErrValidation)
		}
	})
}

func TestAdvanceThroughUngatedStage(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	active, changed, err := item.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "op-1"}, t0.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, ItemStatusActive, active.Status)
	require.NotNil(t, active.CurrentRecord().ActiveStartAt)
	assert.Equal(t, t0.Add(5*time.Minute), *active.CurrentRecord().ActiveStartAt)

	// receiver untouched
	assert.Equal(t, ItemStatusQueued, item.Status)
	assert.Nil(t, item.StageHistory[0].ActiveStartAt)

	moved, changed, err := active.Advance(p, AdvanceRequest{Target: Queued("adhesive"), OperatorID: "op-2"}, t0.Add(50*time.Minute))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, Queued("adhesive"), moved.Position())
	require.Len(t, moved.StageHistory, 2)
	washing := moved.StageHistory[0]
	require.NotNil(t, washing.FinishedAt)
	assert.Equal(t, "op-2", washing.FinishedBy)
	assert.Equal(t, *washing.FinishedAt, moved.StageHistory[1].EntryAt)

	events := moved.GetDomainEvents()
	require.Len(t, events, 1)
	ev := events[0].(*ItemStageChangedEvent)
	assert.Equal(t, Active("washing"), ev.From)
	assert.Equal(t, Queued("adhesive"), ev.To)
}

func TestAdvanceIsIdempotent(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	active, _, err := item.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "op-1"}, t0.Add(time.Minute))
	require.NoError(t, err)

	again, changed, err := active.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "op-9"}, t0.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, again.GetDomainEvents())
	assert.Equal(t, t0.Add(time.Minute), *again.CurrentRecord().ActiveStartAt)
	assert.Equal(t, "op-1", again.CurrentRecord().StartedBy)
}

func TestAdvanceRejectsSkipsAndRegressions(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	_, _, err := item.Advance(p, AdvanceRequest{Target: Queued("adhesive"), OperatorID: "op-1"}, t0)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	active, _, err := item.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "op-1"}, t0)
	require.NoError(t, err)

	_, _, err = active.Advance(p, AdvanceRequest{Target: Queued("washing"), OperatorID: "op-1"}, t0)
	assert.ErrorIs(t, err, ErrIllegalTransition)

	_, _, err = active.Advance(p, AdvanceRequest{Target: Finished(), OperatorID: "op-1"}, t0)
	assert.ErrorIs(t, err, ErrIllegalTransition)
}

func TestAdvanceRequiresOperator(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	_, _, err := item.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "  "}, t0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAdvanceBlockedByGate(t *testing.T) {
	p := MustDefaultPipeline()
	item := moveToAdhesiveQueue(t, p)

	_, _, err := item.Advance(p, AdvanceRequest{Target: Active("adhesive"), OperatorID: "op-1"}, t0.Add(time.Hour))
	assert.ErrorIs(t, err, ErrInspectionRequired)
}

func TestAdvanceToFinished(t *testing.T) {
	s := DefaultPipelineSettings()
	s.Gates = nil
	p, err := NewPipeline(s)
	require.NoError(t, err)

	item := newTestItem(t, p, t0)
	steps := []Position{Active("washing"), Queued("adhesive"), Active("adhesive"), Finished()}
	for i, target := range steps {
		item, _, err = item.Advance(p, AdvanceRequest{Target: target, OperatorID: "op-1"}, t0.Add(time.Duration(i+1)*10*time.Minute))
		require.NoError(t, err, target.String())
	}

	assert.Equal(t, ItemStatusFinished, item.Status)
	assert.Equal(t, StageFinished, item.Stage)
	require.NotNil(t, item.FinishedAt)
	assert.Equal(t, t0.Add(40*time.Minute), *item.FinishedAt)
	_, ok := p.Deadline(item)
	assert.False(t, ok)

	events := item.GetDomainEvents()
	require.Len(t, events, 2)
	_, ok = events[1].(*ItemFinishedEvent)
	assert.True(t, ok)

	_, _, err = item.Advance(p, AdvanceRequest{Target: Finished(), OperatorID: "op-1"}, t0.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyFinished)
}

func TestStageRecordTimestampsAreOrdered(t *testing.T) {
	p := MustDefaultPipeline()
	upstream := t0
	item, err := NewWorkItem(p, NewWorkItemParams{ReferenceNumber: "OP-1", ItemCode: "PF-1", Quantity: 5, UpstreamFinishedAt: &upstream}, t0.Add(time.Minute))
	require.NoError(t, err)

	// an operator clock slightly behind the recorded entry is clamped
	active, _, err := item.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "op-1"}, t0.Add(-time.Minute))
	require.NoError(t, err)
	rec := active.CurrentRecord()
	assert.False(t, rec.ActiveStartAt.Before(rec.EntryAt))
}

func moveToAdhesiveQueue(t *testing.T, p *Pipeline) *WorkItem {
	t.Helper()
	item := newTestItem(t, p, t0)
	item, _, err := item.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "op-1"}, t0.Add(5*time.Minute))
	require.NoError(t, err)
	item, _, err = item.Advance(p, AdvanceRequest{Target: Queued("adhesive"), OperatorID: "op-1"}, t0.Add(45*time.Minute))
	require.NoError(t, err)
	item.ClearDomainEvents()
	return item
}
