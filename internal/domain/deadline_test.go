package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newTestItem(t *testing.T, p *Pipeline, now time.Time) *WorkItem {
	t.Helper()
	item, err := NewWorkItem(p, NewWorkItemParams{
		ReferenceNumber: "OP-1001",
		ItemCode:        "PF-220",
		Description:     "Blasted profile",
		Quantity:        40,
	}, now)
	require.NoError(t, err)
	item.ClearDomainEvents()
	return item
}

func TestComputeUrgencyLevels(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	tests := []struct {
		name    string
		elapsed time.Duration
		level   UrgencyLevel
	}{
		{"21 minutes left is normal", 39 * time.Minute, UrgencyNormal},
		{"19 minutes left is a warning", 41 * time.Minute, UrgencyWarning},
		{"exactly due is late", 60 * time.Minute, UrgencyLate},
		{"one minute over is late", 61 * time.Minute, UrgencyLate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ComputeUrgency(item, p, t0.Add(tt.elapsed))
			assert.True(t, u.HasDeadline)
			assert.Equal(t, t0.Add(time.Hour), u.Deadline)
			assert.Equal(t, tt.level, u.Level)
		})
	}
}

func TestComputeUrgencyPercentConsumed(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	// 240 minute ceiling with 60 minutes left
	u := ComputeUrgency(item, p, t0)
	assert.InDelta(t, 0.75, u.PercentConsumed, 1e-9)

	u = ComputeUrgency(item, p, t0.Add(90*time.Minute))
	assert.Equal(t, 1.0, u.PercentConsumed)
}

func TestComputeUrgencyIsMonotonic(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	prev := UrgencyNormal
	for m := 0; m <= 90; m++ {
		level := ComputeUrgency(item, p, t0.Add(time.Duration(m)*time.Minute)).Level
		assert.GreaterOrEqual(t, level.Rank(), prev.Rank(), "minute %d", m)
		prev = level
	}
}

func TestDeadlineUsesActiveStart(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	started, _, err := item.Advance(p, AdvanceRequest{Target: Active("washing"), OperatorID: "op-7"}, t0.Add(30*time.Minute))
	require.NoError(t, err)

	deadline, ok := p.Deadline(started)
	require.True(t, ok)
	assert.Equal(t, t0.Add(90*time.Minute), deadline)
}

func TestNoDeadline(t *testing.T) {
	s := DefaultPipelineSettings()
	s.Stages[0].Allowance = 0
	p, err := NewPipeline(s)
	require.NoError(t, err)

	item := newTestItem(t, p, t0)
	u := ComputeUrgency(item, p, t0.Add(10*time.Hour))
	assert.False(t, u.HasDeadline)
	assert.Equal(t, UrgencyNormal, u.Level)
	assert.Zero(t, u.PercentConsumed)
}

func TestEscalateIfLate(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)

	_, late := EscalateIfLate(item, p, t0.Add(59*time.Minute))
	assert.False(t, late)

	esc, late := EscalateIfLate(item, p, t0.Add(75*time.Minute))
	require.True(t, late)
	assert.Equal(t, EscalationID(item.ItemID, "washing"), esc.ID)
	assert.Equal(t, PhaseQueued, esc.Phase)
	require.Len(t, esc.GetDomainEvents(), 1)
	ev := esc.GetDomainEvents()[0].(*ItemDelayEscalatedEvent)
	assert.Equal(t, int64(15*60), ev.OverdueSeconds)
	assert.Equal(t, ItemStatusQueued, item.Status)
}

func TestDeadlineUsesProductAllowance(t *testing.T) {
	s := DefaultPipelineSettings()
	s.Products = []ProductAllowance{{ItemCode: "AL-2040", Allowances: map[string]time.Duration{"washing": 180 * time.Minute}}}
	p, err := NewPipeline(s)
	require.NoError(t, err)

	standard := newTestItem(t, p, t0)
	long, err := NewWorkItem(p, NewWorkItemParams{ReferenceNumber: "OP-1002", ItemCode: "AL-2040", Quantity: 12}, t0)
	require.NoError(t, err)
	require.Equal(t, standard.Stage, long.Stage)

	now := t0.Add(30 * time.Minute)
	a := ComputeUrgency(standard, p, now)
	b := ComputeUrgency(long, p, now)

	assert.Equal(t, t0.Add(time.Hour), a.Deadline)
	assert.Equal(t, t0.Add(3*time.Hour), b.Deadline)

	// both bars are measured against the same 240 minute ceiling
	assert.InDelta(t, float64(210)/240, a.PercentConsumed, 1e-9)
	assert.InDelta(t, float64(90)/240, b.PercentConsumed, 1e-9)
	assert.Equal(t, UrgencyNormal, b.Level)
}

func TestStartLate(t *testing.T) {
	p := MustDefaultPipeline()
	item := newTestItem(t, p, t0)
	rec := *item.CurrentRecord()

	assert.False(t, p.StartLate(item, rec, t0.Add(59*time.Minute)))
	assert.True(t, p.StartLate(item, rec, t0.Add(61*time.Minute)), "still queued past the allowance")

	started := t0.Add(70 * time.Minute)
	rec.ActiveStartAt = &started
	assert.True(t, p.StartLate(item, rec, started))

	onTime := t0.Add(30 * time.Minute)
	rec.ActiveStartAt = &onTime
	assert.False(t, p.StartLate(item, rec, t0.Add(5*time.Hour)), "an on-time start stays on time")
}
