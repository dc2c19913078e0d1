package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-tracking/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func item(t *testing.T, p *domain.Pipeline, code string, created time.Time) *domain.WorkItem {
	t.Helper()
	it, err := domain.NewWorkItem(p, domain.NewWorkItemParams{ReferenceNumber: "OP-" + code, ItemCode: code, Quantity: 10}, created)
	require.NoError(t, err)
	return it
}

func advance(t *testing.T, p *domain.Pipeline, it *domain.WorkItem, target domain.Position, at time.Time) *domain.WorkItem {
	t.Helper()
	out, _, err := it.Advance(p, domain.AdvanceRequest{Target: target, OperatorID: "op"}, at)
	require.NoError(t, err)
	return out
}

func noGates(t *testing.T) *domain.Pipeline {
	t.Helper()
	s := domain.DefaultPipelineSettings()
	s.Gates = nil
	p, err := domain.NewPipeline(s)
	require.NoError(t, err)
	return p
}

func TestProjectBucketsInPipelineOrder(t *testing.T) {
	p := domain.MustDefaultPipeline()
	board := Project(nil, p, ViewOptions{}, t0)

	var names []string
	for _, b := range board.Buckets {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"washing.queued", "washing.active", "adhesive.queued", "adhesive.active"}, names)
	assert.Nil(t, board.Finished)
	assert.Equal(t, "ALL", board.Filter)
}

func TestProjectOrdersByDeadline(t *testing.T) {
	p := domain.MustDefaultPipeline()

	late := item(t, p, "A", t0)
	soon := item(t, p, "B", t0.Add(10*time.Minute))
	tieFirst := item(t, p, "C", t0.Add(20*time.Minute))
	tieSecond := item(t, p, "D", t0.Add(20*time.Minute))
	if tieSecond.ItemID < tieFirst.ItemID {
		tieFirst, tieSecond = tieSecond, tieFirst
	}

	board := Project([]*domain.WorkItem{tieSecond, soon, tieFirst, late}, p, ViewOptions{}, t0.Add(30*time.Minute))
	queued := board.Buckets[0].Entries
	require.Len(t, queued, 4)
	assert.Equal(t, late.ItemID, queued[0].Item.ItemID)
	assert.Equal(t, soon.ItemID, queued[1].Item.ItemID)
	assert.Equal(t, tieFirst.ItemID, queued[2].Item.ItemID)
	assert.Equal(t, tieSecond.ItemID, queued[3].Item.ItemID)
}

func TestProjectNoDeadlineLast(t *testing.T) {
	s := domain.DefaultPipelineSettings()
	s.Stages[0].Allowance = 0
	p, err := domain.NewPipeline(s)
	require.NoError(t, err)

	a := item(t, p, "A", t0)
	b := item(t, p, "B", t0.Add(time.Minute))
	board := Project([]*domain.WorkItem{b, a}, p, ViewOptions{}, t0)
	entries := board.Buckets[0].Entries
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Urgency.HasDeadline)
	assert.Equal(t, a.ItemID, entries[0].Item.ItemID)
}

func TestProjectFiltersAndFinished(t *testing.T) {
	p := noGates(t)

	queued := item(t, p, "Q", t0)
	active := advance(t, p, item(t, p, "A", t0), domain.Active("washing"), t0.Add(time.Minute))

	var finished []*domain.WorkItem
	for i := 0; i < 12; i++ {
		it := item(t, p, "F", t0)
		for j, target := range []domain.Position{domain.Active("washing"), domain.Queued("adhesive"), domain.Active("adhesive"), domain.Finished()} {
			it = advance(t, p, it, target, t0.Add(time.Duration(i*10+j+1)*time.Minute))
		}
		finished = append(finished, it)
	}
	closed := item(t, p, "X", t0)
	closed.Status = domain.ItemStatusClosed

	all := append([]*domain.WorkItem{queued, active, closed}, finished...)

	board := Project(all, p, ViewOptions{Filter: domain.Filter{Kind: domain.FilterKindStage, Value: "washing"}}, t0)
	require.Len(t, board.Buckets, 2)
	assert.Len(t, board.Buckets[0].Entries, 1)
	assert.Len(t, board.Buckets[1].Entries, 1)

	board = Project(all, p, ViewOptions{IncludeFinished: true}, t0.Add(3*time.Hour))
	require.NotNil(t, board.Finished)
	require.Len(t, board.Finished.Entries, 10)
	assert.Equal(t, finished[11].ItemID, board.Finished.Entries[0].Item.ItemID)
	for _, b := range board.Buckets {
		for _, e := range b.Entries {
			assert.NotEqual(t, closed.ItemID, e.Item.ItemID)
		}
	}

	board = Project(all, p, ViewOptions{Filter: domain.Filter{Kind: domain.FilterKindWarehouse, Value: "PROFILE"}}, t0)
	assert.Empty(t, board.Buckets)
}

func TestProjectCountsUrgency(t *testing.T) {
	p := domain.MustDefaultPipeline()
	a := item(t, p, "A", t0)
	b := item(t, p, "B", t0.Add(30*time.Minute))
	c := item(t, p, "C", t0.Add(55*time.Minute))
	c.PriorityTag = "Calculo 1"

	board := Project([]*domain.WorkItem{a, b, c}, p, ViewOptions{}, t0.Add(75*time.Minute))
	bucket := board.Buckets[0]
	assert.Equal(t, 1, bucket.LateCount)
	assert.Equal(t, 1, bucket.WarningCount)
	assert.True(t, bucket.Entries[2].FastTrack)
}

func TestBuildFrameForWarehouseFilter(t *testing.T) {
	p := domain.MustDefaultPipeline()
	types := p.Warehouse.Types

	r1, err := domain.NewWarehouseRequest(domain.NewWarehouseRequestParams{Type: "PROFILE", ItemCode: "AL", Quantity: 1, Requester: "x"}, types, t0.Add(time.Minute))
	require.NoError(t, err)
	r2, err := domain.NewWarehouseRequest(domain.NewWarehouseRequestParams{Type: "PROFILE", ItemCode: "AL", Quantity: 1, Requester: "x"}, types, t0)
	require.NoError(t, err)
	r3, err := domain.NewWarehouseRequest(domain.NewWarehouseRequestParams{Type: "HARDWARE", ItemCode: "SC", Quantity: 1, Requester: "x"}, types, t0)
	require.NoError(t, err)

	frame := BuildFrame([]*domain.WorkItem{item(t, p, "A", t0)}, []*domain.WarehouseRequest{r1, r2, r3}, p,
		domain.Filter{Kind: domain.FilterKindWarehouse, Value: "PROFILE"}, t0.Add(70*time.Minute))

	assert.Empty(t, frame.Board.Buckets)
	require.Len(t, frame.Requests, 2)
	assert.Equal(t, r2.RequestID, frame.Requests[0].Request.RequestID)
	assert.Equal(t, domain.UrgencyLate, frame.Requests[0].Urgency.Level)
}
