package tui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/internal/rotation"
)

func lateEntry(ref string) projection.Entry {
	return projection.Entry{
		Item: &domain.WorkItem{ItemID: "i-" + ref, ReferenceNumber: ref, ItemCode: "AL-100", Quantity: 12},
		Urgency: domain.Urgency{
			HasDeadline:      true,
			RemainingSeconds: -720,
			PercentConsumed:  1,
			Level:            domain.UrgencyLate,
		},
	}
}

func TestRenderer_StageFrame(t *testing.T) {
	frame := &projection.Frame{
		Filter: "STAGE:washing",
		Board: projection.Board{
			Filter: "STAGE:washing",
			Buckets: []projection.Bucket{
				{Name: "washing.queued", Stage: "washing", DisplayName: "Washing (queued)", Entries: []projection.Entry{lateEntry("REF-1")}, LateCount: 1},
				{Name: "washing.active", Stage: "washing", DisplayName: "Washing (active)", Entries: []projection.Entry{}},
			},
		},
	}

	out := NewRenderer().Frame(frame, 120)

	assert.Contains(t, out, "WASHING")
	assert.Contains(t, out, "REF-1")
	assert.Contains(t, out, "AL-100")
	assert.Contains(t, out, "+12m")
	assert.Contains(t, out, "LATE")
	assert.Contains(t, out, "1 late")
	assert.Contains(t, out, "empty")
}

func TestRenderer_WarehouseFrameShowsRequests(t *testing.T) {
	frame := &projection.Frame{
		Filter: "WAREHOUSE:PROFILE",
		Requests: []projection.RequestEntry{{
			Request: &domain.WarehouseRequest{RequestID: "r1", Type: "PROFILE", ItemCode: "PR-7", Quantity: 4, Requester: "ana"},
			Urgency: domain.Urgency{HasDeadline: true, RemainingSeconds: 1800, PercentConsumed: 0.5, Level: domain.UrgencyNormal},
		}},
	}

	out := NewRenderer().Frame(frame, 120)

	assert.Contains(t, out, "PROFILE")
	assert.Contains(t, out, "Pending requests")
	assert.Contains(t, out, "PR-7")
	assert.Contains(t, out, "ana")
	assert.Contains(t, out, "30m")
}

func TestRenderer_EmptyWarehouseFrame(t *testing.T) {
	out := NewRenderer().Frame(&projection.Frame{Filter: "WAREHOUSE:HARDWARE"}, 80)
	assert.Contains(t, out, "No pending requests")
}

func TestRenderer_NilFrame(t *testing.T) {
	assert.Contains(t, NewRenderer().Frame(nil, 80), "Waiting for data")
}

func TestRemaining(t *testing.T) {
	tests := []struct {
		name string
		u    domain.Urgency
		want string
	}{
		{"no deadline", domain.Urgency{}, "-"},
		{"minutes left", domain.Urgency{HasDeadline: true, RemainingSeconds: 25 * 60}, "25m"},
		{"hours left", domain.Urgency{HasDeadline: true, RemainingSeconds: int64((2*time.Hour + 5*time.Minute) / time.Second)}, "2h05m"},
		{"overdue", domain.Urgency{HasDeadline: true, RemainingSeconds: -90 * 60}, "+1h30m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Remaining(tt.u))
		})
	}
}

func TestStatusLine(t *testing.T) {
	paused := StatusLine(rotation.Snapshot{Filter: "ALL", Index: 0, Rotating: false}, 3)
	assert.Contains(t, paused, "ALL  1/3")
	assert.Contains(t, paused, "paused")

	rotating := StatusLine(rotation.Snapshot{Filter: "STAGE:adhesive", Index: 1, Rotating: true, TimeToNext: 12 * time.Second}, 3)
	assert.Contains(t, rotating, "2/3")
	assert.Contains(t, rotating, "next in 12s")

	failed := StatusLine(rotation.Snapshot{Filter: "ALL", Err: errors.New("connection refused")}, 1)
	assert.Contains(t, failed, "refresh failed: connection refused")
}

func TestDisplayFormValues_Command(t *testing.T) {
	p := domain.MustDefaultPipeline()
	v := &DisplayFormValues{
		Filters:   []string{"WAREHOUSE:PROFILE", "ALL", "STAGE:adhesive"},
		Interval:  " 45 ",
		Rotating:  true,
		UpdatedBy: "line lead",
	}

	cmd, err := v.Command(p, "tv-1")
	require.NoError(t, err)

	assert.Equal(t, "tv-1", cmd.SessionID)
	assert.Equal(t, []string{"ALL", "STAGE:adhesive", "WAREHOUSE:PROFILE"}, cmd.Filters)
	assert.Equal(t, 45, cmd.IntervalSeconds)
	require.NotNil(t, cmd.RotationEnabled)
	assert.True(t, *cmd.RotationEnabled)
	assert.Equal(t, "line lead", cmd.UpdatedBy)

	v.Interval = "soon"
	_, err = v.Command(p, "tv-1")
	assert.Error(t, err)
}

func TestFilterOptions(t *testing.T) {
	opts := FilterOptions(domain.MustDefaultPipeline())
	assert.Equal(t, []string{"ALL", "STAGE:washing", "STAGE:adhesive", "WAREHOUSE:PROFILE", "WAREHOUSE:HARDWARE"}, opts)
}
