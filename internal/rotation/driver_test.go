package rotation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/pkg/logging"
	testutil "github.com/wms-platform/production-tracking/pkg/testing"
)

type fakeSource struct {
	mu    sync.Mutex
	calls []string
	fail  bool
}

func (f *fakeSource) Frame(_ context.Context, filter string) (*projection.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, filter)
	if f.fail {
		return nil, errors.New("api unavailable")
	}
	return &projection.Frame{Filter: filter}, nil
}

func (f *fakeSource) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func newTestDriver(t *testing.T, src FrameSource, s Settings) (*Driver, func(time.Duration)) {
	t.Helper()
	clock, advance := testutil.FixedClock(time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC))
	d, err := NewDriver(src, s, logging.NewNop(), WithClock(clock))
	require.NoError(t, err)
	return d, advance
}

func TestTickRotatesAndWraps(t *testing.T) {
	src := &fakeSource{}
	d, _ := newTestDriver(t, src, Settings{Filters: []string{"ALL", "STAGE:washing", "WAREHOUSE:PROFILE"}, Interval: 30 * time.Second, Rotating: true})
	ctx := context.Background()

	d.Refresh(ctx)
	for i := 0; i < 3; i++ {
		d.Tick(ctx)
	}

	assert.Equal(t, []string{"ALL", "STAGE:washing", "WAREHOUSE:PROFILE", "ALL"}, src.Calls())
	snap := d.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, "ALL", snap.Filter)
	require.NotNil(t, snap.Frame)
	assert.Equal(t, "ALL", snap.Frame.Filter)
}

func TestPauseKeepsFilter(t *testing.T) {
	src := &fakeSource{}
	d, advance := newTestDriver(t, src, Settings{Filters: []string{"ALL", "STAGE:washing"}, Interval: 30 * time.Second, Rotating: true})
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	t.Cleanup(func() { _ = d.Stop() })

	d.Tick(ctx)
	d.Pause()
	d.Tick(ctx)
	d.Tick(ctx)
	snap := d.Snapshot()
	assert.Equal(t, "STAGE:washing", snap.Filter)
	assert.False(t, snap.Rotating)
	assert.Zero(t, snap.TimeToNext)

	d.Resume()
	advance(10 * time.Second)
	snap = d.Snapshot()
	assert.True(t, snap.Rotating)
	assert.Equal(t, 20*time.Second, snap.TimeToNext)

	d.Tick(ctx)
	assert.Equal(t, "ALL", d.Snapshot().Filter)
}

func TestReconfigureKeepsCurrentFilterWhenPresent(t *testing.T) {
	src := &fakeSource{}
	d, _ := newTestDriver(t, src, Settings{Filters: []string{"ALL", "STAGE:washing"}, Interval: 30 * time.Second, Rotating: true})
	ctx := context.Background()
	d.Tick(ctx)

	require.NoError(t, d.Reconfigure(ctx, Settings{Filters: []string{"STAGE:adhesive", "STAGE:washing"}, Interval: 10 * time.Second, Rotating: true}))
	assert.Equal(t, 1, d.Snapshot().Index)
	assert.Equal(t, "STAGE:washing", d.Snapshot().Filter)

	require.NoError(t, d.Reconfigure(ctx, Settings{Filters: []string{"WAREHOUSE:HARDWARE"}, Interval: 10 * time.Second, Rotating: true}))
	assert.Equal(t, "WAREHOUSE:HARDWARE", d.Snapshot().Filter)
	assert.Equal(t, "WAREHOUSE:HARDWARE", src.Calls()[len(src.Calls())-1])

	assert.Error(t, d.Reconfigure(ctx, Settings{Interval: time.Second}))
}

func TestFrameErrorKeepsLastFrame(t *testing.T) {
	src := &fakeSource{}
	d, _ := newTestDriver(t, src, Settings{Filters: []string{"ALL"}, Interval: 30 * time.Second, Rotating: true})
	ctx := context.Background()

	d.Refresh(ctx)
	src.mu.Lock()
	src.fail = true
	src.mu.Unlock()
	d.Tick(ctx)

	snap := d.Snapshot()
	assert.Error(t, snap.Err)
	require.NotNil(t, snap.Frame)
}

func TestStartStop(t *testing.T) {
	src := &fakeSource{}
	d, err := NewDriver(src, Settings{Filters: []string{"ALL", "STAGE:washing"}, Interval: 10 * time.Millisecond, Rotating: true}, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, d.Start(ctx))
	assert.Error(t, d.Start(ctx))

	testutil.AssertEventually(t, func() bool { return len(src.Calls()) >= 3 }, 2*time.Second, "driver should tick")

	require.NoError(t, d.Stop())
	last := d.Snapshot().Filter
	n := len(src.Calls())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(src.Calls()))
	assert.Equal(t, last, d.Snapshot().Filter)
	assert.Error(t, d.Stop())

	select {
	case snap := <-d.Updates():
		assert.NotEmpty(t, snap.Filter)
	default:
		t.Fatal("expected a snapshot update")
	}
}

func TestNewDriverValidates(t *testing.T) {
	_, err := NewDriver(&fakeSource{}, Settings{Interval: time.Second}, logging.NewNop())
	assert.Error(t, err)
	_, err = NewDriver(&fakeSource{}, Settings{Filters: []string{"ALL"}}, logging.NewNop())
	assert.Error(t, err)
}

func TestCancelledContextStopsAndAllowsRestart(t *testing.T) {
	src := &fakeSource{}
	d, err := NewDriver(src, Settings{Filters: []string{"ALL", "STAGE:washing"}, Interval: 10 * time.Millisecond, Rotating: true}, logging.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Start(ctx))
	assert.True(t, d.Snapshot().Rotating)

	cancel()
	testutil.AssertEventually(t, func() bool { return !d.Running() }, 2*time.Second, "loop should end with its context")

	snap := d.Snapshot()
	assert.False(t, snap.Rotating)
	assert.Zero(t, snap.TimeToNext)
	n := len(src.Calls())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, len(src.Calls()), "no ticks after cancel")
	assert.Error(t, d.Stop())

	require.NoError(t, d.Start(context.Background()))
	assert.True(t, d.Snapshot().Rotating)
	testutil.AssertEventually(t, func() bool { return len(src.Calls()) > n+1 }, 2*time.Second, "restarted driver should tick")
	require.NoError(t, d.Stop())
	assert.False(t, d.Running())
}
