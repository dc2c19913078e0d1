package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/internal/rotation"
)

type fakeRotator struct {
	mu        sync.Mutex
	snap      rotation.Snapshot
	updates   chan rotation.Snapshot
	ticks     int
	refreshes int
}

func newFakeRotator() *fakeRotator {
	return &fakeRotator{
		snap:    rotation.Snapshot{Filter: "ALL", Rotating: true, TimeToNext: 30 * time.Second},
		updates: make(chan rotation.Snapshot, 1),
	}
}

func (f *fakeRotator) Updates() <-chan rotation.Snapshot { return f.updates }

func (f *fakeRotator) Snapshot() rotation.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeRotator) Pause() {
	f.mu.Lock()
	f.snap.Rotating = false
	f.mu.Unlock()
}

func (f *fakeRotator) Resume() {
	f.mu.Lock()
	f.snap.Rotating = true
	f.mu.Unlock()
}

func (f *fakeRotator) Tick(ctx context.Context) {
	f.mu.Lock()
	f.ticks++
	f.mu.Unlock()
}

func (f *fakeRotator) Refresh(ctx context.Context) {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
}

func press(m *Model, keys string) tea.Cmd {
	var msg tea.KeyMsg
	switch keys {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)}
	}
	_, cmd := m.Update(msg)
	return cmd
}

func TestModel_QuitKeys(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			m := NewModel(context.Background(), newFakeRotator(), 1)
			cmd := press(m, k)
			require.NotNil(t, cmd)
			assert.True(t, m.Quitting())
			assert.Empty(t, m.View())
		})
	}
}

func TestModel_SnapshotReplacesView(t *testing.T) {
	r := newFakeRotator()
	m := NewModel(context.Background(), r, 2)

	snap := rotation.Snapshot{
		Filter:   "WAREHOUSE:PROFILE",
		Index:    1,
		Rotating: true,
		Frame:    &projection.Frame{Filter: "WAREHOUSE:PROFILE"},
	}
	_, cmd := m.Update(snapshotMsg(snap))

	assert.NotNil(t, cmd, "model keeps listening for snapshots")
	view := m.View()
	assert.Contains(t, view, "PROFILE")
	assert.Contains(t, view, "2/2")
	assert.Contains(t, view, "No pending requests")
}

func TestModel_WaitForSnapshotDeliversDriverUpdates(t *testing.T) {
	r := newFakeRotator()
	m := NewModel(context.Background(), r, 1)

	r.updates <- rotation.Snapshot{Filter: "STAGE:washing"}
	msg := m.waitForSnapshot()()

	snap, ok := msg.(snapshotMsg)
	require.True(t, ok)
	assert.Equal(t, "STAGE:washing", snap.Filter)
}

func TestModel_TogglePausesAndSyncs(t *testing.T) {
	r := newFakeRotator()
	var synced []bool
	m := NewModel(context.Background(), r, 1, WithRotationSync(func(ctx context.Context, enabled bool) error {
		synced = append(synced, enabled)
		return nil
	}))

	cmd := press(m, " ")
	require.NotNil(t, cmd)
	cmd()
	assert.False(t, r.Snapshot().Rotating)
	assert.Contains(t, m.View(), "paused")

	cmd = press(m, "p")
	require.NotNil(t, cmd)
	cmd()
	assert.True(t, r.Snapshot().Rotating)

	assert.Equal(t, []bool{false, true}, synced)
}

func TestModel_SyncFailureIsShown(t *testing.T) {
	m := NewModel(context.Background(), newFakeRotator(), 1, WithRotationSync(func(ctx context.Context, enabled bool) error {
		return errors.New("409 CONFLICT")
	}))

	cmd := press(m, " ")
	m.Update(cmd())

	assert.Contains(t, m.View(), "could not save rotation state: 409 CONFLICT")
}

func TestModel_NextAndRefresh(t *testing.T) {
	r := newFakeRotator()
	m := NewModel(context.Background(), r, 3)

	press(m, "n")()
	press(m, "r")()

	assert.Equal(t, 1, r.ticks)
	assert.Equal(t, 1, r.refreshes)
}

func TestModel_ClockUpdatesCountdown(t *testing.T) {
	r := newFakeRotator()
	m := NewModel(context.Background(), r, 1)

	r.mu.Lock()
	r.snap.TimeToNext = 7 * time.Second
	r.mu.Unlock()

	_, cmd := m.Update(clockMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "next in 7s")
}
