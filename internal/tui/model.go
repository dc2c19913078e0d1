// Package tui is the terminal TV board. It renders the frames a rotation
// driver produces and lets the operator pause, skip and refresh.
package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wms-platform/production-tracking/internal/rotation"
)

// Rotator is the part of rotation.Driver the board drives
type Rotator interface {
	Updates() <-chan rotation.Snapshot
	Snapshot() rotation.Snapshot
	Pause()
	Resume()
	Tick(ctx context.Context)
	Refresh(ctx context.Context)
}

// RotationSync persists pause and resume so other screens on the same
// session follow along
type RotationSync func(ctx context.Context, enabled bool) error

type keyMap struct {
	Quit    key.Binding
	Toggle  key.Binding
	Next    key.Binding
	Refresh key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c", "esc")),
		Toggle:  key.NewBinding(key.WithKeys(" ", "p")),
		Next:    key.NewBinding(key.WithKeys("n", "right")),
		Refresh: key.NewBinding(key.WithKeys("r")),
	}
}

type snapshotMsg rotation.Snapshot

type clockMsg time.Time

type syncErrMsg struct{ err error }

// Model is the bubbletea model for the TV board
type Model struct {
	ctx         context.Context
	rotator     Rotator
	sync        RotationSync
	renderer    *Renderer
	keys        keyMap
	filterCount int

	snap     rotation.Snapshot
	syncErr  error
	width    int
	height   int
	quitting bool
}

// Option configures a Model
type Option func(*Model)

// WithRotationSync pushes pause and resume to the display session
func WithRotationSync(fn RotationSync) Option {
	return func(m *Model) { m.sync = fn }
}

// NewModel builds the board model around a running rotator
func NewModel(ctx context.Context, r Rotator, filterCount int, opts ...Option) *Model {
	m := &Model{
		ctx:         ctx,
		rotator:     r,
		renderer:    NewRenderer(),
		keys:        defaultKeys(),
		filterCount: filterCount,
		snap:        r.Snapshot(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForSnapshot(), clockTick())
}

func (m *Model) waitForSnapshot() tea.Cmd {
	updates := m.rotator.Updates()
	return func() tea.Msg {
		select {
		case snap := <-updates:
			return snapshotMsg(snap)
		case <-m.ctx.Done():
			return tea.Quit()
		}
	}
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case snapshotMsg:
		m.snap = rotation.Snapshot(msg)
		return m, m.waitForSnapshot()

	case clockMsg:
		// the countdown moves even when no frame arrives
		m.snap.TimeToNext = m.rotator.Snapshot().TimeToNext
		return m, clockTick()

	case syncErrMsg:
		m.syncErr = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Toggle):
		enabled := !m.snap.Rotating
		if enabled {
			m.rotator.Resume()
		} else {
			m.rotator.Pause()
		}
		m.snap = m.rotator.Snapshot()
		return m, m.pushRotation(enabled)

	case key.Matches(msg, m.keys.Next):
		r, ctx := m.rotator, m.ctx
		return m, func() tea.Msg {
			r.Tick(ctx)
			return nil
		}

	case key.Matches(msg, m.keys.Refresh):
		r, ctx := m.rotator, m.ctx
		return m, func() tea.Msg {
			r.Refresh(ctx)
			return nil
		}
	}
	return m, nil
}

func (m *Model) pushRotation(enabled bool) tea.Cmd {
	if m.sync == nil {
		return nil
	}
	sync, ctx := m.sync, m.ctx
	return func() tea.Msg {
		return syncErrMsg{err: sync(ctx, enabled)}
	}
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	body := m.renderer.Frame(m.snap.Frame, m.width)
	footer := StatusLine(m.snap, m.filterCount)
	if m.syncErr != nil {
		footer += "\n" + StyleRed.Render("could not save rotation state: "+m.syncErr.Error())
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, footer)
}

// Quitting reports whether the user asked to leave
func (m *Model) Quitting() bool {
	return m.quitting
}

// Run starts the board in the alternate screen until the user quits
func Run(ctx context.Context, r Rotator, filterCount int, opts ...Option) error {
	p := tea.NewProgram(NewModel(ctx, r, filterCount, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
