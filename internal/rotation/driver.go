// Package rotation cycles a display through its configured filters.
package rotation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/pkg/logging"
)

// FrameSource produces the frame for one filter
type FrameSource interface {
	Frame(ctx context.Context, filter string) (*projection.Frame, error)
}

// Settings is the rotation configuration a driver runs with
type Settings struct {
	Filters  []string
	Interval time.Duration
	Rotating bool
}

// SettingsFromSession converts a persisted display session
func SettingsFromSession(s *domain.DisplaySession) Settings {
	return Settings{
		Filters:  append([]string(nil), s.Filters...),
		Interval: s.Interval(),
		Rotating: s.RotationEnabled,
	}
}

// Snapshot is the driver state at a point in time
type Snapshot struct {
	Filter     string
	Index      int
	Rotating   bool
	TimeToNext time.Duration
	Frame      *projection.Frame
	Err        error
}

// Driver owns a single goroutine that advances the filter index on every
// tick and refreshes the frame for the current filter
type Driver struct {
	source FrameSource
	logger *logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	settings  Settings
	index     int
	nextAt    time.Time
	frame     *projection.Frame
	lastErr   error
	running   bool
	stopCh    chan struct{}
	stoppedCh chan struct{}
	resetCh   chan time.Duration
	updates   chan Snapshot
}

// Option configures a Driver
type Option func(*Driver)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// NewDriver creates a stopped driver
func NewDriver(source FrameSource, settings Settings, logger *logging.Logger, opts ...Option) (*Driver, error) {
	if err := validate(settings); err != nil {
		return nil, err
	}
	d := &Driver{
		source:   source,
		logger:   logger.WithComponent("rotation-driver"),
		now:      time.Now,
		settings: copySettings(settings),
		resetCh:  make(chan time.Duration, 1),
		updates:  make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.nextAt = d.now().Add(settings.Interval)
	return d, nil
}

func validate(s Settings) error {
	if len(s.Filters) == 0 {
		return fmt.Errorf("%w: rotation needs at least one filter", domain.ErrValidation)
	}
	if s.Interval <= 0 {
		return fmt.Errorf("%w: rotation interval must be positive", domain.ErrValidation)
	}
	return nil
}

func copySettings(s Settings) Settings {
	s.Filters = append([]string(nil), s.Filters...)
	return s
}

// Start fetches the first frame and launches the loop. The loop ends on Stop
// or when ctx is done, after which Start may be called again.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("rotation driver already running")
	}
	d.running = true
	stopCh, stoppedCh := make(chan struct{}), make(chan struct{})
	d.stopCh, d.stoppedCh = stopCh, stoppedCh
	interval := d.settings.Interval
	d.nextAt = d.now().Add(interval)
	d.mu.Unlock()

	d.logger.Info("Starting rotation driver", "interval", interval)

	d.refresh(ctx)
	go d.run(ctx, interval, stopCh, stoppedCh)
	return nil
}

// Stop ends the loop. The last filter and frame stay available.
func (d *Driver) Stop() error {
	d.mu.Lock()
	if !d.running || d.stopCh == nil {
		d.mu.Unlock()
		return fmt.Errorf("rotation driver not running")
	}
	stopCh, stoppedCh := d.stopCh, d.stoppedCh
	d.stopCh = nil
	d.mu.Unlock()

	close(stopCh)
	<-stoppedCh

	d.logger.Info("Rotation driver stopped")
	return nil
}

func (d *Driver) run(ctx context.Context, interval time.Duration, stopCh, stoppedCh chan struct{}) {
	defer func() {
		d.mu.Lock()
		if d.stoppedCh == stoppedCh {
			d.running = false
			d.stopCh = nil
		}
		snap := d.snapshotLocked()
		d.mu.Unlock()
		close(stoppedCh)
		d.publish(snap)
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.Tick(ctx)
		case next := <-d.resetCh:
			ticker.Reset(next)
		case <-stopCh:
			return
		case <-ctx.Done():
			d.logger.Info("Rotation driver context done", "error", ctx.Err())
			return
		}
	}
}

// Running reports whether the loop is alive
func (d *Driver) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// Tick advances to the next filter when rotating and refreshes the frame.
// While paused it only refreshes the current filter.
func (d *Driver) Tick(ctx context.Context) {
	d.mu.Lock()
	if d.settings.Rotating {
		d.index = (d.index + 1) % len(d.settings.Filters)
	}
	d.nextAt = d.now().Add(d.settings.Interval)
	d.mu.Unlock()

	d.refresh(ctx)
}

// Refresh reloads the frame for the current filter without rotating
func (d *Driver) Refresh(ctx context.Context) {
	d.refresh(ctx)
}

func (d *Driver) refresh(ctx context.Context) {
	d.mu.Lock()
	filter := d.settings.Filters[d.index]
	d.mu.Unlock()

	frame, err := d.source.Frame(ctx, filter)
	if err != nil {
		d.logger.Warn("Failed to load frame", "filter", filter, "error", err)
	}

	d.mu.Lock()
	// a reconfigure may have moved the index while the frame loaded
	if d.settings.Filters[d.index] == filter {
		if err == nil {
			d.frame = frame
		}
		d.lastErr = err
	}
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.publish(snap)
}

func (d *Driver) publish(snap Snapshot) {
	select {
	case d.updates <- snap:
	default:
		// drop the stale snapshot and keep the newest
		select {
		case <-d.updates:
		default:
		}
		select {
		case d.updates <- snap:
		default:
		}
	}
}

// Updates delivers the latest snapshot after every refresh
func (d *Driver) Updates() <-chan Snapshot {
	return d.updates
}

// Pause keeps the current filter on screen
func (d *Driver) Pause() {
	d.setRotating(false)
}

// Resume restarts rotation from the current filter
func (d *Driver) Resume() {
	d.setRotating(true)
}

func (d *Driver) setRotating(on bool) {
	d.mu.Lock()
	d.settings.Rotating = on
	d.nextAt = d.now().Add(d.settings.Interval)
	interval := d.settings.Interval
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.reset(interval)
	d.publish(snap)
}

// Reconfigure swaps in new settings. The current filter is kept when it is
// still part of the rotation, otherwise rotation restarts at the first one.
func (d *Driver) Reconfigure(ctx context.Context, s Settings) error {
	if err := validate(s); err != nil {
		return err
	}

	d.mu.Lock()
	current := d.settings.Filters[d.index]
	d.settings = copySettings(s)
	d.index = 0
	for i, f := range d.settings.Filters {
		if f == current {
			d.index = i
			break
		}
	}
	d.nextAt = d.now().Add(s.Interval)
	changed := d.settings.Filters[d.index] != current
	d.mu.Unlock()

	d.reset(s.Interval)
	if changed {
		d.refresh(ctx)
	}
	return nil
}

func (d *Driver) reset(interval time.Duration) {
	select {
	case d.resetCh <- interval:
	default:
		select {
		case <-d.resetCh:
		default:
		}
		select {
		case d.resetCh <- interval:
		default:
		}
	}
}

// Snapshot returns the current state
func (d *Driver) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

// snapshotLocked reports rotation only while the loop is alive; a stopped
// driver has no timer to count down.
func (d *Driver) snapshotLocked() Snapshot {
	rotating := d.running && d.settings.Rotating
	ttn := d.nextAt.Sub(d.now())
	if ttn < 0 || !rotating {
		ttn = 0
	}
	return Snapshot{
		Filter:     d.settings.Filters[d.index],
		Index:      d.index,
		Rotating:   rotating,
		TimeToNext: ttn,
		Frame:      d.frame,
		Err:        d.lastErr,
	}
}
