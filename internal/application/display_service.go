package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/rotation"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
)

// DisplayService manages display sessions and serves their frames
type DisplayService struct {
	repo     domain.DisplaySessionRepository
	frames   rotation.FrameSource
	pipeline *domain.Pipeline
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewDisplayService creates a new DisplayService
func NewDisplayService(
	repo domain.DisplaySessionRepository,
	frames rotation.FrameSource,
	pipeline *domain.Pipeline,
	m *metrics.Metrics,
	logger *logging.Logger,
	opts ...Option,
) *DisplayService {
	o := applyOptions(opts)
	return &DisplayService{
		repo:     repo,
		frames:   frames,
		pipeline: pipeline,
		metrics:  m,
		logger:   logger.WithComponent("display-service"),
		now:      o.now,
	}
}

// Get returns the session, or the pipeline defaults if it was never saved
func (s *DisplayService) Get(ctx context.Context, sessionID string) (*DisplaySessionDTO, error) {
	session, persisted, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &DisplaySessionDTO{DisplaySession: *session, Persisted: persisted}, nil
}

// Configure replaces the filters and interval of a session
func (s *DisplayService) Configure(ctx context.Context, cmd ConfigureDisplayCommand) (*DisplaySessionDTO, error) {
	session, _, err := s.load(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	updated, err := session.Configure(s.pipeline, domain.DisplayConfig{
		Filters:         cmd.Filters,
		IntervalSeconds: cmd.IntervalSeconds,
		RotationEnabled: cmd.RotationEnabled,
		UpdatedBy:       cmd.UpdatedBy,
	}, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, updated); err != nil {
		return nil, err
	}

	s.logger.Info("Display configured",
		"sessionId", updated.SessionID,
		"filters", updated.Filters,
		"intervalSeconds", updated.IntervalSeconds,
		"updatedBy", updated.UpdatedBy,
	)
	return &DisplaySessionDTO{DisplaySession: *updated, Persisted: true}, nil
}

// SetRotation pauses or resumes a display without touching its filters
func (s *DisplayService) SetRotation(ctx context.Context, cmd SetRotationCommand) (*DisplaySessionDTO, error) {
	session, persisted, err := s.load(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}
	if persisted && session.RotationEnabled == cmd.Enabled {
		return &DisplaySessionDTO{DisplaySession: *session, Persisted: true}, nil
	}

	updated := session.SetRotation(cmd.Enabled, cmd.UpdatedBy, s.now())
	if err := s.save(ctx, updated); err != nil {
		return nil, err
	}

	s.logger.Info("Display rotation changed", "sessionId", updated.SessionID, "rotationEnabled", updated.RotationEnabled)
	return &DisplaySessionDTO{DisplaySession: *updated, Persisted: true}, nil
}

// Frame returns the frame for the filter at index in the session's rotation
func (s *DisplayService) Frame(ctx context.Context, sessionID string, index int) (*FrameDTO, error) {
	session, _, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	n := len(session.Filters)
	if n > 0 {
		index = ((index % n) + n) % n
	}

	frame, err := s.frames.Frame(ctx, session.FilterAt(index))
	if err != nil {
		return nil, err
	}

	return &FrameDTO{
		SessionID:       session.SessionID,
		Index:           index,
		FilterCount:     n,
		IntervalSeconds: session.IntervalSeconds,
		RotationEnabled: session.RotationEnabled,
		Frame:           *frame,
	}, nil
}

func (s *DisplayService) load(ctx context.Context, sessionID string) (*domain.DisplaySession, bool, error) {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err == nil {
		return session, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WithError(err).Error("Failed to get display session", "sessionId", sessionID)
		return nil, false, fmt.Errorf("failed to get display session: %w", err)
	}

	session, err = domain.NewDisplaySession(sessionID, s.pipeline, s.now())
	if err != nil {
		return nil, false, err
	}
	return session, false, nil
}

func (s *DisplayService) save(ctx context.Context, session *domain.DisplaySession) error {
	if err := s.repo.Save(ctx, session); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.RecordVersionConflict("display_session")
			return err
		}
		s.logger.WithError(err).Error("Failed to save display session", "sessionId", session.SessionID)
		return fmt.Errorf("failed to save display session: %w", err)
	}
	return nil
}
