package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
)

// WarehouseService handles warehouse request operations
type WarehouseService struct {
	repo     domain.WarehouseRequestRepository
	pipeline *domain.Pipeline
	metrics  *metrics.Metrics
	logger   *logging.Logger
	now      func() time.Time
}

// NewWarehouseService creates a new WarehouseService
func NewWarehouseService(
	repo domain.WarehouseRequestRepository,
	pipeline *domain.Pipeline,
	m *metrics.Metrics,
	logger *logging.Logger,
	opts ...Option,
) *WarehouseService {
	o := applyOptions(opts)
	return &WarehouseService{
		repo:     repo,
		pipeline: pipeline,
		metrics:  m,
		logger:   logger.WithComponent("warehouse-service"),
		now:      o.now,
	}
}

// Create logs a new warehouse request
func (s *WarehouseService) Create(ctx context.Context, cmd CreateWarehouseRequestCommand) (*WarehouseRequestDTO, error) {
	now := s.now()
	req, err := domain.NewWarehouseRequest(domain.NewWarehouseRequestParams{
		Type:      cmd.Type,
		ItemCode:  cmd.ItemCode,
		Quantity:  cmd.Quantity,
		Requester: cmd.Requester,
	}, s.pipeline.Warehouse.Types, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, req); err != nil {
		s.logger.WithError(err).Error("Failed to create warehouse request", "type", req.Type)
		return nil, fmt.Errorf("failed to create warehouse request: %w", err)
	}

	s.metrics.RecordWarehouseRequest(req.Type, "created")
	s.logger.Info("Warehouse request created", "requestId", req.RequestID, "type", req.Type, "itemCode", req.ItemCode)

	return ToWarehouseRequestDTO(req, s.pipeline, now), nil
}

// Complete marks a request fulfilled
func (s *WarehouseService) Complete(ctx context.Context, cmd CompleteWarehouseRequestCommand) (*WarehouseRequestDTO, error) {
	req, err := s.repo.FindByID(ctx, cmd.RequestID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get warehouse request: %w", err)
	}
	if cmd.ExpectedVersion != nil && *cmd.ExpectedVersion != req.Version {
		s.metrics.RecordVersionConflict("warehouse_request")
		return nil, fmt.Errorf("%w: request %s is at version %d", domain.ErrConflict, req.RequestID, req.Version)
	}

	now := s.now()
	completed, err := req.Complete(cmd.CompletedBy, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, completed); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.RecordVersionConflict("warehouse_request")
			return nil, err
		}
		s.logger.WithError(err).Error("Failed to complete warehouse request", "requestId", req.RequestID)
		return nil, fmt.Errorf("failed to complete warehouse request: %w", err)
	}

	s.metrics.RecordWarehouseRequest(completed.Type, "completed")
	s.logger.Info("Warehouse request completed", "requestId", completed.RequestID, "completedBy", completed.CompletedBy)

	return ToWarehouseRequestDTO(completed, s.pipeline, now), nil
}

// List returns requests filtered by type and status, oldest first unless
// order is "newest"
func (s *WarehouseService) List(ctx context.Context, q ListWarehouseRequestsQuery) ([]WarehouseRequestDTO, error) {
	filter := domain.WarehouseRequestFilter{
		Type:   strings.ToUpper(strings.TrimSpace(q.Type)),
		Status: domain.RequestStatus(strings.ToUpper(q.Status)),
	}
	if filter.Type != "" && !s.pipeline.IsWarehouseType(filter.Type) {
		return nil, fmt.Errorf("%w: unknown warehouse request type %q", domain.ErrValidation, q.Type)
	}

	requests, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouse requests: %w", err)
	}

	if q.Order == "newest" {
		domain.SortNewestFirst(requests)
	} else {
		domain.SortOldestFirst(requests)
	}

	now := s.now()
	out := make([]WarehouseRequestDTO, 0, len(requests))
	for _, r := range requests {
		out = append(out, *ToWarehouseRequestDTO(r, s.pipeline, now))
	}
	return out, nil
}
