package application

import (
	"context"
	"fmt"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/pkg/logging"
)

// BoardService projects boards, display frames and the dashboard from stored state
type BoardService struct {
	items    domain.WorkItemRepository
	requests domain.WarehouseRequestRepository
	pipeline *domain.Pipeline
	logger   *logging.Logger
	now      func() time.Time
}

// NewBoardService creates a new BoardService
func NewBoardService(
	items domain.WorkItemRepository,
	requests domain.WarehouseRequestRepository,
	pipeline *domain.Pipeline,
	logger *logging.Logger,
	opts ...Option,
) *BoardService {
	o := applyOptions(opts)
	return &BoardService{
		items:    items,
		requests: requests,
		pipeline: pipeline,
		logger:   logger.WithComponent("board-service"),
		now:      o.now,
	}
}

// Board projects the queue board for a filter
func (s *BoardService) Board(ctx context.Context, q BoardQuery) (*projection.Board, error) {
	filter, err := s.pipeline.ParseFilter(q.Filter)
	if err != nil {
		return nil, err
	}

	items, err := s.boardItems(ctx, q.IncludeFinished && filter.Kind != domain.FilterKindStage)
	if err != nil {
		return nil, err
	}

	board := projection.Project(items, s.pipeline, projection.ViewOptions{
		Filter:          filter,
		IncludeFinished: q.IncludeFinished,
	}, s.now())
	return &board, nil
}

// Frame builds what a display shows for one raw filter
func (s *BoardService) Frame(ctx context.Context, rawFilter string) (*projection.Frame, error) {
	filter, err := s.pipeline.ParseFilter(rawFilter)
	if err != nil {
		return nil, err
	}

	var items []*domain.WorkItem
	if filter.Kind != domain.FilterKindWarehouse {
		if items, err = s.boardItems(ctx, false); err != nil {
			return nil, err
		}
	}

	var requests []*domain.WarehouseRequest
	if filter.Kind == domain.FilterKindWarehouse {
		requests, err = s.requests.List(ctx, domain.WarehouseRequestFilter{
			Type:   filter.Value,
			Status: domain.RequestStatusPending,
		})
		if err != nil {
			s.logger.WithError(err).Error("Failed to list warehouse requests", "filter", filter.String())
			return nil, fmt.Errorf("failed to list warehouse requests: %w", err)
		}
	}

	frame := projection.BuildFrame(items, requests, s.pipeline, filter, s.now())
	return &frame, nil
}

// Dashboard computes the KPIs of the current production day
func (s *BoardService) Dashboard(ctx context.Context) (*projection.Dashboard, error) {
	now := s.now()
	day := projection.CurrentDay(s.pipeline, now)

	touched, err := s.items.FindUpdatedSince(ctx, day.Start)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load items for dashboard")
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	open, err := s.items.FindOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load open items: %w", err)
	}

	requests, err := s.requests.List(ctx, domain.WarehouseRequestFilter{Status: domain.RequestStatusPending})
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouse requests: %w", err)
	}

	dashboard := projection.BuildDashboard(mergeItems(open, touched), requests, s.pipeline, day, now)
	return &dashboard, nil
}

func (s *BoardService) boardItems(ctx context.Context, includeFinished bool) ([]*domain.WorkItem, error) {
	items, err := s.items.FindOpen(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load open items")
		return nil, fmt.Errorf("failed to load open items: %w", err)
	}
	if !includeFinished {
		return items, nil
	}

	finished, err := s.items.FindRecentlyFinished(ctx, s.pipeline.FinishedLimit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load finished items")
		return nil, fmt.Errorf("failed to load finished items: %w", err)
	}
	return append(items, finished...), nil
}

// mergeItems concatenates item lists, keeping the first copy of each id
func mergeItems(lists ...[]*domain.WorkItem) []*domain.WorkItem {
	seen := make(map[string]struct{})
	var out []*domain.WorkItem
	for _, list := range lists {
		for _, item := range list {
			if _, ok := seen[item.ItemID]; ok {
				continue
			}
			seen[item.ItemID] = struct{}{}
			out = append(out, item)
		}
	}
	return out
}
