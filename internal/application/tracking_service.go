package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/projection"
	"github.com/wms-platform/production-tracking/pkg/api"
	"github.com/wms-platform/production-tracking/pkg/logging"
	"github.com/wms-platform/production-tracking/pkg/metrics"
)

// TextSearchLimit caps text search results
const TextSearchLimit = 50

// TrackingService handles the work item use cases
type TrackingService struct {
	items       domain.WorkItemRepository
	escalations domain.DelayEscalationRepository
	pipeline    *domain.Pipeline
	scheduler   DeadlineScheduler
	metrics     *metrics.Metrics
	logger      *logging.Logger
	now         func() time.Time
}

// NewTrackingService creates a new TrackingService. A nil scheduler disables delay watches.
func NewTrackingService(
	items domain.WorkItemRepository,
	escalations domain.DelayEscalationRepository,
	pipeline *domain.Pipeline,
	scheduler DeadlineScheduler,
	m *metrics.Metrics,
	logger *logging.Logger,
	opts ...Option,
) *TrackingService {
	if scheduler == nil {
		scheduler = NoopScheduler{}
	}
	o := applyOptions(opts)
	return &TrackingService{
		items:       items,
		escalations: escalations,
		pipeline:    pipeline,
		scheduler:   scheduler,
		metrics:     m,
		logger:      logger.WithComponent("tracking-service"),
		now:         o.now,
	}
}

// Pipeline returns the active pipeline
func (s *TrackingService) Pipeline() *domain.Pipeline {
	return s.pipeline
}

// CreateItem registers a new work item
func (s *TrackingService) CreateItem(ctx context.Context, cmd CreateItemCommand) (*ItemDTO, error) {
	now := s.now()
	item, err := domain.NewWorkItem(s.pipeline, domain.NewWorkItemParams{
		ReferenceNumber:    cmd.ReferenceNumber,
		ItemCode:           cmd.ItemCode,
		Description:        cmd.Description,
		Quantity:           cmd.Quantity,
		PriorityTag:        cmd.PriorityTag,
		UpstreamFinishedAt: cmd.UpstreamFinishedAt,
	}, now)
	if err != nil {
		return nil, err
	}

	// Events are saved to outbox by repository in transaction
	if err := s.items.Create(ctx, item); err != nil {
		s.logger.WithError(err).Error("Failed to create work item", "itemCode", cmd.ItemCode)
		return nil, fmt.Errorf("failed to create work item: %w", err)
	}

	s.metrics.RecordItemCreated("intake")
	s.logger.Event(ctx, "item.created", map[string]any{
		"itemId":          item.ItemID,
		"referenceNumber": item.ReferenceNumber,
		"itemCode":        item.ItemCode,
		"quantity":        item.Quantity,
		"fastTrack":       s.pipeline.IsFastTrack(item.PriorityTag),
	})
	s.watch(ctx, item)

	return ToItemDTO(item, s.pipeline, now), nil
}

// GetItem returns an item with its urgency
func (s *TrackingService) GetItem(ctx context.Context, itemID string) (*ItemDTO, error) {
	item, err := s.load(ctx, itemID, nil)
	if err != nil {
		return nil, err
	}
	return ToItemDTO(item, s.pipeline, s.now()), nil
}

// Advance moves an item to the requested position
func (s *TrackingService) Advance(ctx context.Context, cmd AdvanceItemCommand) (*AdvanceResultDTO, error) {
	item, err := s.load(ctx, cmd.ItemID, cmd.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	target := domain.Position{Stage: strings.ToLower(strings.TrimSpace(cmd.Stage)), Phase: domain.Phase(strings.ToUpper(cmd.Phase))}
	if target.Stage == domain.StageFinished {
		target = domain.Finished()
	}

	now := s.now()
	updated, changed, err := item.Advance(s.pipeline, domain.AdvanceRequest{Target: target, OperatorID: cmd.OperatorID}, now)
	if err != nil {
		s.logger.Info("Advance refused", "itemId", cmd.ItemID, "from", item.Position().String(), "to", target.String(), "reason", err.Error())
		return nil, err
	}
	if !changed {
		return &AdvanceResultDTO{Item: ToItemDTO(updated, s.pipeline, now), Changed: false}, nil
	}

	if err := s.update(ctx, updated); err != nil {
		return nil, err
	}

	s.metrics.RecordStageTransition(target.Stage, string(target.Phase))
	if updated.Status == domain.ItemStatusFinished {
		s.metrics.RecordItemFinished()
	}
	s.logger.Info("Item advanced",
		"itemId", updated.ItemID,
		"from", item.Position().String(),
		"to", updated.Position().String(),
		"operatorId", cmd.OperatorID,
	)
	if updated.Stage != item.Stage {
		s.watch(ctx, updated)
	}

	return &AdvanceResultDTO{Item: ToItemDTO(updated, s.pipeline, now), Changed: true}, nil
}

// StartInspection opens the inspection on a gate
func (s *TrackingService) StartInspection(ctx context.Context, cmd StartInspectionCommand) (*InspectionResultDTO, error) {
	item, err := s.load(ctx, cmd.ItemID, cmd.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, created, err := item.StartInspection(s.pipeline, domain.StartInspectionRequest{
		Stage:           cmd.Stage,
		Boundary:        domain.Boundary(cmd.Boundary),
		ReferenceNumber: cmd.ReferenceNumber,
		EvaluatorCode:   cmd.EvaluatorCode,
	}, now)
	if err != nil {
		return nil, err
	}
	if !created {
		return &InspectionResultDTO{Item: ToItemDTO(updated, s.pipeline, now)}, nil
	}

	if err := s.update(ctx, updated); err != nil {
		return nil, err
	}

	s.metrics.RecordInspection(cmd.Stage, "started")
	s.logger.Audit(ctx, "inspection.started", "work_item", updated.ItemID, cmd.EvaluatorCode, map[string]any{
		"stage":           cmd.Stage,
		"boundary":        cmd.Boundary,
		"referenceNumber": cmd.ReferenceNumber,
	})

	return &InspectionResultDTO{Item: ToItemDTO(updated, s.pipeline, now), Changed: true}, nil
}

// ResolveInspection records an approval or rejection
func (s *TrackingService) ResolveInspection(ctx context.Context, cmd ResolveInspectionCommand) (*InspectionResultDTO, error) {
	item, err := s.load(ctx, cmd.ItemID, cmd.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, rework, err := item.ResolveInspection(s.pipeline, domain.ResolveInspectionRequest{
		Stage:           cmd.Stage,
		Boundary:        domain.Boundary(cmd.Boundary),
		Outcome:         domain.InspectionOutcome(cmd.Outcome),
		EvaluatorCode:   cmd.EvaluatorCode,
		Resolution:      domain.Resolution(cmd.Resolution),
		ResponsibleName: cmd.ResponsibleName,
		Reason:          cmd.Reason,
	}, now)
	if err != nil {
		return nil, err
	}
	if len(updated.GetDomainEvents()) == 0 {
		return &InspectionResultDTO{Item: ToItemDTO(updated, s.pipeline, now)}, nil
	}

	if err := s.persistDecision(ctx, updated, rework); err != nil {
		return nil, err
	}

	s.metrics.RecordInspection(cmd.Stage, strings.ToLower(cmd.Outcome))
	rec := updated.Inspection(cmd.Stage, domain.Boundary(cmd.Boundary))
	s.logger.Audit(ctx, "inspection.resolved", "work_item", updated.ItemID, rec.ResolvedBy, map[string]any{
		"stage":      cmd.Stage,
		"boundary":   cmd.Boundary,
		"outcome":    cmd.Outcome,
		"resolution": cmd.Resolution,
	})
	s.afterDecision(ctx, updated, rework, cmd.Stage, domain.Boundary(cmd.Boundary), cmd.Resolution)

	return s.inspectionResult(updated, rework, now), nil
}

// DecideRejection applies the follow-up to a rejected inspection
func (s *TrackingService) DecideRejection(ctx context.Context, cmd DecideRejectionCommand) (*InspectionResultDTO, error) {
	item, err := s.load(ctx, cmd.ItemID, cmd.ExpectedVersion)
	if err != nil {
		return nil, err
	}

	now := s.now()
	updated, rework, err := item.DecideRejection(s.pipeline, domain.RejectionDecision{
		Stage:           cmd.Stage,
		Boundary:        domain.Boundary(cmd.Boundary),
		Resolution:      domain.Resolution(cmd.Resolution),
		ResponsibleName: cmd.ResponsibleName,
		Reason:          cmd.Reason,
	}, now)
	if err != nil {
		return nil, err
	}
	if len(updated.GetDomainEvents()) == 0 {
		return &InspectionResultDTO{Item: ToItemDTO(updated, s.pipeline, now)}, nil
	}

	if err := s.persistDecision(ctx, updated, rework); err != nil {
		return nil, err
	}
	s.afterDecision(ctx, updated, rework, cmd.Stage, domain.Boundary(cmd.Boundary), cmd.Resolution)

	return s.inspectionResult(updated, rework, now), nil
}

func (s *TrackingService) persistDecision(ctx context.Context, updated, rework *domain.WorkItem) error {
	if rework == nil {
		return s.update(ctx, updated)
	}
	if err := s.items.SaveRework(ctx, updated, rework); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.RecordVersionConflict("work_item")
			return err
		}
		s.logger.WithError(err).Error("Failed to save rework", "itemId", updated.ItemID)
		return fmt.Errorf("failed to save rework: %w", err)
	}
	return nil
}

func (s *TrackingService) afterDecision(ctx context.Context, updated, rework *domain.WorkItem, stage string, boundary domain.Boundary, resolution string) {
	switch domain.Resolution(resolution) {
	case domain.ResolutionOverrideReleased:
		rec := updated.Inspection(stage, boundary)
		s.metrics.RecordOverrideRelease()
		s.logger.Audit(ctx, "inspection.override_released", "work_item", updated.ItemID, rec.ResponsibleName, map[string]any{
			"stage":  stage,
			"reason": rec.Reason,
		})
	case domain.ResolutionReworkRequested:
		if rework == nil {
			return
		}
		s.metrics.RecordRework()
		s.metrics.RecordItemCreated("rework")
		rec := updated.Inspection(stage, boundary)
		s.logger.Audit(ctx, "inspection.rework_requested", "work_item", updated.ItemID, rec.ResponsibleName, map[string]any{
			"stage":        stage,
			"reason":       rec.Reason,
			"reworkItemId": rework.ItemID,
			"reworkCycle":  rework.ReworkCycle,
		})
		s.watch(ctx, rework)
	}
}

func (s *TrackingService) inspectionResult(updated, rework *domain.WorkItem, now time.Time) *InspectionResultDTO {
	return &InspectionResultDTO{
		Item:       ToItemDTO(updated, s.pipeline, now),
		ReworkItem: ToItemDTO(rework, s.pipeline, now),
		Changed:    true,
	}
}

// EscalateDelay escalates an item that is late in its current stage. An item
// is escalated at most once per stage; time never changes item state.
func (s *TrackingService) EscalateDelay(ctx context.Context, cmd DelayCheckCommand) (*DelayCheckDTO, error) {
	item, err := s.load(ctx, cmd.ItemID, nil)
	if err != nil {
		return nil, err
	}

	now := s.now()
	result := &DelayCheckDTO{
		ItemID:  item.ItemID,
		Stage:   item.Stage,
		Open:    item.IsOpen(),
		Urgency: domain.ComputeUrgency(item, s.pipeline, now),
	}
	result.Level = result.Urgency.Level

	if !result.Open || (cmd.Stage != "" && cmd.Stage != item.Stage) {
		return result, nil
	}

	escalation, late := domain.EscalateIfLate(item, s.pipeline, now)
	if !late {
		return result, nil
	}

	created, err := s.escalations.Record(ctx, escalation)
	if err != nil {
		s.logger.WithError(err).Error("Failed to record delay escalation", "itemId", item.ItemID, "stage", item.Stage)
		return nil, fmt.Errorf("failed to record delay escalation: %w", err)
	}
	result.Escalated = created
	result.AlreadyEscalated = !created

	if created {
		s.metrics.RecordDelayEscalation(item.Stage)
		s.logger.Event(ctx, "item.delay_escalated", map[string]any{
			"itemId":   item.ItemID,
			"stage":    item.Stage,
			"deadline": escalation.Deadline,
		})
	}
	return result, nil
}

// SearchHistory runs the paginated history search
func (s *TrackingService) SearchHistory(ctx context.Context, q HistoryQuery) (*api.PageResponse[ItemDTO], error) {
	page := api.Normalize(api.PageRequest{Page: q.Page, PageSize: q.PageSize})
	if q.From != nil && q.To != nil && q.To.Before(*q.From) {
		return nil, fmt.Errorf("%w: 'to' is before 'from'", domain.ErrValidation)
	}

	items, total, err := s.items.Search(ctx, domain.HistoryQuery{
		ReferenceNumber: strings.TrimSpace(q.ReferenceNumber),
		ItemCode:        strings.TrimSpace(q.ItemCode),
		Stage:           strings.TrimSpace(q.Stage),
		From:            q.From,
		To:              q.To,
		Offset:          page.Offset(),
		Limit:           page.PageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}

	resp := api.NewPageResponse(ToItemDTOs(items, s.pipeline, s.now()), page.Page, page.PageSize, total)
	return &resp, nil
}

// SearchText finds items by code, reference or description
func (s *TrackingService) SearchText(ctx context.Context, text string) ([]ItemDTO, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: search text is required", domain.ErrValidation)
	}
	items, err := s.items.SearchText(ctx, text, TextSearchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	return ToItemDTOs(projection.FilterByText(items, text), s.pipeline, s.now()), nil
}

func (s *TrackingService) load(ctx context.Context, itemID string, expectedVersion *int64) (*domain.WorkItem, error) {
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.logger.WithError(err).Error("Failed to get work item", "itemId", itemID)
		return nil, fmt.Errorf("failed to get work item: %w", err)
	}
	if expectedVersion != nil && *expectedVersion != item.Version {
		s.metrics.RecordVersionConflict("work_item")
		return nil, fmt.Errorf("%w: item %s is at version %d", domain.ErrConflict, itemID, item.Version)
	}
	return item, nil
}

func (s *TrackingService) update(ctx context.Context, item *domain.WorkItem) error {
	if err := s.items.Update(ctx, item); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			s.metrics.RecordVersionConflict("work_item")
			return err
		}
		s.logger.WithError(err).Error("Failed to save work item", "itemId", item.ItemID)
		return fmt.Errorf("failed to save work item: %w", err)
	}
	return nil
}

// watch starts the delay watch for the item's current stage; failures are logged only
func (s *TrackingService) watch(ctx context.Context, item *domain.WorkItem) {
	if !item.IsOpen() || s.pipeline.AllowanceFor(item.ItemCode, item.Stage) <= 0 {
		return
	}
	if err := s.scheduler.ScheduleDeadlineWatch(ctx, item.ItemID, item.Stage); err != nil {
		s.logger.WithError(err).Warn("Failed to schedule deadline watch", "itemId", item.ItemID, "stage", item.Stage)
	}
}
