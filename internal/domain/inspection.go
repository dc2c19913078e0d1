package domain

import (
	"fmt"
	"strings"
	"time"
)

// InspectionStatus is the record status of an inspection
type InspectionStatus string

const (
	InspectionPending  InspectionStatus = "PENDING"
	InspectionResolved InspectionStatus = "RESOLVED"
)

// InspectionOutcome is the evaluator's verdict
type InspectionOutcome string

const (
	OutcomeApproved InspectionOutcome = "APPROVED"
	OutcomeRejected InspectionOutcome = "REJECTED"
)

// Resolution is the follow-up decision on a rejection
type Resolution string

const (
	ResolutionReworkRequested  Resolution = "REWORK_REQUESTED"
	ResolutionOverrideReleased Resolution = "OVERRIDE_RELEASED"
)

// InspectionState is the derived state of a gate
type InspectionState string

const (
	InspectionStateNotStarted       InspectionState = "NOT_STARTED"
	InspectionStatePending          InspectionState = "PENDING"
	InspectionStateApproved         InspectionState = "APPROVED"
	InspectionStateRejected         InspectionState = "REJECTED"
	InspectionStateReworkRequested  InspectionState = "REWORK_REQUESTED"
	InspectionStateOverrideReleased InspectionState = "OVERRIDE_RELEASED"
)

// Inspection is the quality check record for one gate of one item
type Inspection struct {
	Stage           string            `bson:"stage" json:"stage"`
	Boundary        Boundary          `bson:"boundary" json:"boundary"`
	ReferenceNumber string            `bson:"referenceNumber,omitempty" json:"referenceNumber,omitempty"`
	EvaluatorCode   string            `bson:"evaluatorCode,omitempty" json:"evaluatorCode,omitempty"`
	Status          InspectionStatus  `bson:"status" json:"status"`
	Outcome         InspectionOutcome `bson:"outcome,omitempty" json:"outcome,omitempty"`
	Resolution      Resolution        `bson:"resolution,omitempty" json:"resolution,omitempty"`
	ResponsibleName string            `bson:"responsibleName,omitempty" json:"responsibleName,omitempty"`
	Reason          string            `bson:"reason,omitempty" json:"reason,omitempty"`
	ResolvedBy      string            `bson:"resolvedBy,omitempty" json:"resolvedBy,omitempty"`
	ReworkItemID    string            `bson:"reworkItemId,omitempty" json:"reworkItemId,omitempty"`
	StartedAt       time.Time         `bson:"startedAt" json:"startedAt"`
	ResolvedAt      *time.Time        `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	DecidedAt       *time.Time        `bson:"decidedAt,omitempty" json:"decidedAt,omitempty"`
}

// State derives the protocol state from the record
func (in *Inspection) State() InspectionState {
	if in == nil {
		return InspectionStateNotStarted
	}
	if in.Status == InspectionPending {
		return InspectionStatePending
	}
	if in.Outcome == OutcomeApproved {
		return InspectionStateApproved
	}
	switch in.Resolution {
	case ResolutionReworkRequested:
		return InspectionStateReworkRequested
	case ResolutionOverrideReleased:
		return InspectionStateOverrideReleased
	}
	return InspectionStateRejected
}

// Cleared reports whether the gate may be passed
func (in *Inspection) Cleared() bool {
	s := in.State()
	return s == InspectionStateApproved || s == InspectionStateOverrideReleased
}

// StartInspectionRequest opens an inspection on a gate
type StartInspectionRequest struct {
	Stage           string
	Boundary        Boundary
	ReferenceNumber string
	EvaluatorCode   string
}

// ResolveInspectionRequest records the evaluator's verdict, optionally with
// the rejection follow-up applied in the same step
type ResolveInspectionRequest struct {
	Stage           string
	Boundary        Boundary
	Outcome         InspectionOutcome
	EvaluatorCode   string
	Resolution      Resolution
	ResponsibleName string
	Reason          string
}

// RejectionDecision is the follow-up to a rejected inspection
type RejectionDecision struct {
	Stage           string
	Boundary        Boundary
	Resolution      Resolution
	ResponsibleName string
	Reason          string
}

// Inspection returns the record for a gate, or nil
func (w *WorkItem) Inspection(stage string, boundary Boundary) *Inspection {
	for i := range w.Inspections {
		if w.Inspections[i].Stage == stage && w.Inspections[i].Boundary == boundary {
			return &w.Inspections[i]
		}
	}
	return nil
}

// InspectionState returns the derived state of a gate
func (w *WorkItem) InspectionState(stage string, boundary Boundary) InspectionState {
	return w.Inspection(stage, boundary).State()
}

// GateCleared reports whether the gate's inspection allows passing
func (w *WorkItem) GateCleared(stage string, boundary Boundary) bool {
	return w.Inspection(stage, boundary).Cleared()
}

// AtBoundary reports whether the item is waiting on the given gate
func (w *WorkItem) AtBoundary(stage string, boundary Boundary) bool {
	if w.Stage != stage {
		return false
	}
	if boundary == BoundaryStart {
		return w.Status == ItemStatusQueued
	}
	return w.Status == ItemStatusActive
}

// StartInspection opens the gate's inspection. Calling it again while the
// inspection is pending returns the item unchanged.
func (w *WorkItem) StartInspection(p *Pipeline, req StartInspectionRequest, now time.Time) (*WorkItem, bool, error) {
	if !w.IsOpen() {
		return nil, false, fmt.Errorf("%w: item %s is %s", ErrIllegalTransition, w.ItemID, w.Status)
	}
	if !p.IsGated(req.Stage, req.Boundary) {
		return nil, false, fmt.Errorf("%w: no inspection gate at %s/%s", ErrIllegalTransition, req.Stage, req.Boundary)
	}
	if !w.AtBoundary(req.Stage, req.Boundary) {
		return nil, false, fmt.Errorf("%w: item is at %s, not at gate %s/%s", ErrIllegalTransition, w.Position(), req.Stage, req.Boundary)
	}

	if existing := w.Inspection(req.Stage, req.Boundary); existing != nil {
		if existing.Status == InspectionPending {
			return w.Clone(), false, nil
		}
		return nil, false, fmt.Errorf("%w: inspection at %s/%s already resolved", ErrIllegalTransition, req.Stage, req.Boundary)
	}

	ref := strings.TrimSpace(req.ReferenceNumber)
	evaluator := strings.TrimSpace(req.EvaluatorCode)
	if p.Evidence.StartRequiresReference && ref == "" {
		return nil, false, fmt.Errorf("%w: reference number is required to start an inspection", ErrValidation)
	}
	if p.Evidence.StartRequiresEvaluator && evaluator == "" {
		return nil, false, fmt.Errorf("%w: evaluator code is required to start an inspection", ErrValidation)
	}

	out := w.Clone()
	out.Inspections = append(out.Inspections, Inspection{
		Stage:           req.Stage,
		Boundary:        req.Boundary,
		ReferenceNumber: ref,
		EvaluatorCode:   evaluator,
		Status:          InspectionPending,
		StartedAt:       now,
	})
	out.UpdatedAt = now

	out.AddDomainEvent(&InspectionStartedEvent{
		ItemID:          out.ItemID,
		Stage:           req.Stage,
		Boundary:        req.Boundary,
		ReferenceNumber: ref,
		EvaluatorCode:   evaluator,
		StartedAt:       now,
	})

	return out, true, nil
}

// ResolveInspection records the evaluator's verdict. When a rejection comes
// with a resolution, the decision is applied in the same step. The second
// return value is the rework item, if one was spawned.
func (w *WorkItem) ResolveInspection(p *Pipeline, req ResolveInspectionRequest, now time.Time) (*WorkItem, *WorkItem, error) {
	if req.Outcome != OutcomeApproved && req.Outcome != OutcomeRejected {
		return nil, nil, fmt.Errorf("%w: unknown outcome %q", ErrValidation, req.Outcome)
	}
	if req.Outcome == OutcomeApproved && req.Resolution != "" {
		return nil, nil, fmt.Errorf("%w: an approval takes no resolution", ErrValidation)
	}

	rec := w.Inspection(req.Stage, req.Boundary)
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: no inspection started at %s/%s", ErrIllegalTransition, req.Stage, req.Boundary)
	}
	if rec.Status == InspectionResolved {
		if rec.Outcome == req.Outcome && (req.Resolution == "" || req.Resolution == rec.Resolution) {
			return w.Clone(), nil, nil
		}
		return nil, nil, fmt.Errorf("%w: inspection at %s/%s already resolved as %s", ErrIllegalTransition, req.Stage, req.Boundary, rec.State())
	}
	if w.Status == ItemStatusClosed {
		return nil, nil, fmt.Errorf("%w: item %s was closed for rework", ErrIllegalTransition, w.ItemID)
	}

	evaluator := strings.TrimSpace(req.EvaluatorCode)
	if evaluator == "" {
		if req.Outcome == OutcomeApproved && p.Evidence.ApprovalRequiresEvaluator {
			return nil, nil, fmt.Errorf("%w: evaluator code is required to approve", ErrValidation)
		}
		evaluator = rec.EvaluatorCode
	}

	decision := RejectionDecision{
		Stage:           req.Stage,
		Boundary:        req.Boundary,
		Resolution:      req.Resolution,
		ResponsibleName: req.ResponsibleName,
		Reason:          req.Reason,
	}
	if req.Resolution != "" {
		if err := validateDecision(p, decision); err != nil {
			return nil, nil, err
		}
	}

	out := w.Clone()
	r := out.Inspection(req.Stage, req.Boundary)
	resolvedAt := now
	r.Status = InspectionResolved
	r.Outcome = req.Outcome
	r.ResolvedBy = evaluator
	r.ResolvedAt = &resolvedAt
	out.UpdatedAt = now

	out.AddDomainEvent(&InspectionResolvedEvent{
		ItemID:     out.ItemID,
		Stage:      req.Stage,
		Boundary:   req.Boundary,
		Outcome:    req.Outcome,
		ResolvedBy: evaluator,
		ResolvedAt: now,
	})

	if req.Resolution == "" {
		return out, nil, nil
	}
	rework := out.applyDecision(p, decision, now)
	return out, rework, nil
}

// DecideRejection applies the follow-up to a rejected inspection. A rework
// decision closes this item and returns exactly one new linked item queued at
// the first stage.
func (w *WorkItem) DecideRejection(p *Pipeline, d RejectionDecision, now time.Time) (*WorkItem, *WorkItem, error) {
	rec := w.Inspection(d.Stage, d.Boundary)
	if rec == nil || rec.Status != InspectionResolved || rec.Outcome != OutcomeRejected {
		return nil, nil, fmt.Errorf("%w: inspection at %s/%s is %s, not rejected", ErrIllegalTransition, d.Stage, d.Boundary, rec.State())
	}
	if rec.Resolution != "" {
		if rec.Resolution == d.Resolution {
			return w.Clone(), nil, nil
		}
		return nil, nil, fmt.Errorf("%w: rejection already decided as %s", ErrIllegalTransition, rec.Resolution)
	}
	if w.Status == ItemStatusClosed {
		return nil, nil, fmt.Errorf("%w: item %s was closed for rework", ErrIllegalTransition, w.ItemID)
	}
	if err := validateDecision(p, d); err != nil {
		return nil, nil, err
	}

	out := w.Clone()
	rework := out.applyDecision(p, d, now)
	return out, rework, nil
}

func validateDecision(p *Pipeline, d RejectionDecision) error {
	reason := strings.TrimSpace(d.Reason)
	switch d.Resolution {
	case ResolutionOverrideReleased:
		if strings.TrimSpace(d.ResponsibleName) == "" {
			return fmt.Errorf("%w: responsible name is required to release a rejected item", ErrValidation)
		}
		if p.Evidence.OverrideRequiresReason && reason == "" {
			return fmt.Errorf("%w: reason is required to release a rejected item", ErrValidation)
		}
	case ResolutionReworkRequested:
		if p.Evidence.ReworkRequiresReason && reason == "" {
			return fmt.Errorf("%w: reason is required to request rework", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown resolution %q", ErrValidation, d.Resolution)
	}
	return nil
}

// applyDecision mutates w in place; callers pass a clone
func (w *WorkItem) applyDecision(p *Pipeline, d RejectionDecision, now time.Time) *WorkItem {
	rec := w.Inspection(d.Stage, d.Boundary)
	decidedAt := now
	rec.Resolution = d.Resolution
	rec.ResponsibleName = strings.TrimSpace(d.ResponsibleName)
	rec.Reason = strings.TrimSpace(d.Reason)
	rec.DecidedAt = &decidedAt
	w.UpdatedAt = now

	if d.Resolution == ResolutionOverrideReleased {
		w.AddDomainEvent(&InspectionOverrideReleasedEvent{
			ItemID:          w.ItemID,
			Stage:           d.Stage,
			Boundary:        d.Boundary,
			ResponsibleName: rec.ResponsibleName,
			Reason:          rec.Reason,
			ReleasedAt:      now,
		})
		return nil
	}

	rework := newQueuedItem(p, NewWorkItemParams{
		ReferenceNumber: w.ReferenceNumber,
		ItemCode:        w.ItemCode,
		Description:     w.Description,
		Quantity:        w.Quantity,
		PriorityTag:     w.PriorityTag,
	}, nil, now, now)
	rework.ReworkOf = w.ItemID
	rework.ReworkCycle = w.ReworkCycle + 1

	rec.ReworkItemID = rework.ItemID
	w.Status = ItemStatusClosed

	w.AddDomainEvent(&ReworkRequestedEvent{
		ItemID:          w.ItemID,
		ReworkItemID:    rework.ItemID,
		Stage:           d.Stage,
		Boundary:        d.Boundary,
		ResponsibleName: rec.ResponsibleName,
		Reason:          rec.Reason,
		RequestedAt:     now,
	})
	rework.emitCreated()

	return rework
}
