package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ItemStatus represents the lifecycle status of a work item
type ItemStatus string

const (
	ItemStatusQueued   ItemStatus = "QUEUED"
	ItemStatusActive   ItemStatus = "ACTIVE"
	ItemStatusFinished ItemStatus = "FINISHED"
	// ItemStatusClosed marks an item replaced by a rework item
	ItemStatusClosed ItemStatus = "CLOSED"
)

// StageRecord captures one pass through a stage
type StageRecord struct {
	Stage         string     `bson:"stage" json:"stage"`
	EntryAt       time.Time  `bson:"entryAt" json:"entryAt"`
	ActiveStartAt *time.Time `bson:"activeStartAt,omitempty" json:"activeStartAt,omitempty"`
	StartedBy     string     `bson:"startedBy,omitempty" json:"startedBy,omitempty"`
	FinishedAt    *time.Time `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
	FinishedBy    string     `bson:"finishedBy,omitempty" json:"finishedBy,omitempty"`
}

// WorkItem is the aggregate root for a batch of parts moving through the pipeline
type WorkItem struct {
	ItemID             string        `bson:"_id" json:"itemId"`
	ReferenceNumber    string        `bson:"referenceNumber" json:"referenceNumber"`
	ItemCode           string        `bson:"itemCode" json:"itemCode"`
	Description        string        `bson:"description,omitempty" json:"description,omitempty"`
	Quantity           int           `bson:"quantity" json:"quantity"`
	PriorityTag        string        `bson:"priorityTag,omitempty" json:"priorityTag,omitempty"`
	UpstreamFinishedAt *time.Time    `bson:"upstreamFinishedAt,omitempty" json:"upstreamFinishedAt,omitempty"`
	Stage              string        `bson:"stage" json:"stage"`
	Status             ItemStatus    `bson:"status" json:"status"`
	StageHistory       []StageRecord `bson:"stageHistory" json:"stageHistory"`
	Inspections        []Inspection  `bson:"inspections" json:"inspections"`
	ReworkOf           string        `bson:"reworkOf,omitempty" json:"reworkOf,omitempty"`
	ReworkCycle        int           `bson:"reworkCycle" json:"reworkCycle"`
	Version            int64         `bson:"version" json:"version"`
	CreatedAt          time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time     `bson:"updatedAt" json:"updatedAt"`
	FinishedAt         *time.Time    `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
	DomainEvents       []DomainEvent `bson:"-" json:"-"`
}

// NewWorkItemParams carries intake data
type NewWorkItemParams struct {
	ReferenceNumber    string
	ItemCode           string
	Description        string
	Quantity           int
	PriorityTag        string
	UpstreamFinishedAt *time.Time
}

// AdvanceRequest asks for a move to Target
type AdvanceRequest struct {
	Target     Position
	OperatorID string
}

// NewWorkItem creates an item queued at the first stage
func NewWorkItem(p *Pipeline, params NewWorkItemParams, now time.Time) (*WorkItem, error) {
	params.ItemCode = strings.TrimSpace(params.ItemCode)
	params.ReferenceNumber = strings.TrimSpace(params.ReferenceNumber)
	if params.ItemCode == "" {
		return nil, fmt.Errorf("%w: item code is required", ErrValidation)
	}
	if params.ReferenceNumber == "" {
		return nil, fmt.Errorf("%w: reference number is required", ErrValidation)
	}
	if params.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	entryAt := now
	var upstream *time.Time
	if params.UpstreamFinishedAt != nil && !params.UpstreamFinishedAt.IsZero() {
		u := *params.UpstreamFinishedAt
		upstream = &u
		if !u.After(now) {
			entryAt = u
		}
	}

	item := newQueuedItem(p, params, upstream, entryAt, now)
	item.emitCreated()
	return item, nil
}

func newQueuedItem(p *Pipeline, params NewWorkItemParams, upstream *time.Time, entryAt, now time.Time) *WorkItem {
	first := p.First()
	return &WorkItem{
		ItemID:             "WI-" + uuid.New().String()[:8],
		ReferenceNumber:    params.ReferenceNumber,
		ItemCode:           params.ItemCode,
		Description:        strings.TrimSpace(params.Description),
		Quantity:           params.Quantity,
		PriorityTag:        strings.TrimSpace(params.PriorityTag),
		UpstreamFinishedAt: upstream,
		Stage:              first,
		Status:             ItemStatusQueued,
		StageHistory:       []StageRecord{{Stage: first, EntryAt: entryAt}},
		Inspections:        []Inspection{},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func (w *WorkItem) emitCreated() {
	w.AddDomainEvent(&ItemCreatedEvent{
		ItemID:          w.ItemID,
		ReferenceNumber: w.ReferenceNumber,
		ItemCode:        w.ItemCode,
		Quantity:        w.Quantity,
		PriorityTag:     w.PriorityTag,
		Stage:           w.Stage,
		ReworkOf:        w.ReworkOf,
		ReworkCycle:     w.ReworkCycle,
		EntryAt:         w.StageHistory[0].EntryAt,
		CreatedAt:       w.CreatedAt,
	})
}

// Position returns the item's current position
func (w *WorkItem) Position() Position {
	switch w.Status {
	case ItemStatusFinished:
		return Finished()
	case ItemStatusActive:
		return Active(w.Stage)
	}
	return Queued(w.Stage)
}

// IsOpen reports whether the item still sits in a production stage
func (w *WorkItem) IsOpen() bool {
	return w.Status == ItemStatusQueued || w.Status == ItemStatusActive
}

// CurrentRecord returns the open stage record, if any
func (w *WorkItem) CurrentRecord() *StageRecord {
	if len(w.StageHistory) == 0 {
		return nil
	}
	rec := &w.StageHistory[len(w.StageHistory)-1]
	if rec.Stage != w.Stage || rec.FinishedAt != nil {
		return nil
	}
	return rec
}

// Record returns the last record for stage
func (w *WorkItem) Record(stage string) *StageRecord {
	for i := len(w.StageHistory) - 1; i >= 0; i-- {
		if w.StageHistory[i].Stage == stage {
			return &w.StageHistory[i]
		}
	}
	return nil
}

// Advance moves the item one step. The receiver is never mutated; the
// returned item carries the change and its events. Requesting the current
// position again is a no-op reported with changed=false.
func (w *WorkItem) Advance(p *Pipeline, req AdvanceRequest, now time.Time) (*WorkItem, bool, error) {
	operator := strings.TrimSpace(req.OperatorID)
	if operator == "" {
		return nil, false, fmt.Errorf("%w: operator id is required", ErrValidation)
	}

	switch w.Status {
	case ItemStatusFinished:
		return nil, false, fmt.Errorf("%w: %s", ErrAlreadyFinished, w.ItemID)
	case ItemStatusClosed:
		return nil, false, fmt.Errorf("%w: item %s was closed for rework", ErrIllegalTransition, w.ItemID)
	}

	current := w.Position()
	if req.Target == current {
		return w.Clone(), false, nil
	}

	next, ok := p.NextPosition(current)
	if !ok || req.Target != next {
		return nil, false, fmt.Errorf("%w: cannot move from %s to %s", ErrIllegalTransition, current, req.Target)
	}

	boundary := BoundaryFinish
	if current.Phase == PhaseQueued {
		boundary = BoundaryStart
	}
	if p.IsGated(current.Stage, boundary) && !w.GateCleared(current.Stage, boundary) {
		return nil, false, fmt.Errorf("%w: %s/%s", ErrInspectionRequired, current.Stage, boundary)
	}

	out := w.Clone()
	rec := out.CurrentRecord()
	if rec == nil {
		return nil, false, fmt.Errorf("%w: item %s has no open stage record", ErrIllegalTransition, w.ItemID)
	}

	if boundary == BoundaryStart {
		if rec.ActiveStartAt == nil {
			start := notBefore(now, rec.EntryAt)
			rec.ActiveStartAt = &start
			rec.StartedBy = operator
		}
		out.Status = ItemStatusActive
	} else {
		floor := rec.EntryAt
		if rec.ActiveStartAt != nil {
			floor = *rec.ActiveStartAt
		}
		done := notBefore(now, floor)
		rec.FinishedAt = &done
		rec.FinishedBy = operator

		if next.IsFinished() {
			out.Stage = StageFinished
			out.Status = ItemStatusFinished
			out.FinishedAt = &done
		} else {
			out.Stage = next.Stage
			out.Status = ItemStatusQueued
			out.StageHistory = append(out.StageHistory, StageRecord{Stage: next.Stage, EntryAt: done})
		}
	}
	out.UpdatedAt = now

	out.AddDomainEvent(&ItemStageChangedEvent{
		ItemID:     out.ItemID,
		From:       current,
		To:         next,
		OperatorID: operator,
		ChangedAt:  now,
	})
	if next.IsFinished() {
		out.AddDomainEvent(&ItemFinishedEvent{
			ItemID:          out.ItemID,
			ReferenceNumber: out.ReferenceNumber,
			ItemCode:        out.ItemCode,
			Quantity:        out.Quantity,
			FinishedBy:      operator,
			FinishedAt:      *out.FinishedAt,
		})
	}

	return out, true, nil
}

// Clone returns a deep copy without pending domain events
func (w *WorkItem) Clone() *WorkItem {
	c := *w
	c.UpstreamFinishedAt = copyTime(w.UpstreamFinishedAt)
	c.FinishedAt = copyTime(w.FinishedAt)

	c.StageHistory = make([]StageRecord, len(w.StageHistory))
	for i, r := range w.StageHistory {
		r.ActiveStartAt = copyTime(r.ActiveStartAt)
		r.FinishedAt = copyTime(r.FinishedAt)
		c.StageHistory[i] = r
	}

	c.Inspections = make([]Inspection, len(w.Inspections))
	for i, in := range w.Inspections {
		in.ResolvedAt = copyTime(in.ResolvedAt)
		in.DecidedAt = copyTime(in.DecidedAt)
		c.Inspections[i] = in
	}

	c.DomainEvents = nil
	return &c
}

// AddDomainEvent adds a domain event
func (w *WorkItem) AddDomainEvent(event DomainEvent) {
	w.DomainEvents = append(w.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (w *WorkItem) ClearDomainEvents() {
	w.DomainEvents = nil
}

// GetDomainEvents returns all domain events
func (w *WorkItem) GetDomainEvents() []DomainEvent {
	return w.DomainEvents
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func notBefore(t, floor time.Time) time.Time {
	if t.Before(floor) {
		return floor
	}
	return t
}
