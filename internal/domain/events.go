package domain

import (
	"time"

	"github.com/wms-platform/production-tracking/pkg/cloudevents"
)

// DomainEvent represents a domain event
type DomainEvent interface {
	EventType() string
	AggregateID() string
	OccurredAt() time.Time
}

// ItemCreatedEvent is emitted on intake and when rework spawns an item
type ItemCreatedEvent struct {
	ItemID          string    `json:"itemId"`
	ReferenceNumber string    `json:"referenceNumber"`
	ItemCode        string    `json:"itemCode"`
	Quantity        int       `json:"quantity"`
	PriorityTag     string    `json:"priorityTag,omitempty"`
	Stage           string    `json:"stage"`
	ReworkOf        string    `json:"reworkOf,omitempty"`
	ReworkCycle     int       `json:"reworkCycle"`
	EntryAt         time.Time `json:"entryAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (e *ItemCreatedEvent) EventType() string     { return cloudevents.ItemCreated }
func (e *ItemCreatedEvent) AggregateID() string   { return e.ItemID }
func (e *ItemCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// ItemStageChangedEvent is emitted on every effective advance
type ItemStageChangedEvent struct {
	ItemID     string    `json:"itemId"`
	From       Position  `json:"from"`
	To         Position  `json:"to"`
	OperatorID string    `json:"operatorId"`
	ChangedAt  time.Time `json:"changedAt"`
}

func (e *ItemStageChangedEvent) EventType() string     { return cloudevents.ItemStageChanged }
func (e *ItemStageChangedEvent) AggregateID() string   { return e.ItemID }
func (e *ItemStageChangedEvent) OccurredAt() time.Time { return e.ChangedAt }

// ItemFinishedEvent is emitted when the final stage completes
type ItemFinishedEvent struct {
	ItemID          string    `json:"itemId"`
	ReferenceNumber string    `json:"referenceNumber"`
	ItemCode        string    `json:"itemCode"`
	Quantity        int       `json:"quantity"`
	FinishedBy      string    `json:"finishedBy"`
	FinishedAt      time.Time `json:"finishedAt"`
}

func (e *ItemFinishedEvent) EventType() string     { return cloudevents.ItemFinished }
func (e *ItemFinishedEvent) AggregateID() string   { return e.ItemID }
func (e *ItemFinishedEvent) OccurredAt() time.Time { return e.FinishedAt }

// ItemDelayEscalatedEvent is emitted once per item and stage when it turns late
type ItemDelayEscalatedEvent struct {
	ItemID          string    `json:"itemId"`
	ReferenceNumber string    `json:"referenceNumber"`
	Stage           string    `json:"stage"`
	Phase           Phase     `json:"phase"`
	Deadline        time.Time `json:"deadline"`
	OverdueSeconds  int64     `json:"overdueSeconds"`
	EscalatedAt     time.Time `json:"escalatedAt"`
}

func (e *ItemDelayEscalatedEvent) EventType() string     { return cloudevents.ItemDelayEscalated }
func (e *ItemDelayEscalatedEvent) AggregateID() string   { return e.ItemID }
func (e *ItemDelayEscalatedEvent) OccurredAt() time.Time { return e.EscalatedAt }

// ReworkRequestedEvent is emitted when a rejection sends an item back
type ReworkRequestedEvent struct {
	ItemID          string    `json:"itemId"`
	ReworkItemID    string    `json:"reworkItemId"`
	Stage           string    `json:"stage"`
	Boundary        Boundary  `json:"boundary"`
	ResponsibleName string    `json:"responsibleName,omitempty"`
	Reason          string    `json:"reason,omitempty"`
	RequestedAt     time.Time `json:"requestedAt"`
}

func (e *ReworkRequestedEvent) EventType() string     { return cloudevents.ItemReworkRequested }
func (e *ReworkRequestedEvent) AggregateID() string   { return e.ItemID }
func (e *ReworkRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }

// InspectionStartedEvent is emitted when an item is put under inspection
type InspectionStartedEvent struct {
	ItemID          string    `json:"itemId"`
	Stage           string    `json:"stage"`
	Boundary        Boundary  `json:"boundary"`
	ReferenceNumber string    `json:"referenceNumber,omitempty"`
	EvaluatorCode   string    `json:"evaluatorCode,omitempty"`
	StartedAt       time.Time `json:"startedAt"`
}

func (e *InspectionStartedEvent) EventType() string     { return cloudevents.InspectionStarted }
func (e *InspectionStartedEvent) AggregateID() string   { return e.ItemID }
func (e *InspectionStartedEvent) OccurredAt() time.Time { return e.StartedAt }

// InspectionResolvedEvent is emitted when an evaluator approves or rejects
type InspectionResolvedEvent struct {
	ItemID     string            `json:"itemId"`
	Stage      string            `json:"stage"`
	Boundary   Boundary          `json:"boundary"`
	Outcome    InspectionOutcome `json:"outcome"`
	ResolvedBy string            `json:"resolvedBy,omitempty"`
	ResolvedAt time.Time         `json:"resolvedAt"`
}

func (e *InspectionResolvedEvent) EventType() string     { return cloudevents.InspectionResolved }
func (e *InspectionResolvedEvent) AggregateID() string   { return e.ItemID }
func (e *InspectionResolvedEvent) OccurredAt() time.Time { return e.ResolvedAt }

// InspectionOverrideReleasedEvent is emitted when a rejected item is released anyway
type InspectionOverrideReleasedEvent struct {
	ItemID          string    `json:"itemId"`
	Stage           string    `json:"stage"`
	Boundary        Boundary  `json:"boundary"`
	ResponsibleName string    `json:"responsibleName"`
	Reason          string    `json:"reason,omitempty"`
	ReleasedAt      time.Time `json:"releasedAt"`
}

func (e *InspectionOverrideReleasedEvent) EventType() string {
	return cloudevents.InspectionOverrideReleased
}
func (e *InspectionOverrideReleasedEvent) AggregateID() string   { return e.ItemID }
func (e *InspectionOverrideReleasedEvent) OccurredAt() time.Time { return e.ReleasedAt }

// WarehouseRequestCreatedEvent is emitted when a warehouse request is logged
type WarehouseRequestCreatedEvent struct {
	RequestID string    `json:"requestId"`
	Type      string    `json:"type"`
	ItemCode  string    `json:"itemCode"`
	Quantity  int       `json:"quantity"`
	Requester string    `json:"requester"`
	CreatedAt time.Time `json:"createdAt"`
}

func (e *WarehouseRequestCreatedEvent) EventType() string     { return cloudevents.WarehouseRequestCreated }
func (e *WarehouseRequestCreatedEvent) AggregateID() string   { return e.RequestID }
func (e *WarehouseRequestCreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// WarehouseRequestCompletedEvent is emitted when a request is fulfilled
type WarehouseRequestCompletedEvent struct {
	RequestID   string    `json:"requestId"`
	Type        string    `json:"type"`
	CompletedBy string    `json:"completedBy"`
	CompletedAt time.Time `json:"completedAt"`
}

func (e *WarehouseRequestCompletedEvent) EventType() string {
	return cloudevents.WarehouseRequestCompleted
}
func (e *WarehouseRequestCompletedEvent) AggregateID() string   { return e.RequestID }
func (e *WarehouseRequestCompletedEvent) OccurredAt() time.Time { return e.CompletedAt }
