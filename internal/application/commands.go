package application

import "time"

// CreateItemCommand registers a batch arriving from upstream
type CreateItemCommand struct {
	ReferenceNumber    string     `json:"referenceNumber" binding:"required,safe_string"`
	ItemCode           string     `json:"itemCode" binding:"required,safe_string"`
	Description        string     `json:"description,omitempty" binding:"omitempty,max=500"`
	Quantity           int        `json:"quantity" binding:"required,gt=0"`
	PriorityTag        string     `json:"priorityTag,omitempty" binding:"omitempty,max=100"`
	UpstreamFinishedAt *time.Time `json:"upstreamFinishedAt,omitempty"`
}

// AdvanceItemCommand asks to move an item to the given position
type AdvanceItemCommand struct {
	ItemID          string `json:"-"`
	Stage           string `json:"stage" binding:"required"`
	Phase           string `json:"phase,omitempty" binding:"omitempty,oneof=QUEUED ACTIVE"`
	OperatorID      string `json:"operatorId" binding:"required"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// StartInspectionCommand opens an inspection on a gate
type StartInspectionCommand struct {
	ItemID          string `json:"-"`
	Stage           string `json:"stage" binding:"required"`
	Boundary        string `json:"boundary" binding:"required,oneof=start finish"`
	ReferenceNumber string `json:"referenceNumber,omitempty"`
	EvaluatorCode   string `json:"evaluatorCode,omitempty"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// ResolveInspectionCommand records an evaluator's verdict
type ResolveInspectionCommand struct {
	ItemID          string `json:"-"`
	Stage           string `json:"stage" binding:"required"`
	Boundary        string `json:"boundary" binding:"required,oneof=start finish"`
	Outcome         string `json:"outcome" binding:"required,oneof=APPROVED REJECTED"`
	EvaluatorCode   string `json:"evaluatorCode,omitempty"`
	Resolution      string `json:"resolution,omitempty" binding:"omitempty,oneof=REWORK_REQUESTED OVERRIDE_RELEASED"`
	ResponsibleName string `json:"responsibleName,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// DecideRejectionCommand is the follow-up decision on a rejection
type DecideRejectionCommand struct {
	ItemID          string `json:"-"`
	Stage           string `json:"stage" binding:"required"`
	Boundary        string `json:"boundary" binding:"required,oneof=start finish"`
	Resolution      string `json:"resolution" binding:"required,oneof=REWORK_REQUESTED OVERRIDE_RELEASED"`
	ResponsibleName string `json:"responsibleName,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// DelayCheckCommand asks whether an item is late in a stage and escalates it once
type DelayCheckCommand struct {
	ItemID string `json:"-"`
	// Stage restricts the check; an item that has left it is not escalated
	Stage string `json:"stage,omitempty"`
}

// HistoryQuery searches past and present items
type HistoryQuery struct {
	ReferenceNumber string     `form:"reference"`
	ItemCode        string     `form:"itemCode"`
	Stage           string     `form:"stage"`
	From            *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To              *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page            int64      `form:"page"`
	PageSize        int64      `form:"pageSize"`
}

// BoardQuery selects a board view
type BoardQuery struct {
	Filter          string `form:"filter"`
	IncludeFinished bool   `form:"includeFinished"`
}

// CreateWarehouseRequestCommand logs a warehouse request
type CreateWarehouseRequestCommand struct {
	Type      string `json:"type" binding:"required"`
	ItemCode  string `json:"itemCode" binding:"required,safe_string"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	Requester string `json:"requester" binding:"required,safe_string"`
}

// CompleteWarehouseRequestCommand marks a request fulfilled
type CompleteWarehouseRequestCommand struct {
	RequestID       string `json:"-"`
	CompletedBy     string `json:"completedBy" binding:"required"`
	ExpectedVersion *int64 `json:"expectedVersion,omitempty"`
}

// ListWarehouseRequestsQuery filters and orders the request list
type ListWarehouseRequestsQuery struct {
	Type   string `form:"type"`
	Status string `form:"status" binding:"omitempty,oneof=PENDING COMPLETED"`
	Order  string `form:"order" binding:"omitempty,oneof=newest oldest"`
}

// ConfigureDisplayCommand changes a display session
type ConfigureDisplayCommand struct {
	SessionID       string   `json:"-"`
	Filters         []string `json:"filters" binding:"required,min=1"`
	IntervalSeconds int      `json:"intervalSeconds" binding:"required,gt=0"`
	RotationEnabled *bool    `json:"rotationEnabled,omitempty"`
	UpdatedBy       string   `json:"updatedBy,omitempty"`
}

// SetRotationCommand pauses or resumes a display
type SetRotationCommand struct {
	SessionID string `json:"-"`
	Enabled   bool   `json:"-"`
	UpdatedBy string `json:"updatedBy,omitempty"`
}
