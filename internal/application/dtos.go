package application

import (
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
	"github.com/wms-platform/production-tracking/internal/projection"
)

// InspectionDTO is an inspection record with its derived state
type InspectionDTO struct {
	domain.Inspection
	State domain.InspectionState `json:"state"`
}

// ItemDTO represents a work item in responses
type ItemDTO struct {
	ItemID             string           `json:"itemId"`
	ReferenceNumber    string           `json:"referenceNumber"`
	ItemCode           string           `json:"itemCode"`
	Description        string           `json:"description,omitempty"`
	Quantity           int              `json:"quantity"`
	PriorityTag        string           `json:"priorityTag,omitempty"`
	FastTrack          bool             `json:"fastTrack"`
	UpstreamFinishedAt *time.Time       `json:"upstreamFinishedAt,omitempty"`
	Stage              string           `json:"stage"`
	Status             string           `json:"status"`
	Position           domain.Position  `json:"position"`
	StageHistory       []StageRecordDTO `json:"stageHistory"`
	Inspections        []InspectionDTO  `json:"inspections"`
	ReworkOf           string           `json:"reworkOf,omitempty"`
	ReworkCycle        int              `json:"reworkCycle"`
	Version            int64            `json:"version"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	FinishedAt         *time.Time       `json:"finishedAt,omitempty"`
	Urgency            domain.Urgency   `json:"urgency"`
}

// StageRecordDTO is a stage record with its start lateness
type StageRecordDTO struct {
	domain.StageRecord
	AllowanceMinutes int  `json:"allowanceMinutes"`
	Late             bool `json:"late"`
}

// AdvanceResultDTO reports an advance; Changed is false for repeated requests
type AdvanceResultDTO struct {
	Item    *ItemDTO `json:"item"`
	Changed bool     `json:"changed"`
}

// InspectionResultDTO carries the inspected item and the rework item, if any
type InspectionResultDTO struct {
	Item       *ItemDTO `json:"item"`
	ReworkItem *ItemDTO `json:"reworkItem,omitempty"`
	Changed    bool     `json:"changed"`
}

// DelayCheckDTO is the result of a delay check
type DelayCheckDTO struct {
	ItemID           string              `json:"itemId"`
	Stage            string              `json:"stage"`
	Open             bool                `json:"open"`
	Urgency          domain.Urgency      `json:"urgency"`
	Escalated        bool                `json:"escalated"`
	AlreadyEscalated bool                `json:"alreadyEscalated"`
	Level            domain.UrgencyLevel `json:"level"`
}

// WarehouseRequestDTO is a warehouse request with its urgency
type WarehouseRequestDTO struct {
	RequestID   string         `json:"requestId"`
	Type        string         `json:"type"`
	ItemCode    string         `json:"itemCode"`
	Quantity    int            `json:"quantity"`
	Requester   string         `json:"requester"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	CompletedBy string         `json:"completedBy,omitempty"`
	Version     int64          `json:"version"`
	Urgency     domain.Urgency `json:"urgency"`
}

// DisplaySessionDTO is a display configuration; Persisted is false for defaults
type DisplaySessionDTO struct {
	domain.DisplaySession
	Persisted bool `json:"persisted"`
}

// FrameDTO is one display frame
type FrameDTO struct {
	SessionID       string `json:"sessionId"`
	Index           int    `json:"index"`
	FilterCount     int    `json:"filterCount"`
	IntervalSeconds int    `json:"intervalSeconds"`
	RotationEnabled bool   `json:"rotationEnabled"`
	projection.Frame
}
