package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the status of a warehouse request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusCompleted RequestStatus = "COMPLETED"
)

// WarehouseRequest is a request for profiles or hardware from the warehouse
type WarehouseRequest struct {
	RequestID    string        `bson:"_id" json:"requestId"`
	Type         string        `bson:"type" json:"type"`
	ItemCode     string        `bson:"itemCode" json:"itemCode"`
	Quantity     int           `bson:"quantity" json:"quantity"`
	Requester    string        `bson:"requester" json:"requester"`
	Status       RequestStatus `bson:"status" json:"status"`
	CreatedAt    time.Time     `bson:"createdAt" json:"createdAt"`
	CompletedAt  *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CompletedBy  string        `bson:"completedBy,omitempty" json:"completedBy,omitempty"`
	Version      int64         `bson:"version" json:"version"`
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// NewWarehouseRequestParams carries the request form
type NewWarehouseRequestParams struct {
	Type      string
	ItemCode  string
	Quantity  int
	Requester string
}

// NewWarehouseRequest validates and creates a pending request
func NewWarehouseRequest(params NewWarehouseRequestParams, allowedTypes []string, now time.Time) (*WarehouseRequest, error) {
	reqType := strings.ToUpper(strings.TrimSpace(params.Type))
	itemCode := strings.TrimSpace(params.ItemCode)
	requester := strings.TrimSpace(params.Requester)

	known := false
	for _, t := range allowedTypes {
		if strings.EqualFold(t, reqType) {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: unknown request type %q", ErrValidation, params.Type)
	}
	if itemCode == "" {
		return nil, fmt.Errorf("%w: item code is required", ErrValidation)
	}
	if requester == "" {
		return nil, fmt.Errorf("%w: requester is required", ErrValidation)
	}
	if params.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}

	r := &WarehouseRequest{
		RequestID: "WR-" + uuid.New().String()[:8],
		Type:      reqType,
		ItemCode:  itemCode,
		Quantity:  params.Quantity,
		Requester: requester,
		Status:    RequestStatusPending,
		CreatedAt: now,
	}

	r.AddDomainEvent(&WarehouseRequestCreatedEvent{
		RequestID: r.RequestID,
		Type:      r.Type,
		ItemCode:  r.ItemCode,
		Quantity:  r.Quantity,
		Requester: r.Requester,
		CreatedAt: now,
	})

	return r, nil
}

// Complete marks the request fulfilled and returns the updated copy
func (r *WarehouseRequest) Complete(completedBy string, now time.Time) (*WarehouseRequest, error) {
	if r.Status == RequestStatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, r.RequestID)
	}
	completedBy = strings.TrimSpace(completedBy)
	if completedBy == "" {
		return nil, fmt.Errorf("%w: completer is required", ErrValidation)
	}

	out := *r
	out.DomainEvents = nil
	done := now
	out.Status = RequestStatusCompleted
	out.CompletedAt = &done
	out.CompletedBy = completedBy

	out.AddDomainEvent(&WarehouseRequestCompletedEvent{
		RequestID:   out.RequestID,
		Type:        out.Type,
		CompletedBy: completedBy,
		CompletedAt: now,
	})

	return &out, nil
}

// AddDomainEvent adds a domain event
func (r *WarehouseRequest) AddDomainEvent(event DomainEvent) {
	r.DomainEvents = append(r.DomainEvents, event)
}

// ClearDomainEvents clears all domain events
func (r *WarehouseRequest) ClearDomainEvents() {
	r.DomainEvents = nil
}

// GetDomainEvents returns all domain events
func (r *WarehouseRequest) GetDomainEvents() []DomainEvent {
	return r.DomainEvents
}

// RequestUrgency classifies a pending request against the warehouse allowance.
// Completed requests carry no deadline.
func RequestUrgency(r *WarehouseRequest, allowance time.Duration, policy UrgencyPolicy, now time.Time) Urgency {
	if r.Status != RequestStatusPending || allowance <= 0 {
		return Urgency{Level: UrgencyNormal}
	}
	return ClassifyDeadline(r.CreatedAt.Add(allowance), now, policy)
}

// SortNewestFirst orders requests by creation time, newest first
func SortNewestFirst(requests []*WarehouseRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].RequestID < requests[j].RequestID
		}
		return requests[i].CreatedAt.After(requests[j].CreatedAt)
	})
}

// SortOldestFirst orders requests by creation time, oldest first
func SortOldestFirst(requests []*WarehouseRequest) {
	sort.SliceStable(requests, func(i, j int) bool {
		if requests[i].CreatedAt.Equal(requests[j].CreatedAt) {
			return requests[i].RequestID < requests[j].RequestID
		}
		return requests[i].CreatedAt.Before(requests[j].CreatedAt)
	})
}
