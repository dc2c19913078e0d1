package projection

import (
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
)

// RequestEntry is a warehouse request with its urgency
type RequestEntry struct {
	Request *domain.WarehouseRequest `json:"request"`
	Urgency domain.Urgency           `json:"urgency"`
}

// PendingRequests returns the pending requests of one type, oldest first
func PendingRequests(requests []*domain.WarehouseRequest, reqType string, p *domain.Pipeline, now time.Time) []RequestEntry {
	pending := make([]*domain.WarehouseRequest, 0, len(requests))
	for _, r := range requests {
		if r.Status == domain.RequestStatusPending && (reqType == "" || r.Type == reqType) {
			pending = append(pending, r)
		}
	}
	domain.SortOldestFirst(pending)

	out := make([]RequestEntry, 0, len(pending))
	for _, r := range pending {
		out = append(out, RequestEntry{
			Request: r,
			Urgency: domain.RequestUrgency(r, p.Warehouse.Allowance, p.Urgency, now),
		})
	}
	return out
}

// Frame is what a display shows for one filter
type Frame struct {
	Filter   string         `json:"filter"`
	Board    Board          `json:"board"`
	Requests []RequestEntry `json:"requests,omitempty"`
}

// BuildFrame projects one display frame. Warehouse filters show that type's
// pending requests instead of production buckets.
func BuildFrame(items []*domain.WorkItem, requests []*domain.WarehouseRequest, p *domain.Pipeline, filter domain.Filter, now time.Time) Frame {
	frame := Frame{
		Filter: filter.String(),
		Board:  Project(items, p, ViewOptions{Filter: filter}, now),
	}
	if filter.Kind == domain.FilterKindWarehouse {
		frame.Requests = PendingRequests(requests, filter.Value, p, now)
	}
	return frame
}
