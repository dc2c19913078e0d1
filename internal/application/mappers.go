package application

import (
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
)

// ToItemDTO converts a domain WorkItem to ItemDTO
func ToItemDTO(item *domain.WorkItem, p *domain.Pipeline, now time.Time) *ItemDTO {
	if item == nil {
		return nil
	}

	inspections := make([]InspectionDTO, 0, len(item.Inspections))
	for i := range item.Inspections {
		in := item.Inspections[i]
		inspections = append(inspections, InspectionDTO{Inspection: in, State: in.State()})
	}

	history := make([]StageRecordDTO, 0, len(item.StageHistory))
	for _, rec := range item.StageHistory {
		history = append(history, StageRecordDTO{
			StageRecord:      rec,
			AllowanceMinutes: int(p.AllowanceFor(item.ItemCode, rec.Stage) / time.Minute),
			Late:             p.StartLate(item, rec, now),
		})
	}

	return &ItemDTO{
		ItemID:             item.ItemID,
		ReferenceNumber:    item.ReferenceNumber,
		ItemCode:           item.ItemCode,
		Description:        item.Description,
		Quantity:           item.Quantity,
		PriorityTag:        item.PriorityTag,
		FastTrack:          p.IsFastTrack(item.PriorityTag),
		UpstreamFinishedAt: item.UpstreamFinishedAt,
		Stage:              item.Stage,
		Status:             string(item.Status),
		Position:           item.Position(),
		StageHistory:       history,
		Inspections:        inspections,
		ReworkOf:           item.ReworkOf,
		ReworkCycle:        item.ReworkCycle,
		Version:            item.Version,
		CreatedAt:          item.CreatedAt,
		UpdatedAt:          item.UpdatedAt,
		FinishedAt:         item.FinishedAt,
		Urgency:            domain.ComputeUrgency(item, p, now),
	}
}

// ToItemDTOs converts a slice of items
func ToItemDTOs(items []*domain.WorkItem, p *domain.Pipeline, now time.Time) []ItemDTO {
	out := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, *ToItemDTO(item, p, now))
	}
	return out
}

// ToWarehouseRequestDTO converts a domain WarehouseRequest
func ToWarehouseRequestDTO(r *domain.WarehouseRequest, p *domain.Pipeline, now time.Time) *WarehouseRequestDTO {
	if r == nil {
		return nil
	}
	return &WarehouseRequestDTO{
		RequestID:   r.RequestID,
		Type:        r.Type,
		ItemCode:    r.ItemCode,
		Quantity:    r.Quantity,
		Requester:   r.Requester,
		Status:      string(r.Status),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		CompletedBy: r.CompletedBy,
		Version:     r.Version,
		Urgency:     domain.RequestUrgency(r, p.Warehouse.Allowance, p.Urgency, now),
	}
}
