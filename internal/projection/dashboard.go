package projection

import (
	"sort"
	"strings"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
)

// TopDelayedLimit caps the delayed list on the dashboard
const TopDelayedLimit = 5

// DayWindow is the production day the dashboard reports on
type DayWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// CurrentDay returns the production day containing now
func CurrentDay(p *domain.Pipeline, now time.Time) DayWindow {
	start := p.Day.Start(now)
	return DayWindow{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether t falls inside the window
func (w DayWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Dashboard holds the production day KPIs
type Dashboard struct {
	Day                DayWindow      `json:"day"`
	GeneratedAt        time.Time      `json:"generatedAt"`
	ArrivedQuantity    int            `json:"arrivedQuantity"`
	FinishedQuantity   map[string]int `json:"finishedQuantityByStage"`
	CompletedItems     int            `json:"completedItems"`
	BucketCounts       map[string]int `json:"bucketCounts"`
	LateCount          int            `json:"lateCount"`
	WarningCount       int            `json:"warningCount"`
	TopDelayed         []Entry        `json:"topDelayed"`
	PendingRequests    map[string]int `json:"pendingRequestsByType"`
	LateRequestsCount  int            `json:"lateRequests"`
	ReworkedItemsOfDay int            `json:"reworkedItems"`
}

// BuildDashboard computes the KPIs for the window
func BuildDashboard(items []*domain.WorkItem, requests []*domain.WarehouseRequest, p *domain.Pipeline, day DayWindow, now time.Time) Dashboard {
	d := Dashboard{
		Day:              day,
		GeneratedAt:      now,
		FinishedQuantity: make(map[string]int),
		BucketCounts:     make(map[string]int),
		TopDelayed:       []Entry{},
		PendingRequests:  make(map[string]int),
	}
	for _, st := range p.Stages() {
		d.FinishedQuantity[st.Name] = 0
		d.BucketCounts[BucketName(domain.Queued(st.Name))] = 0
		d.BucketCounts[BucketName(domain.Active(st.Name))] = 0
	}
	for _, t := range p.Warehouse.Types {
		d.PendingRequests[t] = 0
	}

	var late []Entry
	for _, item := range items {
		if item.ReworkOf == "" && len(item.StageHistory) > 0 && day.Contains(item.StageHistory[0].EntryAt) {
			d.ArrivedQuantity += item.Quantity
		}
		if item.ReworkOf != "" && day.Contains(item.CreatedAt) {
			d.ReworkedItemsOfDay++
		}
		for _, rec := range item.StageHistory {
			if rec.FinishedAt != nil && day.Contains(*rec.FinishedAt) {
				d.FinishedQuantity[rec.Stage] += item.Quantity
			}
		}
		if item.Status == domain.ItemStatusFinished && item.FinishedAt != nil && day.Contains(*item.FinishedAt) {
			d.CompletedItems++
		}

		if !item.IsOpen() {
			continue
		}
		d.BucketCounts[BucketName(item.Position())]++
		e := newEntry(item, p, now)
		switch e.Urgency.Level {
		case domain.UrgencyLate:
			d.LateCount++
			late = append(late, e)
		case domain.UrgencyWarning:
			d.WarningCount++
		}
	}

	sort.SliceStable(late, func(i, j int) bool {
		if late[i].Urgency.Remaining != late[j].Urgency.Remaining {
			return late[i].Urgency.Remaining < late[j].Urgency.Remaining
		}
		return late[i].Item.ItemID < late[j].Item.ItemID
	})
	if len(late) > TopDelayedLimit {
		late = late[:TopDelayedLimit]
	}
	if late != nil {
		d.TopDelayed = late
	}

	for _, r := range requests {
		if r.Status != domain.RequestStatusPending {
			continue
		}
		d.PendingRequests[r.Type]++
		if domain.RequestUrgency(r, p.Warehouse.Allowance, p.Urgency, now).Level == domain.UrgencyLate {
			d.LateRequestsCount++
		}
	}

	return d
}

// FilterByText keeps items whose code, reference or description contains
// query, ignoring case
func FilterByText(items []*domain.WorkItem, query string) []*domain.WorkItem {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]*domain.WorkItem, 0)
	for _, item := range items {
		if strings.Contains(strings.ToLower(item.ItemCode), q) ||
			strings.Contains(strings.ToLower(item.ReferenceNumber), q) ||
			strings.Contains(strings.ToLower(item.Description), q) {
			out = append(out, item)
		}
	}
	return out
}
