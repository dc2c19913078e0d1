// Package projection turns work items and warehouse requests into board
// views. Everything here is pure; callers supply now.
package projection

import (
	"sort"
	"time"

	"github.com/wms-platform/production-tracking/internal/domain"
)

// FinishedBucket is the name of the finished bucket
const FinishedBucket = "finished"

// ViewOptions controls a board projection
type ViewOptions struct {
	Filter          domain.Filter
	IncludeFinished bool
	FinishedLimit   int
}

// Entry is one item on the board
type Entry struct {
	Item      *domain.WorkItem `json:"item"`
	Urgency   domain.Urgency   `json:"urgency"`
	FastTrack bool             `json:"fastTrack"`
}

// Bucket groups the items of one stage phase
type Bucket struct {
	Name         string       `json:"name"`
	Stage        string       `json:"stage"`
	Phase        domain.Phase `json:"phase,omitempty"`
	DisplayName  string       `json:"displayName"`
	Entries      []Entry      `json:"entries"`
	LateCount    int          `json:"lateCount"`
	WarningCount int          `json:"warningCount"`
}

// Board is the projected view for one filter
type Board struct {
	Filter      string    `json:"filter"`
	GeneratedAt time.Time `json:"generatedAt"`
	Buckets     []Bucket  `json:"buckets"`
	Finished    *Bucket   `json:"finished,omitempty"`
}

// BucketName returns "<stage>.queued" or "<stage>.active"
func BucketName(pos domain.Position) string {
	return pos.String()
}

// Project builds the board. Closed items never appear.
func Project(items []*domain.WorkItem, p *domain.Pipeline, opts ViewOptions, now time.Time) Board {
	board := Board{
		Filter:      opts.Filter.String(),
		GeneratedAt: now,
		Buckets:     []Bucket{},
	}

	if opts.Filter.Kind == domain.FilterKindWarehouse {
		return board
	}

	index := make(map[string]int)
	for _, st := range p.Stages() {
		if opts.Filter.Kind == domain.FilterKindStage && opts.Filter.Value != st.Name {
			continue
		}
		for _, pos := range []domain.Position{domain.Queued(st.Name), domain.Active(st.Name)} {
			index[BucketName(pos)] = len(board.Buckets)
			board.Buckets = append(board.Buckets, Bucket{
				Name:        BucketName(pos),
				Stage:       st.Name,
				Phase:       pos.Phase,
				DisplayName: st.DisplayName,
				Entries:     []Entry{},
			})
		}
	}

	var finished []Entry
	for _, item := range items {
		switch item.Status {
		case domain.ItemStatusQueued, domain.ItemStatusActive:
			i, ok := index[BucketName(item.Position())]
			if !ok {
				continue
			}
			e := newEntry(item, p, now)
			b := &board.Buckets[i]
			b.Entries = append(b.Entries, e)
			switch e.Urgency.Level {
			case domain.UrgencyLate:
				b.LateCount++
			case domain.UrgencyWarning:
				b.WarningCount++
			}
		case domain.ItemStatusFinished:
			if opts.IncludeFinished && opts.Filter.Kind != domain.FilterKindStage {
				finished = append(finished, newEntry(item, p, now))
			}
		}
	}

	for i := range board.Buckets {
		SortByDeadline(board.Buckets[i].Entries)
	}

	if opts.IncludeFinished && opts.Filter.Kind != domain.FilterKindStage {
		limit := opts.FinishedLimit
		if limit <= 0 {
			limit = p.FinishedLimit
		}
		sortFinished(finished)
		if len(finished) > limit {
			finished = finished[:limit]
		}
		if finished == nil {
			finished = []Entry{}
		}
		board.Finished = &Bucket{
			Name:        FinishedBucket,
			Stage:       domain.StageFinished,
			DisplayName: "Finished",
			Entries:     finished,
		}
	}

	return board
}

func newEntry(item *domain.WorkItem, p *domain.Pipeline, now time.Time) Entry {
	return Entry{
		Item:      item,
		Urgency:   domain.ComputeUrgency(item, p, now),
		FastTrack: p.IsFastTrack(item.PriorityTag),
	}
}

// SortByDeadline orders entries by ascending deadline, items without a
// deadline last, ties broken by creation time then item id
func SortByDeadline(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Urgency.HasDeadline != b.Urgency.HasDeadline {
			return a.Urgency.HasDeadline
		}
		if a.Urgency.HasDeadline && !a.Urgency.Deadline.Equal(b.Urgency.Deadline) {
			return a.Urgency.Deadline.Before(b.Urgency.Deadline)
		}
		if !a.Item.CreatedAt.Equal(b.Item.CreatedAt) {
			return a.Item.CreatedAt.Before(b.Item.CreatedAt)
		}
		return a.Item.ItemID < b.Item.ItemID
	})
}

func sortFinished(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Item.FinishedAt, entries[j].Item.FinishedAt
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		if !a.Equal(*b) {
			return a.After(*b)
		}
		return entries[i].Item.ItemID < entries[j].Item.ItemID
	})
}
