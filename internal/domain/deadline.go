package domain

import "time"

// UrgencyLevel classifies how close an item is to its deadline
type UrgencyLevel string

const (
	UrgencyNormal  UrgencyLevel = "NORMAL"
	UrgencyWarning UrgencyLevel = "WARNING"
	UrgencyLate    UrgencyLevel = "LATE"
)

// Rank orders levels so that later levels compare greater
func (l UrgencyLevel) Rank() int {
	switch l {
	case UrgencyLate:
		return 2
	case UrgencyWarning:
		return 1
	}
	return 0
}

// Urgency is the derived time pressure on an item or request
type Urgency struct {
	Deadline         time.Time     `json:"deadline"`
	HasDeadline      bool          `json:"hasDeadline"`
	Remaining        time.Duration `json:"-"`
	RemainingSeconds int64         `json:"remainingSeconds"`
	PercentConsumed  float64       `json:"percentConsumed"`
	Level            UrgencyLevel  `json:"level"`
}

// Deadline returns when the item's current stage is due, using the item's
// product allowance when one is configured. Deadlines are derived on demand
// and never stored.
func (p *Pipeline) Deadline(item *WorkItem) (time.Time, bool) {
	if item.Status != ItemStatusQueued && item.Status != ItemStatusActive {
		return time.Time{}, false
	}
	allowance := p.AllowanceFor(item.ItemCode, item.Stage)
	if allowance <= 0 {
		return time.Time{}, false
	}
	rec := item.CurrentRecord()
	if rec == nil {
		return time.Time{}, false
	}
	ref := rec.EntryAt
	if rec.ActiveStartAt != nil {
		ref = *rec.ActiveStartAt
	}
	return ref.Add(allowance), true
}

// StartLate reports whether work on a stage record began after the item's
// allowance for that stage ran out, counted from entry into the stage. An
// open record that has not started is late once now passes that point.
func (p *Pipeline) StartLate(item *WorkItem, rec StageRecord, now time.Time) bool {
	allowance := p.AllowanceFor(item.ItemCode, rec.Stage)
	if allowance <= 0 {
		return false
	}
	startBy := rec.EntryAt.Add(allowance)
	if rec.ActiveStartAt != nil {
		return rec.ActiveStartAt.After(startBy)
	}
	if rec.FinishedAt != nil || !item.IsOpen() {
		return false
	}
	return now.After(startBy)
}

// ComputeUrgency classifies an item at now
func ComputeUrgency(item *WorkItem, p *Pipeline, now time.Time) Urgency {
	deadline, ok := p.Deadline(item)
	if !ok {
		return Urgency{Level: UrgencyNormal}
	}
	return ClassifyDeadline(deadline, now, p.Urgency)
}

// ClassifyDeadline is the classifier shared by items and warehouse requests
func ClassifyDeadline(deadline, now time.Time, policy UrgencyPolicy) Urgency {
	remaining := deadline.Sub(now)
	u := Urgency{
		Deadline:         deadline,
		HasDeadline:      true,
		Remaining:        remaining,
		RemainingSeconds: int64(remaining / time.Second),
	}

	switch {
	case remaining <= 0:
		u.Level = UrgencyLate
		u.PercentConsumed = 1
		return u
	case remaining < policy.WarningThreshold:
		u.Level = UrgencyWarning
	default:
		u.Level = UrgencyNormal
	}

	if policy.DisplayCeiling > 0 {
		u.PercentConsumed = clamp01(float64(policy.DisplayCeiling-remaining) / float64(policy.DisplayCeiling))
	}
	return u
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
