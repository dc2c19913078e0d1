package domain

import "time"

// DelayEscalation records that an item turned late in a stage. There is at
// most one per item and stage.
type DelayEscalation struct {
	ID           string        `bson:"_id" json:"id"`
	ItemID       string        `bson:"itemId" json:"itemId"`
	Stage        string        `bson:"stage" json:"stage"`
	Phase        Phase         `bson:"phase" json:"phase"`
	Deadline     time.Time     `bson:"deadline" json:"deadline"`
	EscalatedAt  time.Time     `bson:"escalatedAt" json:"escalatedAt"`
	DomainEvents []DomainEvent `bson:"-" json:"-"`
}

// EscalationID is the natural key of an escalation
func EscalationID(itemID, stage string) string {
	return itemID + "/" + stage
}

// EscalateIfLate returns an escalation when the item is late at now. It never
// changes the item.
func EscalateIfLate(item *WorkItem, p *Pipeline, now time.Time) (*DelayEscalation, bool) {
	u := ComputeUrgency(item, p, now)
	if u.Level != UrgencyLate {
		return nil, false
	}

	pos := item.Position()
	e := &DelayEscalation{
		ID:          EscalationID(item.ItemID, item.Stage),
		ItemID:      item.ItemID,
		Stage:       item.Stage,
		Phase:       pos.Phase,
		Deadline:    u.Deadline,
		EscalatedAt: now,
	}
	e.DomainEvents = []DomainEvent{&ItemDelayEscalatedEvent{
		ItemID:          item.ItemID,
		ReferenceNumber: item.ReferenceNumber,
		Stage:           item.Stage,
		Phase:           pos.Phase,
		Deadline:        u.Deadline,
		OverdueSeconds:  int64(now.Sub(u.Deadline) / time.Second),
		EscalatedAt:     now,
	}}
	return e, true
}

// GetDomainEvents returns all domain events
func (e *DelayEscalation) GetDomainEvents() []DomainEvent {
	return e.DomainEvents
}

// ClearDomainEvents clears all domain events
func (e *DelayEscalation) ClearDomainEvents() {
	e.DomainEvents = nil
}
