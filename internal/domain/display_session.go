package domain

import (
	"fmt"
	"strings"
	"time"
)

// DisplaySession is the persisted configuration of one rotating display
type DisplaySession struct {
	SessionID       string    `bson:"_id" json:"sessionId"`
	Filters         []string  `bson:"filters" json:"filters"`
	IntervalSeconds int       `bson:"intervalSeconds" json:"intervalSeconds"`
	RotationEnabled bool      `bson:"rotationEnabled" json:"rotationEnabled"`
	UpdatedBy       string    `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	UpdatedAt       time.Time `bson:"updatedAt" json:"updatedAt"`
	Version         int64     `bson:"version" json:"version"`
}

// DisplayConfig is a requested configuration change
type DisplayConfig struct {
	Filters         []string
	IntervalSeconds int
	RotationEnabled *bool
	UpdatedBy       string
}

// NewDisplaySession returns an unsaved session with the pipeline defaults
func NewDisplaySession(sessionID string, p *Pipeline, now time.Time) (*DisplaySession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrValidation)
	}
	filters := make([]string, len(p.Rotation.DefaultFilters))
	copy(filters, p.Rotation.DefaultFilters)
	return &DisplaySession{
		SessionID:       sessionID,
		Filters:         filters,
		IntervalSeconds: int(p.Rotation.DefaultInterval / time.Second),
		RotationEnabled: true,
		UpdatedAt:       now,
	}, nil
}

// Interval returns the rotation interval
func (s *DisplaySession) Interval() time.Duration {
	return time.Duration(s.IntervalSeconds) * time.Second
}

// Configure validates cfg and returns the updated session
func (s *DisplaySession) Configure(p *Pipeline, cfg DisplayConfig, now time.Time) (*DisplaySession, error) {
	if len(cfg.Filters) == 0 {
		return nil, fmt.Errorf("%w: at least one filter is required", ErrValidation)
	}

	filters := make([]string, 0, len(cfg.Filters))
	seen := make(map[string]bool, len(cfg.Filters))
	for _, raw := range cfg.Filters {
		f, err := p.ParseFilter(raw)
		if err != nil {
			return nil, err
		}
		key := f.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		filters = append(filters, key)
	}

	minSeconds := int(p.Rotation.MinInterval / time.Second)
	if cfg.IntervalSeconds < minSeconds {
		return nil, fmt.Errorf("%w: interval must be at least %d seconds", ErrValidation, minSeconds)
	}

	out := *s
	out.Filters = filters
	out.IntervalSeconds = cfg.IntervalSeconds
	if cfg.RotationEnabled != nil {
		out.RotationEnabled = *cfg.RotationEnabled
	}
	out.UpdatedBy = strings.TrimSpace(cfg.UpdatedBy)
	out.UpdatedAt = now
	return &out, nil
}

// SetRotation pauses or resumes rotation, keeping the current filters
func (s *DisplaySession) SetRotation(enabled bool, updatedBy string, now time.Time) *DisplaySession {
	out := *s
	out.Filters = append([]string(nil), s.Filters...)
	out.RotationEnabled = enabled
	out.UpdatedBy = strings.TrimSpace(updatedBy)
	out.UpdatedAt = now
	return &out
}

// FilterAt returns the filter shown at a rotation index, wrapping around
func (s *DisplaySession) FilterAt(index int) string {
	if len(s.Filters) == 0 {
		return FilterAll
	}
	n := len(s.Filters)
	return s.Filters[((index%n)+n)%n]
}
