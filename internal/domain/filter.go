package domain

import (
	"fmt"
	"strings"
)

// FilterAll shows every production bucket
const FilterAll = "ALL"

// FilterKind is the family a display filter belongs to
type FilterKind string

const (
	FilterKindAll       FilterKind = "ALL"
	FilterKindStage     FilterKind = "STAGE"
	FilterKindWarehouse FilterKind = "WAREHOUSE"
)

// Filter selects what a board or display frame shows
type Filter struct {
	Kind  FilterKind `json:"kind"`
	Value string     `json:"value,omitempty"`
}

func (f Filter) String() string {
	if f.Kind == FilterKindAll || f.Kind == "" {
		return FilterAll
	}
	return string(f.Kind) + ":" + f.Value
}

// ParseFilter parses ALL, STAGE:<name> or WAREHOUSE:<type> against the pipeline
func (p *Pipeline) ParseFilter(raw string) (Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, FilterAll) {
		return Filter{Kind: FilterKindAll}, nil
	}

	kind, value, ok := strings.Cut(raw, ":")
	if !ok {
		return Filter{}, fmt.Errorf("%w: unknown filter %q", ErrValidation, raw)
	}

	switch FilterKind(strings.ToUpper(kind)) {
	case FilterKindStage:
		value = strings.ToLower(strings.TrimSpace(value))
		if !p.HasStage(value) {
			return Filter{}, fmt.Errorf("%w: filter references unknown stage %q", ErrValidation, value)
		}
		return Filter{Kind: FilterKindStage, Value: value}, nil
	case FilterKindWarehouse:
		value = strings.ToUpper(strings.TrimSpace(value))
		if !p.IsWarehouseType(value) {
			return Filter{}, fmt.Errorf("%w: filter references unknown warehouse type %q", ErrValidation, value)
		}
		return Filter{Kind: FilterKindWarehouse, Value: value}, nil
	}

	return Filter{}, fmt.Errorf("%w: unknown filter %q", ErrValidation, raw)
}
