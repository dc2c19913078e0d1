package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"

	"github.com/wms-platform/production-tracking/internal/application"
	"github.com/wms-platform/production-tracking/internal/domain"
)

// DisplayFormValues backs the display configuration form
type DisplayFormValues struct {
	Filters   []string
	Interval  string
	Rotating  bool
	UpdatedBy string
}

// FilterOptions lists every filter the pipeline accepts, in display order
func FilterOptions(p *domain.Pipeline) []string {
	opts := []string{domain.FilterAll}
	for _, st := range p.Stages() {
		opts = append(opts, domain.Filter{Kind: domain.FilterKindStage, Value: st.Name}.String())
	}
	for _, t := range p.Warehouse.Types {
		opts = append(opts, domain.Filter{Kind: domain.FilterKindWarehouse, Value: t}.String())
	}
	return opts
}

// ValuesFromSession seeds the form with the current configuration
func ValuesFromSession(s *domain.DisplaySession) *DisplayFormValues {
	return &DisplayFormValues{
		Filters:  append([]string(nil), s.Filters...),
		Interval: strconv.Itoa(s.IntervalSeconds),
		Rotating: s.RotationEnabled,
	}
}

// NewDisplayForm builds the interactive configuration form
func NewDisplayForm(p *domain.Pipeline, v *DisplayFormValues) *huh.Form {
	options := make([]huh.Option[string], 0)
	for _, f := range FilterOptions(p) {
		options = append(options, huh.NewOption(filterLabel(p, f), f))
	}
	minSeconds := int(p.Rotation.MinInterval / time.Second)

	return huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Filters").
				Description("Shown in rotation order").
				Options(options...).
				Value(&v.Filters).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("pick at least one filter")
					}
					return nil
				}),
			huh.NewInput().
				Title("Interval (seconds)").
				Placeholder(strconv.Itoa(int(p.Rotation.DefaultInterval/time.Second))).
				Value(&v.Interval).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil {
						return fmt.Errorf("enter a whole number of seconds")
					}
					if n < minSeconds {
						return fmt.Errorf("must be at least %d", minSeconds)
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Rotate automatically?").
				Value(&v.Rotating),
			huh.NewInput().
				Title("Your name").
				Value(&v.UpdatedBy),
		),
	).WithTheme(formTheme()).WithShowHelp(false)
}

func filterLabel(p *domain.Pipeline, filter string) string {
	kind, value, ok := strings.Cut(filter, ":")
	if !ok {
		return "All stages"
	}
	if domain.FilterKind(kind) == domain.FilterKindStage {
		return "Stage: " + p.DisplayName(value)
	}
	return "Warehouse: " + value
}

// Command converts submitted values. Filter order follows the option list
// because multi select does not keep pick order.
func (v *DisplayFormValues) Command(p *domain.Pipeline, sessionID string) (application.ConfigureDisplayCommand, error) {
	interval, err := strconv.Atoi(strings.TrimSpace(v.Interval))
	if err != nil {
		return application.ConfigureDisplayCommand{}, fmt.Errorf("invalid interval %q: %w", v.Interval, err)
	}

	picked := make(map[string]bool, len(v.Filters))
	for _, f := range v.Filters {
		picked[f] = true
	}
	filters := make([]string, 0, len(v.Filters))
	for _, f := range FilterOptions(p) {
		if picked[f] {
			filters = append(filters, f)
		}
	}

	rotating := v.Rotating
	return application.ConfigureDisplayCommand{
		SessionID:       sessionID,
		Filters:         filters,
		IntervalSeconds: interval,
		RotationEnabled: &rotating,
		UpdatedBy:       strings.TrimSpace(v.UpdatedBy),
	}, nil
}
