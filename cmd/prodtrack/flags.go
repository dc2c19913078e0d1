package main

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/wms-platform/production-tracking/internal/domain"
)

// filterList is a repeatable, comma separated --filter flag. Only the shape
// is checked here; stage and type names are checked by the API.
type filterList struct {
	values  []string
	changed bool
}

var _ pflag.SliceValue = (*filterList)(nil)

func (f *filterList) String() string { return strings.Join(f.values, ",") }

func (f *filterList) Type() string { return "filters" }

func (f *filterList) Set(raw string) error {
	if !f.changed {
		f.values = nil
		f.changed = true
	}
	for _, part := range strings.Split(raw, ",") {
		v, err := normalizeFilter(part)
		if err != nil {
			return err
		}
		f.values = append(f.values, v)
	}
	return nil
}

func (f *filterList) Append(v string) error { return f.Set(v) }

func (f *filterList) Replace(vs []string) error {
	f.values = nil
	for _, v := range vs {
		if err := f.Set(v); err != nil {
			return err
		}
	}
	return nil
}

func (f *filterList) GetSlice() []string { return append([]string(nil), f.values...) }

func normalizeFilter(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, domain.FilterAll) {
		return domain.FilterAll, nil
	}
	kind, value, ok := strings.Cut(raw, ":")
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", fmt.Errorf("filter %q must be ALL, STAGE:<name> or WAREHOUSE:<type>", raw)
	}
	switch domain.FilterKind(strings.ToUpper(kind)) {
	case domain.FilterKindStage:
		return string(domain.FilterKindStage) + ":" + strings.ToLower(value), nil
	case domain.FilterKindWarehouse:
		return string(domain.FilterKindWarehouse) + ":" + strings.ToUpper(value), nil
	}
	return "", fmt.Errorf("filter %q must be ALL, STAGE:<name> or WAREHOUSE:<type>", raw)
}

func addFilterFlag(fs *pflag.FlagSet, f *filterList, usage string) {
	fs.Var(f, "filter", usage)
}
