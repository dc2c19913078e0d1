package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// StageFinished is the terminal pseudo stage. It is never configurable.
const StageFinished = "finished"

// Phase distinguishes waiting for a stage from being worked on in it
type Phase string

const (
	PhaseQueued Phase = "QUEUED"
	PhaseActive Phase = "ACTIVE"
)

// Boundary names the transition an inspection gate sits on
type Boundary string

const (
	// BoundaryStart gates Queued(S) -> Active(S)
	BoundaryStart Boundary = "start"
	// BoundaryFinish gates Active(S) -> next
	BoundaryFinish Boundary = "finish"
)

// Position is where an item sits in the pipeline
type Position struct {
	Stage string `json:"stage" bson:"stage"`
	Phase Phase  `json:"phase,omitempty" bson:"phase,omitempty"`
}

// Queued returns the waiting position of a stage
func Queued(stage string) Position { return Position{Stage: stage, Phase: PhaseQueued} }

// Active returns the working position of a stage
func Active(stage string) Position { return Position{Stage: stage, Phase: PhaseActive} }

// Finished returns the terminal position
func Finished() Position { return Position{Stage: StageFinished} }

// IsFinished reports whether the position is terminal
func (p Position) IsFinished() bool { return p.Stage == StageFinished }

func (p Position) String() string {
	if p.IsFinished() {
		return StageFinished
	}
	return p.Stage + "." + strings.ToLower(string(p.Phase))
}

// StageDefinition is one configured processing stage
type StageDefinition struct {
	Name        string        `json:"name"`
	DisplayName string        `json:"displayName"`
	Allowance   time.Duration `json:"-"`
}

// AllowanceMinutes is the allowance in whole minutes, 0 meaning no deadline
func (s StageDefinition) AllowanceMinutes() int { return int(s.Allowance / time.Minute) }

// ProductAllowance overrides stage allowances for one item code. Stages it
// does not name keep the stage allowance.
type ProductAllowance struct {
	ItemCode   string
	Allowances map[string]time.Duration
}

func normalizeItemCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Gate is an inspection checkpoint on a stage boundary
type Gate struct {
	Stage    string   `json:"stage"`
	Boundary Boundary `json:"boundary"`
}

// UrgencyPolicy holds the thresholds used by the deadline classifier
type UrgencyPolicy struct {
	WarningThreshold time.Duration
	// DisplayCeiling normalises percentConsumed so bars compare across allowances
	DisplayCeiling time.Duration
}

// EvidencePolicy says which evidence each inspection branch demands.
// The override responsible name is always required.
type EvidencePolicy struct {
	StartRequiresReference    bool `json:"startRequiresReference"`
	StartRequiresEvaluator    bool `json:"startRequiresEvaluator"`
	ApprovalRequiresEvaluator bool `json:"approvalRequiresEvaluator"`
	OverrideRequiresReason    bool `json:"overrideRequiresReason"`
	ReworkRequiresReason      bool `json:"reworkRequiresReason"`
}

// RotationPolicy holds display rotation defaults
type RotationPolicy struct {
	DefaultFilters  []string
	DefaultInterval time.Duration
	MinInterval     time.Duration
}

// WarehousePolicy configures the warehouse request tracker
type WarehousePolicy struct {
	Types     []string
	Allowance time.Duration
}

// ProductionDay defines when a production day begins
type ProductionDay struct {
	StartHour int
	Location  *time.Location
}

// Start returns the beginning of the production day containing now
func (d ProductionDay) Start(now time.Time) time.Time {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), d.StartHour, 0, 0, 0, loc)
	if local.Before(start) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// PipelineSettings is the raw input NewPipeline validates
type PipelineSettings struct {
	Stages        []StageDefinition
	Gates         []Gate
	Products      []ProductAllowance
	Urgency       UrgencyPolicy
	Evidence      EvidencePolicy
	Rotation      RotationPolicy
	Warehouse     WarehousePolicy
	Day           ProductionDay
	FinishedLimit int
	FastTrackTag  string
}

// DefaultPipelineSettings returns the built-in production line
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		Stages: []StageDefinition{
			{Name: "washing", DisplayName: "Washing", Allowance: 60 * time.Minute},
			{Name: "adhesive", DisplayName: "Adhesive", Allowance: 60 * time.Minute},
		},
		Gates: []Gate{
			{Stage: "adhesive", Boundary: BoundaryStart},
			{Stage: "adhesive", Boundary: BoundaryFinish},
		},
		Urgency: UrgencyPolicy{
			WarningThreshold: 20 * time.Minute,
			DisplayCeiling:   240 * time.Minute,
		},
		Evidence: EvidencePolicy{
			StartRequiresReference: true,
			StartRequiresEvaluator: true,
		},
		Rotation: RotationPolicy{
			DefaultFilters:  []string{FilterAll},
			DefaultInterval: 30 * time.Second,
			MinInterval:     5 * time.Second,
		},
		Warehouse: WarehousePolicy{
			Types:     []string{"PROFILE", "HARDWARE"},
			Allowance: 60 * time.Minute,
		},
		Day:           ProductionDay{StartHour: 6, Location: time.UTC},
		FinishedLimit: 10,
		FastTrackTag:  "Calculo 1",
	}
}

var stageNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// Pipeline is the validated, immutable stage configuration
type Pipeline struct {
	stages   []StageDefinition
	index    map[string]int
	gates    map[Gate]bool
	products map[string]map[string]time.Duration
	codes    []string

	Urgency       UrgencyPolicy
	Evidence      EvidencePolicy
	Rotation      RotationPolicy
	Warehouse     WarehousePolicy
	Day           ProductionDay
	FinishedLimit int
	FastTrackTag  string
}

// NewPipeline validates settings and builds a Pipeline
func NewPipeline(s PipelineSettings) (*Pipeline, error) {
	if len(s.Stages) == 0 {
		return nil, fmt.Errorf("%w: pipeline needs at least one stage", ErrValidation)
	}

	p := &Pipeline{
		stages:        make([]StageDefinition, 0, len(s.Stages)),
		index:         make(map[string]int, len(s.Stages)),
		gates:         make(map[Gate]bool, len(s.Gates)),
		products:      make(map[string]map[string]time.Duration, len(s.Products)),
		Urgency:       s.Urgency,
		Evidence:      s.Evidence,
		Rotation:      s.Rotation,
		Warehouse:     s.Warehouse,
		Day:           s.Day,
		FinishedLimit: s.FinishedLimit,
		FastTrackTag:  s.FastTrackTag,
	}

	for _, st := range s.Stages {
		if st.Name == StageFinished {
			return nil, fmt.Errorf("%w: stage name %q is reserved", ErrValidation, StageFinished)
		}
		if !stageNamePattern.MatchString(st.Name) {
			return nil, fmt.Errorf("%w: invalid stage name %q", ErrValidation, st.Name)
		}
		if _, dup := p.index[st.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate stage %q", ErrValidation, st.Name)
		}
		if st.Allowance < 0 {
			return nil, fmt.Errorf("%w: stage %q has a negative allowance", ErrValidation, st.Name)
		}
		if st.DisplayName == "" {
			st.DisplayName = st.Name
		}
		p.index[st.Name] = len(p.stages)
		p.stages = append(p.stages, st)
	}

	for _, g := range s.Gates {
		if _, ok := p.index[g.Stage]; !ok {
			return nil, fmt.Errorf("%w: gate references unknown stage %q", ErrValidation, g.Stage)
		}
		if g.Boundary != BoundaryStart && g.Boundary != BoundaryFinish {
			return nil, fmt.Errorf("%w: unknown gate boundary %q", ErrValidation, g.Boundary)
		}
		p.gates[g] = true
	}

	for _, pr := range s.Products {
		code := normalizeItemCode(pr.ItemCode)
		if code == "" {
			return nil, fmt.Errorf("%w: product allowance needs an item code", ErrValidation)
		}
		if _, dup := p.products[code]; dup {
			return nil, fmt.Errorf("%w: duplicate product %q", ErrValidation, code)
		}
		allowances := make(map[string]time.Duration, len(pr.Allowances))
		for stage, a := range pr.Allowances {
			if _, ok := p.index[stage]; !ok {
				return nil, fmt.Errorf("%w: product %q references unknown stage %q", ErrValidation, code, stage)
			}
			if a < 0 {
				return nil, fmt.Errorf("%w: product %q has a negative allowance for %q", ErrValidation, code, stage)
			}
			allowances[stage] = a
		}
		p.products[code] = allowances
		p.codes = append(p.codes, code)
	}

	if p.Urgency.WarningThreshold < 0 || p.Urgency.DisplayCeiling < 0 {
		return nil, fmt.Errorf("%w: urgency thresholds must not be negative", ErrValidation)
	}
	if p.FinishedLimit <= 0 {
		p.FinishedLimit = 10
	}
	if p.Rotation.MinInterval <= 0 {
		p.Rotation.MinInterval = 5 * time.Second
	}
	if p.Rotation.DefaultInterval < p.Rotation.MinInterval {
		return nil, fmt.Errorf("%w: rotation interval below minimum", ErrValidation)
	}
	if len(p.Rotation.DefaultFilters) == 0 {
		p.Rotation.DefaultFilters = []string{FilterAll}
	}

	types := make([]string, 0, len(p.Warehouse.Types))
	for _, t := range p.Warehouse.Types {
		types = append(types, strings.ToUpper(strings.TrimSpace(t)))
	}
	p.Warehouse.Types = types

	if p.Day.StartHour < 0 || p.Day.StartHour > 23 {
		return nil, fmt.Errorf("%w: production day start hour out of range", ErrValidation)
	}
	if p.Day.Location == nil {
		p.Day.Location = time.UTC
	}

	for _, f := range p.Rotation.DefaultFilters {
		if _, err := p.ParseFilter(f); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// MustDefaultPipeline builds the default pipeline, panicking on error
func MustDefaultPipeline() *Pipeline {
	p, err := NewPipeline(DefaultPipelineSettings())
	if err != nil {
		panic(err)
	}
	return p
}

// Stages returns a copy of the ordered stage list
func (p *Pipeline) Stages() []StageDefinition {
	out := make([]StageDefinition, len(p.stages))
	copy(out, p.stages)
	return out
}

// Gates returns the configured gates in pipeline order
func (p *Pipeline) Gates() []Gate {
	out := make([]Gate, 0, len(p.gates))
	for _, st := range p.stages {
		for _, b := range []Boundary{BoundaryStart, BoundaryFinish} {
			g := Gate{Stage: st.Name, Boundary: b}
			if p.gates[g] {
				out = append(out, g)
			}
		}
	}
	return out
}

// First returns the first stage name
func (p *Pipeline) First() string { return p.stages[0].Name }

// Index returns the position of stage in the pipeline, or -1
func (p *Pipeline) Index(stage string) int {
	if i, ok := p.index[stage]; ok {
		return i
	}
	return -1
}

// HasStage reports whether stage is configured
func (p *Pipeline) HasStage(stage string) bool {
	_, ok := p.index[stage]
	return ok
}

// Next returns the stage after stage, StageFinished after the last one
func (p *Pipeline) Next(stage string) (string, bool) {
	i, ok := p.index[stage]
	if !ok {
		return "", false
	}
	if i+1 >= len(p.stages) {
		return StageFinished, true
	}
	return p.stages[i+1].Name, true
}

// Allowance returns the stage allowance; 0 means no deadline
func (p *Pipeline) Allowance(stage string) time.Duration {
	if i, ok := p.index[stage]; ok {
		return p.stages[i].Allowance
	}
	return 0
}

// AllowanceFor returns the allowance an item code gets in stage, falling
// back to the stage allowance when the product does not override it
func (p *Pipeline) AllowanceFor(itemCode, stage string) time.Duration {
	if overrides, ok := p.products[normalizeItemCode(itemCode)]; ok {
		if a, ok := overrides[stage]; ok {
			return a
		}
	}
	return p.Allowance(stage)
}

// Products returns the product overrides in configuration order
func (p *Pipeline) Products() []ProductAllowance {
	out := make([]ProductAllowance, 0, len(p.codes))
	for _, code := range p.codes {
		allowances := make(map[string]time.Duration, len(p.products[code]))
		for stage, a := range p.products[code] {
			allowances[stage] = a
		}
		out = append(out, ProductAllowance{ItemCode: code, Allowances: allowances})
	}
	return out
}

// DisplayName returns the human readable stage name
func (p *Pipeline) DisplayName(stage string) string {
	if i, ok := p.index[stage]; ok {
		return p.stages[i].DisplayName
	}
	return stage
}

// IsGated reports whether an inspection guards the boundary
func (p *Pipeline) IsGated(stage string, boundary Boundary) bool {
	return p.gates[Gate{Stage: stage, Boundary: boundary}]
}

// NextPosition returns the only legal successor of pos
func (p *Pipeline) NextPosition(pos Position) (Position, bool) {
	if pos.IsFinished() || !p.HasStage(pos.Stage) {
		return Position{}, false
	}
	if pos.Phase == PhaseQueued {
		return Active(pos.Stage), true
	}
	next, _ := p.Next(pos.Stage)
	if next == StageFinished {
		return Finished(), true
	}
	return Queued(next), true
}

// IsFastTrack reports whether a priority tag marks an item for fast track
func (p *Pipeline) IsFastTrack(priorityTag string) bool {
	if p.FastTrackTag == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(priorityTag), p.FastTrackTag)
}

// IsWarehouseType reports whether t is a configured warehouse request type
func (p *Pipeline) IsWarehouseType(t string) bool {
	t = strings.ToUpper(strings.TrimSpace(t))
	for _, known := range p.Warehouse.Types {
		if known == t {
			return true
		}
	}
	return false
}
