// Package config loads the pipeline configuration file.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"

	"github.com/wms-platform/production-tracking/internal/domain"
)

//go:embed pipeline.schema.json
var pipelineSchema []byte

const schemaURL = "prodtrack://config/pipeline.schema.json"

// StageConfig is one stage entry
type StageConfig struct {
	Name             string `yaml:"name" json:"name"`
	DisplayName      string `yaml:"displayName,omitempty" json:"displayName,omitempty"`
	AllowanceMinutes int    `yaml:"allowanceMinutes" json:"allowanceMinutes"`
}

// ProductConfig overrides stage allowances for one item code
type ProductConfig struct {
	ItemCode         string         `yaml:"itemCode" json:"itemCode"`
	AllowanceMinutes map[string]int `yaml:"allowanceMinutes" json:"allowanceMinutes"`
}

// GateConfig is one inspection gate entry
type GateConfig struct {
	Stage    string `yaml:"stage" json:"stage"`
	Boundary string `yaml:"boundary" json:"boundary"`
}

// UrgencyConfig holds classifier thresholds
type UrgencyConfig struct {
	WarningThresholdMinutes int `yaml:"warningThresholdMinutes" json:"warningThresholdMinutes"`
	DisplayCeilingMinutes   int `yaml:"displayCeilingMinutes" json:"displayCeilingMinutes"`
}

// EvidenceConfig holds inspection evidence requirements
type EvidenceConfig struct {
	StartRequiresReference    bool `yaml:"startRequiresReference" json:"startRequiresReference"`
	StartRequiresEvaluator    bool `yaml:"startRequiresEvaluator" json:"startRequiresEvaluator"`
	ApprovalRequiresEvaluator bool `yaml:"approvalRequiresEvaluator" json:"approvalRequiresEvaluator"`
	OverrideRequiresReason    bool `yaml:"overrideRequiresReason" json:"overrideRequiresReason"`
	ReworkRequiresReason      bool `yaml:"reworkRequiresReason" json:"reworkRequiresReason"`
}

// RotationConfig holds display defaults
type RotationConfig struct {
	DefaultFilters         []string `yaml:"defaultFilters" json:"defaultFilters"`
	DefaultIntervalSeconds int      `yaml:"defaultIntervalSeconds" json:"defaultIntervalSeconds"`
	MinIntervalSeconds     int      `yaml:"minIntervalSeconds" json:"minIntervalSeconds"`
}

// BoardConfig holds board options
type BoardConfig struct {
	FinishedLimit int    `yaml:"finishedLimit" json:"finishedLimit"`
	FastTrackTag  string `yaml:"fastTrackTag" json:"fastTrackTag"`
}

// WarehouseConfig holds warehouse tracker options
type WarehouseConfig struct {
	Types            []string `yaml:"types" json:"types"`
	AllowanceMinutes int      `yaml:"allowanceMinutes" json:"allowanceMinutes"`
}

// ProductionDayConfig defines the production day
type ProductionDayConfig struct {
	StartHour int    `yaml:"startHour" json:"startHour"`
	Timezone  string `yaml:"timezone" json:"timezone"`
}

// PipelineConfig is the decoded pipeline file
type PipelineConfig struct {
	Stages          []StageConfig       `yaml:"stages" json:"stages"`
	InspectionGates []GateConfig        `yaml:"inspectionGates" json:"inspectionGates"`
	Products        []ProductConfig     `yaml:"products,omitempty" json:"products,omitempty"`
	Urgency         UrgencyConfig       `yaml:"urgency" json:"urgency"`
	Evidence        EvidenceConfig      `yaml:"evidence" json:"evidence"`
	Rotation        RotationConfig      `yaml:"rotation" json:"rotation"`
	Board           BoardConfig         `yaml:"board" json:"board"`
	Warehouse       WarehouseConfig     `yaml:"warehouse" json:"warehouse"`
	ProductionDay   ProductionDayConfig `yaml:"productionDay" json:"productionDay"`
}

// DefaultPipelineConfig mirrors domain.DefaultPipelineSettings
func DefaultPipelineConfig() *PipelineConfig {
	s := domain.DefaultPipelineSettings()

	cfg := &PipelineConfig{
		Urgency: UrgencyConfig{
			WarningThresholdMinutes: int(s.Urgency.WarningThreshold / time.Minute),
			DisplayCeilingMinutes:   int(s.Urgency.DisplayCeiling / time.Minute),
		},
		Evidence: EvidenceConfig(s.Evidence),
		Rotation: RotationConfig{
			DefaultFilters:         s.Rotation.DefaultFilters,
			DefaultIntervalSeconds: int(s.Rotation.DefaultInterval / time.Second),
			MinIntervalSeconds:     int(s.Rotation.MinInterval / time.Second),
		},
		Board: BoardConfig{
			FinishedLimit: s.FinishedLimit,
			FastTrackTag:  s.FastTrackTag,
		},
		Warehouse: WarehouseConfig{
			Types:            s.Warehouse.Types,
			AllowanceMinutes: int(s.Warehouse.Allowance / time.Minute),
		},
		ProductionDay: ProductionDayConfig{
			StartHour: s.Day.StartHour,
			Timezone:  s.Day.Location.String(),
		},
	}
	for _, st := range s.Stages {
		cfg.Stages = append(cfg.Stages, StageConfig{
			Name:             st.Name,
			DisplayName:      st.DisplayName,
			AllowanceMinutes: st.AllowanceMinutes(),
		})
	}
	for _, g := range s.Gates {
		cfg.InspectionGates = append(cfg.InspectionGates, GateConfig{Stage: g.Stage, Boundary: string(g.Boundary)})
	}
	return cfg
}

// LoadPipelineFile reads and validates a pipeline file. An empty path
// yields the built-in default.
func LoadPipelineFile(path string) (*domain.Pipeline, error) {
	if path == "" {
		return DefaultPipelineConfig().Build()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	return ParsePipeline(data)
}

// ParsePipeline validates YAML against the schema and builds the pipeline.
// Options missing from the document keep their defaults.
func ParsePipeline(data []byte) (*domain.Pipeline, error) {
	cfg, err := DecodePipelineConfig(data)
	if err != nil {
		return nil, err
	}
	return cfg.Build()
}

// DecodePipelineConfig validates YAML against the schema and decodes it over
// the defaults
func DecodePipelineConfig(data []byte) (*PipelineConfig, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: failed to parse pipeline config: %v", domain.ErrValidation, err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	cfg := DefaultPipelineConfig()
	if doc, ok := raw.(map[string]interface{}); ok {
		_, hasStages := doc["stages"]
		_, hasGates := doc["inspectionGates"]
		// default gates only make sense for the default stages
		if hasStages && !hasGates {
			cfg.InspectionGates = nil
		}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to decode pipeline config: %v", domain.ErrValidation, err)
	}
	return cfg, nil
}

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(pipelineSchema))
		if err != nil {
			schemaErr = fmt.Errorf("failed to parse pipeline schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("failed to add pipeline schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile pipeline schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

func validateSchema(raw interface{}) error {
	s, err := schema()
	if err != nil {
		return err
	}

	// round trip through JSON so numbers and maps have the shapes the validator expects
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: pipeline config is not representable as JSON: %v", domain.ErrValidation, err)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return fmt.Errorf("%w: pipeline config: %s", domain.ErrValidation, strings.TrimSpace(ve.Error()))
		}
		return fmt.Errorf("%w: pipeline config: %v", domain.ErrValidation, err)
	}
	return nil
}

// Build converts the file representation into a validated pipeline
func (c *PipelineConfig) Build() (*domain.Pipeline, error) {
	loc, err := time.LoadLocation(c.ProductionDay.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown timezone %q", domain.ErrValidation, c.ProductionDay.Timezone)
	}

	s := domain.PipelineSettings{
		Urgency: domain.UrgencyPolicy{
			WarningThreshold: time.Duration(c.Urgency.WarningThresholdMinutes) * time.Minute,
			DisplayCeiling:   time.Duration(c.Urgency.DisplayCeilingMinutes) * time.Minute,
		},
		Evidence: domain.EvidencePolicy(c.Evidence),
		Rotation: domain.RotationPolicy{
			DefaultFilters:  c.Rotation.DefaultFilters,
			DefaultInterval: time.Duration(c.Rotation.DefaultIntervalSeconds) * time.Second,
			MinInterval:     time.Duration(c.Rotation.MinIntervalSeconds) * time.Second,
		},
		Warehouse: domain.WarehousePolicy{
			Types:     c.Warehouse.Types,
			Allowance: time.Duration(c.Warehouse.AllowanceMinutes) * time.Minute,
		},
		Day:           domain.ProductionDay{StartHour: c.ProductionDay.StartHour, Location: loc},
		FinishedLimit: c.Board.FinishedLimit,
		FastTrackTag:  c.Board.FastTrackTag,
	}
	for _, st := range c.Stages {
		s.Stages = append(s.Stages, domain.StageDefinition{
			Name:        st.Name,
			DisplayName: st.DisplayName,
			Allowance:   time.Duration(st.AllowanceMinutes) * time.Minute,
		})
	}
	for _, g := range c.InspectionGates {
		s.Gates = append(s.Gates, domain.Gate{Stage: g.Stage, Boundary: domain.Boundary(g.Boundary)})
	}
	for _, pr := range c.Products {
		allowances := make(map[string]time.Duration, len(pr.AllowanceMinutes))
		for stage, minutes := range pr.AllowanceMinutes {
			allowances[stage] = time.Duration(minutes) * time.Minute
		}
		s.Products = append(s.Products, domain.ProductAllowance{ItemCode: pr.ItemCode, Allowances: allowances})
	}

	return domain.NewPipeline(s)
}

// FromPipeline renders a pipeline back into its file representation
func FromPipeline(p *domain.Pipeline) *PipelineConfig {
	cfg := &PipelineConfig{
		Urgency: UrgencyConfig{
			WarningThresholdMinutes: int(p.Urgency.WarningThreshold / time.Minute),
			DisplayCeilingMinutes:   int(p.Urgency.DisplayCeiling / time.Minute),
		},
		Evidence: EvidenceConfig(p.Evidence),
		Rotation: RotationConfig{
			DefaultFilters:         p.Rotation.DefaultFilters,
			DefaultIntervalSeconds: int(p.Rotation.DefaultInterval / time.Second),
			MinIntervalSeconds:     int(p.Rotation.MinInterval / time.Second),
		},
		Board:     BoardConfig{FinishedLimit: p.FinishedLimit, FastTrackTag: p.FastTrackTag},
		Warehouse: WarehouseConfig{Types: p.Warehouse.Types, AllowanceMinutes: int(p.Warehouse.Allowance / time.Minute)},
		ProductionDay: ProductionDayConfig{
			StartHour: p.Day.StartHour,
			Timezone:  p.Day.Location.String(),
		},
	}
	for _, st := range p.Stages() {
		cfg.Stages = append(cfg.Stages, StageConfig{Name: st.Name, DisplayName: st.DisplayName, AllowanceMinutes: st.AllowanceMinutes()})
	}
	for _, g := range p.Gates() {
		cfg.InspectionGates = append(cfg.InspectionGates, GateConfig{Stage: g.Stage, Boundary: string(g.Boundary)})
	}
	for _, pr := range p.Products() {
		minutes := make(map[string]int, len(pr.Allowances))
		for stage, a := range pr.Allowances {
			minutes[stage] = int(a / time.Minute)
		}
		cfg.Products = append(cfg.Products, ProductConfig{ItemCode: pr.ItemCode, AllowanceMinutes: minutes})
	}
	return cfg
}
