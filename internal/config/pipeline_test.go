package config

import (
	"io/fs"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/production-tracking/internal/domain"
)

func TestLoadPipelineFileDefaultsWhenEmpty(t *testing.T) {
	p, err := LoadPipelineFile("")
	require.NoError(t, err)
	assert.Equal(t, "washing", p.First())
	assert.True(t, p.IsGated("adhesive", domain.BoundaryFinish))
	assert.Equal(t, 20*time.Minute, p.Urgency.WarningThreshold)
}

func TestLoadShippedPipelineFile(t *testing.T) {
	p, err := LoadPipelineFile(filepath.Join("..", "..", "config", "pipeline.yaml"))
	require.NoError(t, err)
	assert.Len(t, p.Stages(), 2)
	assert.Equal(t, "Calculo 1", p.FastTrackTag)
	assert.Equal(t, []string{"PROFILE", "HARDWARE"}, p.Warehouse.Types)
	assert.Equal(t, 90*time.Minute, p.AllowanceFor("AL-2040", "washing"))
	assert.Equal(t, time.Hour, p.AllowanceFor("PF-220", "washing"))
}

func TestParsePipelineProducts(t *testing.T) {
	p, err := ParsePipeline([]byte(`
products:
  - itemCode: AL-1
    allowanceMinutes:
      adhesive: 15
`))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, p.AllowanceFor("AL-1", "adhesive"))
	assert.Equal(t, time.Hour, p.AllowanceFor("AL-1", "washing"))

	rebuilt, err := FromPipeline(p).Build()
	require.NoError(t, err)
	assert.Equal(t, p.Products(), rebuilt.Products())
}

func TestParsePipelineOverridesDefaults(t *testing.T) {
	p, err := ParsePipeline([]byte(`
stages:
  - name: blasting
    allowanceMinutes: 45
  - name: washing
    allowanceMinutes: 0
urgency:
  warningThresholdMinutes: 10
`))
	require.NoError(t, err)

	assert.Equal(t, "blasting", p.First())
	assert.Equal(t, "blasting", p.DisplayName("blasting"))
	assert.Equal(t, time.Duration(0), p.Allowance("washing"))
	assert.Empty(t, p.Gates())
	assert.Equal(t, 10*time.Minute, p.Urgency.WarningThreshold)
	assert.Equal(t, 240*time.Minute, p.Urgency.DisplayCeiling)
	assert.True(t, p.Evidence.StartRequiresReference)
}

func TestParsePipelineRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown option", "colour: red\n"},
		{"reserved stage", "stages:\n  - name: finished\n"},
		{"negative allowance", "stages:\n  - name: washing\n    allowanceMinutes: -5\n"},
		{"bad boundary", "inspectionGates:\n  - stage: adhesive\n    boundary: middle\n"},
		{"gate on unknown stage", "inspectionGates:\n  - stage: painting\n    boundary: start\n"},
		{"duplicate stages", "stages:\n  - name: washing\n  - name: washing\n"},
		{"bad timezone", "productionDay:\n  timezone: Mars/Olympus\n"},
		{"not yaml", "stages: [\n"},
		{"product without code", "products:\n  - allowanceMinutes:\n      washing: 30\n"},
		{"product negative allowance", "products:\n  - itemCode: AL-1\n    allowanceMinutes:\n      washing: -1\n"},
		{"product unknown stage", "products:\n  - itemCode: AL-1\n    allowanceMinutes:\n      painting: 30\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePipeline([]byte(tt.doc))
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestFromPipelineRoundTrip(t *testing.T) {
	p := domain.MustDefaultPipeline()
	cfg := FromPipeline(p)
	rebuilt, err := cfg.Build()
	require.NoError(t, err)
	assert.Equal(t, p.Stages(), rebuilt.Stages())
	assert.Equal(t, p.Gates(), rebuilt.Gates())
}

func TestLoadPipelineFileMissing(t *testing.T) {
	_, err := LoadPipelineFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
