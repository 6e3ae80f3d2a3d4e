package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/efebarandurmaz/fracture/internal/scoring"
)

func hasWarning(warnings []string, substr string) bool {
	for _, w := range warnings {
		if strings.Contains(w, substr) {
			return true
		}
	}
	return false
}

func TestValidate_Default(t *testing.T) {
	warnings := Default().Validate()
	if len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}
}

func TestValidate_Weights(t *testing.T) {
	cfg := Default()
	cfg.Analysis.Weights.Coupling = 0.9
	if err := cfg.ValidateWeights(); err == nil {
		t.Fatal("expected error for weights summing above 1")
	}
	if !hasWarning(cfg.Validate(), "weights") {
		t.Error("expected weights warning")
	}
}

func TestValidate_SampleRate(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want bool // true = should warn
	}{
		{"zero", 0, false},
		{"half", 0.5, false},
		{"one", 1.0, false},
		{"negative", -0.1, true},
		{"too_high", 1.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Tracing.SampleRate = tt.rate
			if got := hasWarning(cfg.Validate(), "sample_rate"); got != tt.want {
				t.Errorf("sample_rate=%.1f: hasWarn=%v, want=%v", tt.rate, got, tt.want)
			}
		})
	}
}

func TestValidate_Misc(t *testing.T) {
	cfg := Default()
	cfg.Analysis.Workers = -2
	cfg.Analysis.APISaturation = -1
	cfg.Graph.URI = "bolt://localhost:7687"
	cfg.Log.Level = "verbose"
	cfg.Gates.CycleSeverity = "blocking"

	warnings := cfg.Validate()
	for _, want := range []string{"workers", "api_saturation", "username", "log level", "cycle_severity"} {
		if !hasWarning(warnings, want) {
			t.Errorf("expected warning containing %q, got %v", want, warnings)
		}
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fracture.yaml")
	body := `
analysis:
  weights:
    coupling: 0.25
    complexity: 0.25
    tech_debt: 0.25
    external_api: 0.25
  framework_patterns: ["Microsoft.*"]
gates:
  max_cycles: 3
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FRACTURE_ANALYSIS_WORKERS", "8")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.Weights != (scoring.Weights{Coupling: 0.25, Complexity: 0.25, TechDebt: 0.25, ExternalAPI: 0.25}) {
		t.Errorf("weights = %+v", cfg.Analysis.Weights)
	}
	if cfg.Analysis.Workers != 8 {
		t.Errorf("workers = %d, want 8 from env", cfg.Analysis.Workers)
	}
	if len(cfg.Analysis.FrameworkPatterns) != 1 || cfg.Analysis.FrameworkPatterns[0] != "Microsoft.*" {
		t.Errorf("framework_patterns = %v", cfg.Analysis.FrameworkPatterns)
	}
	if cfg.Gates.MaxCycles != 3 {
		t.Errorf("max_cycles = %d, want 3", cfg.Gates.MaxCycles)
	}
	// Unset keys keep defaults.
	if cfg.Gates.CycleSeverity != "required" || cfg.Analysis.MaxSuggestions != 10 {
		t.Errorf("defaults lost: severity=%q max_suggestions=%d", cfg.Gates.CycleSeverity, cfg.Analysis.MaxSuggestions)
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Analysis.Weights != scoring.DefaultWeights() {
		t.Errorf("weights = %+v, want defaults", cfg.Analysis.Weights)
	}
	if !cfg.Gates.Enabled {
		t.Error("gates should be enabled by default")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load should fail on a missing file")
	}
}
