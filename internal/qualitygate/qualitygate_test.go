package qualitygate

import (
	"errors"
	"strings"
	"testing"
)

func TestCycleGate(t *testing.T) {
	tests := []struct {
		name       string
		maxCycles  int
		severity   GateSeverity
		cycles     int
		wantStatus GateStatus
	}{
		{
			name:       "pass with no cycles",
			maxCycles:  0,
			severity:   SeverityRequired,
			cycles:     0,
			wantStatus: GatePassed,
		},
		{
			name:       "pass at limit",
			maxCycles:  2,
			severity:   SeverityRequired,
			cycles:     2,
			wantStatus: GatePassed,
		},
		{
			name:       "fail above limit",
			maxCycles:  0,
			severity:   SeverityCritical,
			cycles:     1,
			wantStatus: GateFailed,
		},
		{
			name:       "advisory warns instead of failing",
			maxCycles:  0,
			severity:   SeverityAdvisory,
			cycles:     3,
			wantStatus: GateWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewCycleGate(tt.maxCycles, tt.severity)
			ctx := &EvalContext{
				TotalCycles:    tt.cycles,
				CycleSummaries: []string{"cycle 1: A, B"},
			}

			result, err := gate.Evaluate(ctx)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if result.Status != tt.wantStatus {
				t.Errorf("got status %v, want %v", result.Status, tt.wantStatus)
			}

			if result.Name != "cycles" {
				t.Errorf("got name %q, want %q", result.Name, "cycles")
			}

			if result.Severity != tt.severity {
				t.Errorf("got severity %v, want %v", result.Severity, tt.severity)
			}

			if result.Value != float64(tt.cycles) || result.Limit != float64(tt.maxCycles) {
				t.Errorf("got value/limit %v/%v, want %d/%d", result.Value, result.Limit, tt.cycles, tt.maxCycles)
			}

			if tt.wantStatus != GatePassed && len(result.Details) != 1 {
				t.Errorf("expected cycle summaries as details, got %v", result.Details)
			}
		})
	}
}

func TestParticipationGate(t *testing.T) {
	tests := []struct {
		name       string
		maxPercent float64
		rate       float64
		wantStatus GateStatus
	}{
		{"below", 25, 10, GatePassed},
		{"equal", 25, 25, GatePassed},
		{"above", 25, 40.5, GateFailed},
		{"zero tolerance", 0, 0.1, GateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewParticipationGate(tt.maxPercent, SeverityRequired)
			result, err := gate.Evaluate(&EvalContext{ParticipationRate: tt.rate})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("got status %v, want %v", result.Status, tt.wantStatus)
			}
			if !strings.Contains(result.Message, "%") {
				t.Errorf("message should be expressed in percent: %q", result.Message)
			}
		})
	}
}

func TestLargestCycleGate(t *testing.T) {
	gate := NewLargestCycleGate(3, SeverityRequired)

	result, err := gate.Evaluate(&EvalContext{LargestCycleSize: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != GatePassed {
		t.Errorf("got status %v, want passed", result.Status)
	}

	result, err = gate.Evaluate(&EvalContext{LargestCycleSize: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != GateFailed {
		t.Errorf("got status %v, want failed", result.Status)
	}
	if !strings.Contains(result.Message, "7 exceeds limit 3") {
		t.Errorf("unexpected message %q", result.Message)
	}
}

func TestHardProjectsGate(t *testing.T) {
	gate := NewHardProjectsGate(1, SeverityRequired)
	ctx := &EvalContext{HardProjects: []string{"/src/Billing.csproj", "/src/Legacy.csproj"}}

	result, err := gate.Evaluate(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != GateFailed {
		t.Errorf("got status %v, want failed", result.Status)
	}
	if len(result.Details) != 2 {
		t.Errorf("got %d details, want 2", len(result.Details))
	}
}

func TestDanglingReferencesGate(t *testing.T) {
	tests := []struct {
		name       string
		max        int
		dangling   []string
		wantStatus GateStatus
	}{
		{"none", 0, nil, GatePassed},
		{"within", 2, []string{"a -> b"}, GatePassed},
		{"exceeded", 0, []string{"a -> b"}, GateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate := NewDanglingReferencesGate(tt.max, SeverityRequired)
			result, err := gate.Evaluate(&EvalContext{DanglingReferences: tt.dangling})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Status != tt.wantStatus {
				t.Errorf("got status %v, want %v", result.Status, tt.wantStatus)
			}
		})
	}
}

func TestGateNilContext(t *testing.T) {
	if _, err := NewCycleGate(0, SeverityRequired).Evaluate(nil); err == nil {
		t.Error("expected error for nil context")
	}
}

type erroringGate struct{}

func (erroringGate) Name() string           { return "broken" }
func (erroringGate) Severity() GateSeverity { return SeverityRequired }
func (erroringGate) Evaluate(*EvalContext) (*GateResult, error) {
	return nil, errors.New("boom")
}

func TestPipelineAllPassing(t *testing.T) {
	pipeline := NewPipeline(
		NewDanglingReferencesGate(0, SeverityCritical),
		NewCycleGate(0, SeverityRequired),
		NewParticipationGate(10, SeverityAdvisory),
	)

	result := pipeline.Run(&EvalContext{TotalProjects: 12})

	if result.Status != GatePassed {
		t.Errorf("got status %v, want passed", result.Status)
	}
	if result.PassedCount != 3 {
		t.Errorf("got %d passed, want 3", result.PassedCount)
	}
	if result.Failed() {
		t.Error("Failed() should be false")
	}
	if !strings.Contains(result.Summary, "3 passed") {
		t.Errorf("unexpected summary %q", result.Summary)
	}
}

func TestPipelineCriticalGateFailure(t *testing.T) {
	pipeline := NewPipeline(
		NewDanglingReferencesGate(0, SeverityCritical),
		NewCycleGate(0, SeverityRequired),
		NewParticipationGate(10, SeverityAdvisory),
	)

	result := pipeline.Run(&EvalContext{
		DanglingReferences: []string{"/a -> /missing"},
		TotalCycles:        4,
	})

	if result.Status != GateFailed {
		t.Errorf("got status %v, want failed", result.Status)
	}
	if result.FailedCount != 1 || result.SkippedCount != 2 {
		t.Errorf("got failed=%d skipped=%d, want 1 and 2", result.FailedCount, result.SkippedCount)
	}
	for _, gr := range result.Gates[1:] {
		if gr.Status != GateSkipped {
			t.Errorf("gate %s should be skipped, got %v", gr.Name, gr.Status)
		}
	}
}

func TestPipelineRequiredGateFailure(t *testing.T) {
	pipeline := NewPipeline(
		NewCycleGate(0, SeverityRequired),
		NewLargestCycleGate(10, SeverityRequired),
	)

	result := pipeline.Run(&EvalContext{TotalCycles: 1, LargestCycleSize: 2})

	if result.Status != GateFailed {
		t.Errorf("got status %v, want failed", result.Status)
	}
	// A required failure does not stop later gates.
	if result.Gates[1].Status != GatePassed {
		t.Errorf("second gate should still run, got %v", result.Gates[1].Status)
	}
}

func TestPipelineAdvisoryWarningOnly(t *testing.T) {
	pipeline := NewPipeline(NewParticipationGate(5, SeverityAdvisory))

	result := pipeline.Run(&EvalContext{ParticipationRate: 50})

	if result.Status != GatePassed {
		t.Errorf("advisory failure must not fail the run, got %v", result.Status)
	}
	if result.WarningCount != 1 {
		t.Errorf("got %d warnings, want 1", result.WarningCount)
	}
}

func TestPipelineGateError(t *testing.T) {
	result := NewPipeline(erroringGate{}).Run(&EvalContext{})
	if result.Status != GateFailed {
		t.Errorf("got status %v, want failed", result.Status)
	}
	if !strings.Contains(result.Gates[0].Message, "boom") {
		t.Errorf("error message not reported: %q", result.Gates[0].Message)
	}
}

func TestPipelineEmptyGates(t *testing.T) {
	result := NewPipeline().Run(&EvalContext{TotalCycles: 100})
	if result.Status != GatePassed {
		t.Errorf("empty pipeline should pass, got %v", result.Status)
	}
	if len(result.Gates) != 0 {
		t.Errorf("got %d gate results, want 0", len(result.Gates))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled {
		t.Error("default config should be enabled")
	}
	if cfg.MaxCycles != 0 {
		t.Errorf("got MaxCycles=%d, want 0", cfg.MaxCycles)
	}
	if cfg.MaxHardProjects >= 0 || cfg.MaxLargestCycle >= 0 {
		t.Error("hard_projects and largest_cycle gates should be disabled by default")
	}
	if warnings := cfg.Validate(); len(warnings) != 0 {
		t.Errorf("default config should have no warnings, got %v", warnings)
	}
}

func TestBuildPipeline(t *testing.T) {
	cfg := &GateConfig{
		Enabled:               true,
		MaxCycles:             1,
		CycleSeverity:         string(SeverityCritical),
		MaxParticipation:      30,
		ParticipationSeverity: string(SeverityRequired),
		MaxLargestCycle:       5,
		LargestCycleSeverity:  string(SeverityAdvisory),
		MaxHardProjects:       2,
		HardProjectsSeverity:  "ADVISORY",
		MaxDangling:           0,
		DanglingSeverity:      string(SeverityRequired),
	}

	pipeline := BuildPipeline(cfg)
	if pipeline.Len() != 5 {
		t.Fatalf("got %d gates, want 5", pipeline.Len())
	}

	result := pipeline.Run(&EvalContext{TotalCycles: 1, ParticipationRate: 20, LargestCycleSize: 2})

	want := []string{"dangling_references", "cycles", "largest_cycle", "participation", "hard_projects"}
	for i, gr := range result.Gates {
		if gr.Name != want[i] {
			t.Errorf("gate %d: got %q, want %q", i, gr.Name, want[i])
		}
	}
	if result.Gates[4].Severity != SeverityAdvisory {
		t.Errorf("severity should parse case-insensitively, got %v", result.Gates[4].Severity)
	}
	if result.Status != GatePassed {
		t.Errorf("got status %v, want passed", result.Status)
	}
}

func TestBuildPipelineDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false

	pipeline := BuildPipeline(cfg)
	if pipeline.Len() != 0 {
		t.Errorf("disabled config should build an empty pipeline, got %d gates", pipeline.Len())
	}
	if result := pipeline.Run(&EvalContext{TotalCycles: 9}); result.Status != GatePassed {
		t.Errorf("got status %v, want passed", result.Status)
	}
}

func TestBuildPipelineNilConfig(t *testing.T) {
	if got := BuildPipeline(nil).Len(); got != 3 {
		t.Errorf("default pipeline has %d gates, want 3", got)
	}
}

func TestConfigValidateUnknownSeverity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CycleSeverity = "fatal"
	warnings := cfg.Validate()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "cycle_severity") {
		t.Errorf("expected one cycle_severity warning, got %v", warnings)
	}
	if parseSeverity("fatal") != SeverityRequired {
		t.Error("unknown severity should default to required")
	}
}

func TestFormatReport(t *testing.T) {
	pipeline := NewPipeline(
		NewCycleGate(0, SeverityRequired),
		NewParticipationGate(10, SeverityAdvisory),
		NewDanglingReferencesGate(5, SeverityAdvisory),
	)
	result := pipeline.Run(&EvalContext{
		TotalCycles:       1,
		CycleSummaries:    []string{"cycle 1 (2 projects): Api, Core"},
		ParticipationRate: 50,
	})

	report := FormatReport(result)

	for _, s := range []string{
		"Quality Gate Report",
		"cycles",
		"participation",
		"[REQUIRED]",
		"[ADVISORY]",
		"cycle 1 (2 projects): Api, Core",
		"Result: FAILED",
	} {
		if !strings.Contains(report, s) {
			t.Errorf("report missing %q\n%s", s, report)
		}
	}
}

func TestMultiplePipelineRuns(t *testing.T) {
	pipeline := NewPipeline(NewCycleGate(0, SeverityRequired))

	first := pipeline.Run(&EvalContext{TotalCycles: 2})
	second := pipeline.Run(&EvalContext{TotalCycles: 0})

	if first.Status != GateFailed || second.Status != GatePassed {
		t.Errorf("runs should be independent: first=%v second=%v", first.Status, second.Status)
	}
}

func TestGateInterfaceCompliance(t *testing.T) {
	gates := []Gate{
		NewCycleGate(0, SeverityRequired),
		NewParticipationGate(0, SeverityRequired),
		NewLargestCycleGate(0, SeverityRequired),
		NewHardProjectsGate(0, SeverityRequired),
		NewDanglingReferencesGate(0, SeverityRequired),
	}
	seen := make(map[string]bool)
	for _, g := range gates {
		if g.Name() == "" {
			t.Error("gate name must not be empty")
		}
		if seen[g.Name()] {
			t.Errorf("duplicate gate name %q", g.Name())
		}
		seen[g.Name()] = true
	}
}

func TestSeverityBlocking(t *testing.T) {
	tests := []struct {
		severity GateSeverity
		want     bool
	}{
		{SeverityCritical, true},
		{SeverityRequired, true},
		{SeverityAdvisory, false},
	}
	for _, tt := range tests {
		if got := tt.severity.Blocking(); got != tt.want {
			t.Errorf("%s.Blocking() = %v, want %v", tt.severity, got, tt.want)
		}
	}
}
