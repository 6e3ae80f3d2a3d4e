package qualitygate

import (
	"fmt"
	"strings"
)

// GateConfig defines the configuration for quality gates. A negative limit disables
// the corresponding gate.
type GateConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	MaxCycles     int    `mapstructure:"max_cycles" json:"max_cycles"`
	CycleSeverity string `mapstructure:"cycle_severity" json:"cycle_severity"`

	MaxParticipation      float64 `mapstructure:"max_participation" json:"max_participation"`
	ParticipationSeverity string  `mapstructure:"participation_severity" json:"participation_severity"`

	MaxLargestCycle      int    `mapstructure:"max_largest_cycle" json:"max_largest_cycle"`
	LargestCycleSeverity string `mapstructure:"largest_cycle_severity" json:"largest_cycle_severity"`

	MaxHardProjects      int    `mapstructure:"max_hard_projects" json:"max_hard_projects"`
	HardProjectsSeverity string `mapstructure:"hard_projects_severity" json:"hard_projects_severity"`

	MaxDangling      int    `mapstructure:"max_dangling" json:"max_dangling"`
	DanglingSeverity string `mapstructure:"dangling_severity" json:"dangling_severity"`
}

// DefaultConfig returns sensible default gate configuration.
func DefaultConfig() *GateConfig {
	return &GateConfig{
		Enabled:               true,
		MaxCycles:             0,
		CycleSeverity:         "required",
		MaxParticipation:      25,
		ParticipationSeverity: "advisory",
		MaxLargestCycle:       -1, // disabled by default
		LargestCycleSeverity:  "advisory",
		MaxHardProjects:       -1, // disabled by default
		HardProjectsSeverity:  "advisory",
		MaxDangling:           0,
		DanglingSeverity:      "advisory",
	}
}

// Validate returns warnings for unrecognized severities.
func (c *GateConfig) Validate() []string {
	var warnings []string
	for _, f := range []struct{ name, value string }{
		{"cycle_severity", c.CycleSeverity},
		{"participation_severity", c.ParticipationSeverity},
		{"largest_cycle_severity", c.LargestCycleSeverity},
		{"hard_projects_severity", c.HardProjectsSeverity},
		{"dangling_severity", c.DanglingSeverity},
	} {
		if _, ok := severities[strings.ToLower(f.value)]; !ok && f.value != "" {
			warnings = append(warnings, fmt.Sprintf("gates.%s %q is not one of critical, required, advisory; using required", f.name, f.value))
		}
	}
	return warnings
}

var severities = map[string]GateSeverity{
	"critical": SeverityCritical,
	"required": SeverityRequired,
	"advisory": SeverityAdvisory,
}

// parseSeverity converts a string to GateSeverity.
func parseSeverity(s string) GateSeverity {
	if sev, ok := severities[strings.ToLower(s)]; ok {
		return sev
	}
	return SeverityRequired
}

// BuildPipeline constructs a gate pipeline from configuration. A disabled
// configuration yields an empty pipeline, which always passes.
func BuildPipeline(cfg *GateConfig) *Pipeline {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	p := NewPipeline()
	if !cfg.Enabled {
		return p
	}

	if cfg.MaxDangling >= 0 {
		p.AddGate(NewDanglingReferencesGate(cfg.MaxDangling, parseSeverity(cfg.DanglingSeverity)))
	}

	if cfg.MaxCycles >= 0 {
		p.AddGate(NewCycleGate(cfg.MaxCycles, parseSeverity(cfg.CycleSeverity)))
	}

	if cfg.MaxLargestCycle >= 0 {
		p.AddGate(NewLargestCycleGate(cfg.MaxLargestCycle, parseSeverity(cfg.LargestCycleSeverity)))
	}

	if cfg.MaxParticipation >= 0 {
		p.AddGate(NewParticipationGate(cfg.MaxParticipation, parseSeverity(cfg.ParticipationSeverity)))
	}

	if cfg.MaxHardProjects >= 0 {
		p.AddGate(NewHardProjectsGate(cfg.MaxHardProjects, parseSeverity(cfg.HardProjectsSeverity)))
	}

	return p
}

// FormatReport returns a human-readable quality gate report.
func FormatReport(result *PipelineResult) string {
	var s strings.Builder
	s.WriteString("╔══════════════════════════════════════════╗\n")
	s.WriteString("║        Quality Gate Report               ║\n")
	s.WriteString("╠══════════════════════════════════════════╣\n")

	for _, gr := range result.Gates {
		icon := "✓"
		switch gr.Status {
		case GateFailed:
			icon = "✗"
		case GateSkipped:
			icon = "○"
		case GateWarning:
			icon = "⚠"
		}

		severity := ""
		switch gr.Severity {
		case SeverityCritical:
			severity = "[CRITICAL]"
		case SeverityRequired:
			severity = "[REQUIRED]"
		case SeverityAdvisory:
			severity = "[ADVISORY]"
		}

		fmt.Fprintf(&s, "║ %s %-20s %-10s %s\n", icon, gr.Name, severity, gr.Message)
		for _, d := range gr.Details {
			fmt.Fprintf(&s, "║   → %s\n", d)
		}
	}

	s.WriteString("╠══════════════════════════════════════════╣\n")
	status := "PASSED"
	if result.Status == GateFailed {
		status = "FAILED"
	}
	fmt.Fprintf(&s, "║ Result: %s (%s)\n", status, result.Summary)
	s.WriteString("╚══════════════════════════════════════════╝\n")

	return s.String()
}
