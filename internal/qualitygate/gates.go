package qualitygate

import "fmt"

// limitGate fails when an observed value exceeds a configured maximum. Advisory gates
// report a warning instead of a failure.
type limitGate struct {
	name     string
	label    string
	limit    float64
	severity GateSeverity
	format   string
	observe  func(ctx *EvalContext) (value float64, details []string)
}

func (g *limitGate) Name() string           { return g.name }
func (g *limitGate) Severity() GateSeverity { return g.severity }

func (g *limitGate) Evaluate(ctx *EvalContext) (*GateResult, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%s gate: nil evaluation context", g.name)
	}
	value, details := g.observe(ctx)
	r := &GateResult{
		Name:     g.name,
		Severity: g.severity,
		Value:    value,
		Limit:    g.limit,
	}

	v, l := fmt.Sprintf(g.format, value), fmt.Sprintf(g.format, g.limit)
	if value <= g.limit {
		r.Status = GatePassed
		r.Message = fmt.Sprintf("%s %s within limit %s", g.label, v, l)
		return r, nil
	}

	r.Status = GateFailed
	if g.severity == SeverityAdvisory {
		r.Status = GateWarning
	}
	r.Message = fmt.Sprintf("%s %s exceeds limit %s", g.label, v, l)
	r.Details = details
	return r, nil
}

// NewCycleGate limits the number of dependency cycles.
func NewCycleGate(maxCycles int, severity GateSeverity) Gate {
	return &limitGate{
		name:     "cycles",
		label:    "Cycle count",
		limit:    float64(maxCycles),
		severity: severity,
		format:   "%.0f",
		observe: func(ctx *EvalContext) (float64, []string) {
			return float64(ctx.TotalCycles), ctx.CycleSummaries
		},
	}
}

// NewParticipationGate limits the percentage of projects caught in cycles.
func NewParticipationGate(maxPercent float64, severity GateSeverity) Gate {
	return &limitGate{
		name:     "participation",
		label:    "Cycle participation",
		limit:    maxPercent,
		severity: severity,
		format:   "%.1f%%",
		observe: func(ctx *EvalContext) (float64, []string) {
			return ctx.ParticipationRate, nil
		},
	}
}

// NewLargestCycleGate limits the size of the biggest cycle.
func NewLargestCycleGate(maxSize int, severity GateSeverity) Gate {
	return &limitGate{
		name:     "largest_cycle",
		label:    "Largest cycle size",
		limit:    float64(maxSize),
		severity: severity,
		format:   "%.0f",
		observe: func(ctx *EvalContext) (float64, []string) {
			return float64(ctx.LargestCycleSize), nil
		},
	}
}

// NewHardProjectsGate limits how many projects score as Hard to extract.
func NewHardProjectsGate(maxHard int, severity GateSeverity) Gate {
	return &limitGate{
		name:     "hard_projects",
		label:    "Hard projects",
		limit:    float64(maxHard),
		severity: severity,
		format:   "%.0f",
		observe: func(ctx *EvalContext) (float64, []string) {
			return float64(len(ctx.HardProjects)), ctx.HardProjects
		},
	}
}

// NewDanglingReferencesGate limits references to projects missing from the input.
func NewDanglingReferencesGate(maxDangling int, severity GateSeverity) Gate {
	return &limitGate{
		name:     "dangling_references",
		label:    "Dangling references",
		limit:    float64(maxDangling),
		severity: severity,
		format:   "%.0f",
		observe: func(ctx *EvalContext) (float64, []string) {
			return float64(len(ctx.DanglingReferences)), ctx.DanglingReferences
		},
	}
}
