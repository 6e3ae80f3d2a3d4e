package qualitygate

import (
	"fmt"
	"time"
)

// GateStatus represents the result of a quality gate check.
type GateStatus string

const (
	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
	GateSkipped GateStatus = "skipped"
	GateWarning GateStatus = "warning"
)

// GateSeverity indicates how critical a gate failure is.
type GateSeverity string

const (
	SeverityCritical GateSeverity = "critical" // Remaining gates are skipped
	SeverityRequired GateSeverity = "required" // Fails the run
	SeverityAdvisory GateSeverity = "advisory" // Warning only, does not block
)

// GateResult captures the outcome of a single gate evaluation.
type GateResult struct {
	Name        string        `json:"name"`
	Status      GateStatus    `json:"status"`
	Severity    GateSeverity  `json:"severity"`
	Value       float64       `json:"value"`
	Limit       float64       `json:"limit"`
	Message     string        `json:"message"`
	Details     []string      `json:"details,omitempty"`
	Duration    time.Duration `json:"duration"`
	EvaluatedAt time.Time     `json:"evaluated_at"`
}

// Gate is the interface all quality gates must implement.
type Gate interface {
	Name() string
	Severity() GateSeverity
	Evaluate(ctx *EvalContext) (*GateResult, error)
}

// EvalContext carries the analysis figures gates judge.
type EvalContext struct {
	TotalProjects      int
	TotalCycles        int
	LargestCycleSize   int
	ParticipationRate  float64  // percent of projects in at least one cycle
	CycleSummaries     []string // one line per cycle, used as gate details
	HardProjects       []string // projects in the Hard extraction category
	DanglingReferences []string
	Metadata           map[string]string
}

// PipelineResult captures the complete gate pipeline evaluation.
type PipelineResult struct {
	Status       GateStatus    `json:"status"` // passed unless a critical or required gate failed
	Gates        []GateResult  `json:"gates"`
	PassedCount  int           `json:"passed_count"`
	FailedCount  int           `json:"failed_count"`
	SkippedCount int           `json:"skipped_count"`
	WarningCount int           `json:"warning_count"`
	Duration     time.Duration `json:"duration"`
	EvaluatedAt  time.Time     `json:"evaluated_at"`
	Summary      string        `json:"summary"`
}

// Failed reports whether a blocking gate failed.
func (r *PipelineResult) Failed() bool { return r.Status == GateFailed }

// Pipeline orchestrates multiple quality gates in sequence.
type Pipeline struct {
	gates []Gate
}

// NewPipeline creates a new quality gate pipeline.
func NewPipeline(gates ...Gate) *Pipeline {
	return &Pipeline{gates: gates}
}

// AddGate appends a gate to the pipeline.
func (p *Pipeline) AddGate(g Gate) {
	p.gates = append(p.gates, g)
}

// Len returns the number of configured gates.
func (p *Pipeline) Len() int { return len(p.gates) }

// Run evaluates the gates in order. A failing critical gate halts the run and the
// remaining gates are reported as skipped. A gate that errors counts as failed.
func (p *Pipeline) Run(ctx *EvalContext) *PipelineResult {
	start := time.Now()
	result := &PipelineResult{Status: GatePassed, EvaluatedAt: start}

	halted := false
	for _, gate := range p.gates {
		if halted {
			result.record(skipped(gate))
			continue
		}

		gateStart := time.Now()
		gr, err := gate.Evaluate(ctx)
		if err != nil {
			gr = &GateResult{
				Name:     gate.Name(),
				Status:   GateFailed,
				Severity: gate.Severity(),
				Message:  fmt.Sprintf("Gate evaluation error: %v", err),
			}
		}
		gr.Duration = time.Since(gateStart)
		gr.EvaluatedAt = gateStart

		result.record(*gr)
		if gr.Status == GateFailed && gr.Severity == SeverityCritical {
			halted = true
		}
	}

	result.Duration = time.Since(start)
	result.Summary = fmt.Sprintf("Architecture gates: %d passed, %d failed, %d warnings, %d skipped [%s]",
		result.PassedCount, result.FailedCount, result.WarningCount, result.SkippedCount, result.Status)
	return result
}

// Blocking reports whether a failure at this severity fails the whole run.
func (s GateSeverity) Blocking() bool {
	return s == SeverityCritical || s == SeverityRequired
}

func (r *PipelineResult) record(gr GateResult) {
	r.Gates = append(r.Gates, gr)
	switch gr.Status {
	case GatePassed:
		r.PassedCount++
	case GateFailed:
		r.FailedCount++
		if gr.Severity.Blocking() {
			r.Status = GateFailed
		}
	case GateWarning:
		r.WarningCount++
	case GateSkipped:
		r.SkippedCount++
	}
}

func skipped(g Gate) GateResult {
	return GateResult{
		Name:        g.Name(),
		Status:      GateSkipped,
		Severity:    g.Severity(),
		Message:     "Skipped after a critical gate failed",
		EvaluatedAt: time.Now(),
	}
}
