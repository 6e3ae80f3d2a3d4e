// Package analysis runs the full pipeline over a set of solutions: build the graph,
// detect cycles, find their weakest edges, rank the cuts, score every project for
// extraction, evaluate architecture gates and optionally persist a snapshot.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/efebarandurmaz/fracture/internal/breakpoint"
	"github.com/efebarandurmaz/fracture/internal/cycles"
	"github.com/efebarandurmaz/fracture/internal/depgraph"
	"github.com/efebarandurmaz/fracture/internal/graph"
	"github.com/efebarandurmaz/fracture/internal/metrics"
	"github.com/efebarandurmaz/fracture/internal/observability"
	"github.com/efebarandurmaz/fracture/internal/qualitygate"
	"github.com/efebarandurmaz/fracture/internal/scoring"
)

// Input is everything one run consumes. Nil lookups degrade to fallbacks.
type Input struct {
	Solutions  []depgraph.Solution
	CallCounts breakpoint.CallCounts
	Complexity scoring.ComplexitySource
	Frameworks scoring.FrameworkSource
	Endpoints  scoring.EndpointSource
}

// Options configure an Analyzer.
type Options struct {
	Weights          scoring.Weights
	APISaturation    int
	Workers          int
	IncludeFramework bool

	// Gates is evaluated after scoring. Nil skips gate evaluation.
	Gates *qualitygate.GateConfig

	// Repository receives a snapshot of every successful run. Nil skips persistence.
	Repository graph.Repository
}

// DefaultOptions returns the default weights with sequential scoring and default gates.
func DefaultOptions() Options {
	return Options{
		Weights:       scoring.DefaultWeights(),
		APISaturation: scoring.DefaultAPISaturation,
		Gates:         qualitygate.DefaultConfig(),
	}
}

// Result is the complete output of one run.
type Result struct {
	Graph       *depgraph.DependencyGraph   `json:"-"`
	Fingerprint string                      `json:"fingerprint"`
	BuildReport *depgraph.BuildReport       `json:"build_report"`
	Cycles      []*cycles.CycleInfo         `json:"cycles"`
	Statistics  cycles.Statistics           `json:"statistics"`
	Suggestions []breakpoint.Suggestion     `json:"suggestions"`
	Scores      []scoring.ExtractionScore   `json:"scores"`
	Gates       *qualitygate.PipelineResult `json:"gates,omitempty"`
	Metrics     *metrics.RunMetrics         `json:"metrics"`
}

// TopSuggestions returns at most n suggestions in rank order. n <= 0 returns all.
func (r *Result) TopSuggestions(n int) []breakpoint.Suggestion {
	return breakpoint.Top(r.Suggestions, n)
}

// HardProjects lists the scored projects in the Hard extraction category.
func (r *Result) HardProjects() []string {
	var hard []string
	for _, s := range r.Scores {
		if s.Category() == scoring.CategoryHard {
			hard = append(hard, s.Project.Path)
		}
	}
	return hard
}

// Analyzer runs the pipeline.
type Analyzer struct {
	opts   Options
	logger *slog.Logger
}

// New validates the weights and creates an Analyzer. Weights that do not sum to 1.0
// are a configuration error.
func New(opts Options, logger *slog.Logger) (*Analyzer, error) {
	if err := opts.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{opts: opts, logger: logger}, nil
}

// Run executes every stage in order. On error or cancellation no partial result is
// returned.
func (a *Analyzer) Run(ctx context.Context, in Input) (*Result, error) {
	ctx, span := observability.StartRunSpan(ctx, len(in.Solutions))
	defer span.End()

	res, err := a.run(ctx, in)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return res, nil
}

func (a *Analyzer) run(ctx context.Context, in Input) (*Result, error) {
	m := metrics.New()
	res := &Result{Metrics: m}

	// Build
	err := a.stage(ctx, m, observability.StageBuild, func(ctx context.Context, span trace.Span) (int, error) {
		g, report, err := depgraph.NewBuilder(a.logger).Build(ctx, in.Solutions)
		if err != nil {
			return 0, err
		}
		res.Graph, res.BuildReport = g, report
		res.Fingerprint = depgraph.Fingerprint(g)

		m.Fingerprint = res.Fingerprint
		m.Graph = metrics.GraphMetrics{
			Solutions:          report.Solutions,
			Projects:           g.VertexCount(),
			References:         g.EdgeCount(),
			CrossSolution:      len(g.CrossSolutionEdges()),
			MergedProjects:     report.MergedProjects,
			DanglingReferences: len(report.DanglingReferences),
		}
		observability.RecordBuildResult(span, g.VertexCount(), g.EdgeCount(),
			len(report.DanglingReferences), report.MergedProjects)
		return g.VertexCount(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	// Detect
	err = a.stage(ctx, m, observability.StageDetect, func(ctx context.Context, span trace.Span) (int, error) {
		cs, err := cycles.NewDetector(a.logger).Detect(ctx, res.Graph)
		if err != nil {
			return 0, err
		}
		stats, err := cycles.ComputeStatistics(ctx, cs, res.Graph.VertexCount())
		if err != nil {
			return 0, err
		}
		res.Cycles, res.Statistics = cs, stats

		m.Cycles = metrics.CycleMetrics{
			Cycles:            stats.TotalCycles,
			LargestCycle:      stats.LargestCycleSize,
			ProjectsInCycles:  stats.ProjectsInCycles,
			ParticipationRate: stats.ParticipationRate,
		}
		observability.RecordCycleResult(span, stats.TotalCycles, stats.LargestCycleSize, stats.ParticipationRate)
		return len(cs), nil
	})
	if err != nil {
		return nil, fmt.Errorf("detect cycles: %w", err)
	}

	// Weak edges
	err = a.stage(ctx, m, observability.StageWeak, func(ctx context.Context, _ trace.Span) (int, error) {
		if err := breakpoint.NewAnalyzer(in.CallCounts, a.logger).Analyze(ctx, res.Graph, res.Cycles); err != nil {
			return 0, err
		}
		weak := 0
		for _, c := range res.Cycles {
			weak += len(c.WeakEdges)
		}
		return weak, nil
	})
	if err != nil {
		return nil, fmt.Errorf("identify weak edges: %w", err)
	}

	// Rank
	err = a.stage(ctx, m, observability.StageRank, func(ctx context.Context, _ trace.Span) (int, error) {
		suggestions, err := breakpoint.NewRanker(a.logger).Rank(ctx, res.Graph, res.Cycles)
		if err != nil {
			return 0, err
		}
		res.Suggestions = suggestions
		m.Cycles.Suggestions = len(suggestions)
		return len(suggestions), nil
	})
	if err != nil {
		return nil, fmt.Errorf("rank suggestions: %w", err)
	}

	// Score
	err = a.stage(ctx, m, observability.StageScore, func(ctx context.Context, span trace.Span) (int, error) {
		scores, err := a.score(ctx, res.Graph, in)
		if err != nil {
			return 0, err
		}
		res.Scores = scores

		fallbacks := 0
		for _, s := range scores {
			for _, k := range s.Fallbacks() {
				m.CountFallback(string(k))
				fallbacks++
			}
			m.CountTier(string(s.Category()))
		}
		m.Scoring.Scored = len(scores)
		m.Scoring.Skipped = res.Graph.VertexCount() - len(scores)
		observability.RecordScoreResult(span, len(scores), fallbacks, len(res.HardProjects()))
		return len(scores), nil
	})
	if err != nil {
		return nil, fmt.Errorf("score projects: %w", err)
	}

	// Gates
	if a.opts.Gates != nil {
		err = a.stage(ctx, m, observability.StageGates, func(ctx context.Context, span trace.Span) (int, error) {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			pipeline := qualitygate.BuildPipeline(a.opts.Gates)
			res.Gates = pipeline.Run(evalContext(res))
			observability.RecordGateResult(span, !res.Gates.Failed(), res.Gates.FailedCount, res.Gates.WarningCount)
			return pipeline.Len(), nil
		})
		if err != nil {
			return nil, fmt.Errorf("evaluate gates: %w", err)
		}
	}

	// Store
	if a.opts.Repository != nil {
		if err := a.store(ctx, m, res); err != nil {
			return nil, fmt.Errorf("store snapshot: %w", err)
		}
	}

	m.Finish()
	a.logger.Info("analysis complete",
		"fingerprint", res.Fingerprint,
		"projects", res.Graph.VertexCount(),
		"cycles", len(res.Cycles),
		"suggestions", len(res.Suggestions),
		"scored", len(res.Scores),
		"duration", m.Duration)
	return res, nil
}

// stage wraps one pipeline step with a span and a timing record.
func (a *Analyzer) stage(ctx context.Context, m *metrics.RunMetrics, name string,
	fn func(context.Context, trace.Span) (int, error)) error {
	ctx, span := observability.StartStageSpan(ctx, name)
	defer span.End()

	start := time.Now()
	items, err := fn(ctx, span)
	m.AddStage(name, time.Since(start), items, err)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	a.logger.Debug("stage complete", "stage", name, "items", items, "duration", time.Since(start))
	return nil
}

func (a *Analyzer) score(ctx context.Context, g *depgraph.DependencyGraph, in Input) ([]scoring.ExtractionScore, error) {
	coupling, err := scoring.NewCouplingCalculator(g)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(scoring.Calculators{
		Coupling:    coupling,
		Complexity:  scoring.NewComplexityCalculator(in.Complexity, a.logger),
		TechDebt:    scoring.NewTechDebtCalculator(in.Frameworks, a.logger),
		ExternalAPI: scoring.NewExternalAPICalculator(in.Endpoints, a.opts.APISaturation, a.logger),
	}, a.opts.Weights, scoring.Options{
		Workers:          a.opts.Workers,
		IncludeFramework: a.opts.IncludeFramework,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return scorer.Score(ctx, g.Vertices())
}

func (a *Analyzer) store(ctx context.Context, m *metrics.RunMetrics, res *Result) error {
	ctx, span := observability.StartStoreSpan(ctx, res.Fingerprint)
	defer span.End()

	start := time.Now()
	err := a.opts.Repository.StoreSnapshot(ctx, graph.Snapshot{
		Fingerprint: res.Fingerprint,
		Graph:       res.Graph,
		Cycles:      res.Cycles,
		Suggestions: res.Suggestions,
	})
	m.AddStage(observability.StageStore, time.Since(start), res.Graph.VertexCount(), err)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	return nil
}

func evalContext(res *Result) *qualitygate.EvalContext {
	ec := &qualitygate.EvalContext{
		TotalProjects:     res.Statistics.TotalProjects,
		TotalCycles:       res.Statistics.TotalCycles,
		LargestCycleSize:  res.Statistics.LargestCycleSize,
		ParticipationRate: res.Statistics.ParticipationRate,
		HardProjects:      res.HardProjects(),
		Metadata:          map[string]string{"fingerprint": res.Fingerprint},
	}
	for _, c := range res.Cycles {
		ec.CycleSummaries = append(ec.CycleSummaries,
			fmt.Sprintf("cycle %d (%d projects): %s", c.ID, c.Size, strings.Join(c.Projects, " -> ")))
	}
	for _, d := range res.BuildReport.DanglingReferences {
		ec.DanglingReferences = append(ec.DanglingReferences, fmt.Sprintf("%s -> %s (%s)", d.From, d.To, d.Reason))
	}
	return ec
}

// Reload turns the graph stored under fingerprint back into pipeline input. Only the
// structure is stored, so call counts and measurements are absent and fall back.
func Reload(ctx context.Context, repo graph.Repository, fingerprint string) (Input, error) {
	g, err := repo.LoadGraph(ctx, fingerprint)
	if err != nil {
		return Input{}, fmt.Errorf("load graph %s: %w", fingerprint, err)
	}
	return Input{Solutions: graph.ToSolutions(g)}, nil
}
