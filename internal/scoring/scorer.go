package scoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// Calculators holds one calculator per metric kind. A nil Coupling leaves coupling
// absent from every score; the other three fall back to neutral scores when nil.
type Calculators struct {
	Coupling    Calculator
	Complexity  Calculator
	TechDebt    Calculator
	ExternalAPI Calculator
}

// Options tune a Scorer.
type Options struct {
	// Workers > 1 scores projects concurrently on a bounded pool.
	Workers int
	// IncludeFramework scores framework and third-party projects too.
	IncludeFramework bool
}

// Scorer evaluates all four metrics per project and combines them.
type Scorer struct {
	calcs   Calculators
	weights Weights
	opts    Options
	logger  *slog.Logger
}

// NewScorer creates a Scorer. Weights with a negative entry are rejected here; the
// sum-to-one rule is the caller's responsibility.
func NewScorer(calcs Calculators, weights Weights, opts Options, logger *slog.Logger) (*Scorer, error) {
	if err := weights.checkNonNegative(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if calcs.Complexity == nil {
		calcs.Complexity = NewComplexityCalculator(nil, logger)
	}
	if calcs.TechDebt == nil {
		calcs.TechDebt = NewTechDebtCalculator(nil, logger)
	}
	if calcs.ExternalAPI == nil {
		calcs.ExternalAPI = NewExternalAPICalculator(nil, 0, logger)
	}
	return &Scorer{calcs: calcs, weights: weights, opts: opts, logger: logger}, nil
}

// Score returns one ExtractionScore per selected project, in input order. Concurrent
// and sequential runs produce identical output. On cancellation no partial list is
// returned.
func (s *Scorer) Score(ctx context.Context, projects []depgraph.ProjectVertex) ([]ExtractionScore, error) {
	selected := make([]depgraph.ProjectVertex, 0, len(projects))
	for _, p := range projects {
		if p.IsFramework && !s.opts.IncludeFramework {
			continue
		}
		selected = append(selected, p)
	}
	if skipped := len(projects) - len(selected); skipped > 0 {
		s.logger.Debug("framework projects excluded from scoring", "skipped", skipped)
	}

	results := make([]ExtractionScore, len(selected))
	if s.opts.Workers <= 1 {
		for i, p := range selected {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			score, err := s.scoreProject(ctx, p)
			if err != nil {
				return nil, err
			}
			results[i] = score
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, p := range selected {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			score, err := s.scoreProject(gctx, p)
			if err != nil {
				return err
			}
			results[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Scorer) scoreProject(ctx context.Context, p depgraph.ProjectVertex) (ExtractionScore, error) {
	var coupling *CouplingMetric
	if s.calcs.Coupling != nil {
		m, err := s.calcs.Coupling.Calculate(ctx, p)
		switch {
		case errors.Is(err, ErrUnknownProject):
			s.logger.Warn("coupling unavailable for project", "project", p.Path, "error", err)
		case err != nil:
			return ExtractionScore{}, err
		default:
			cm, ok := m.(CouplingMetric)
			if !ok {
				return ExtractionScore{}, fmt.Errorf("coupling calculator returned %T", m)
			}
			coupling = &cm
		}
	}

	var (
		complexity  ComplexityMetric
		techDebt    TechDebtMetric
		externalAPI ExternalAPIMetric
	)
	for _, c := range []Calculator{s.calcs.Complexity, s.calcs.TechDebt, s.calcs.ExternalAPI} {
		m, err := c.Calculate(ctx, p)
		if err != nil {
			return ExtractionScore{}, err
		}
		switch v := m.(type) {
		case ComplexityMetric:
			complexity = v
		case TechDebtMetric:
			techDebt = v
		case ExternalAPIMetric:
			externalAPI = v
		default:
			return ExtractionScore{}, fmt.Errorf("%s calculator returned %T", c.Kind(), m)
		}
	}

	score, err := Combine(p, coupling, complexity, techDebt, externalAPI, s.weights)
	if err != nil {
		return ExtractionScore{}, err
	}
	s.logger.Debug("project scored",
		"project", p.Path, "final_score", score.FinalScore, "category", score.Category())
	return score, nil
}
