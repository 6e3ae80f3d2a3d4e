package scoring

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
)

// FrameworkSource looks up the raw target-framework string declared by a project.
type FrameworkSource interface {
	TargetFramework(project string) (string, bool)
}

// FrameworkMap is an in-memory FrameworkSource.
type FrameworkMap map[string]string

func (m FrameworkMap) TargetFramework(project string) (string, bool) {
	s, ok := m[project]
	return s, ok
}

type TechDebtMetric struct {
	Project         string  `json:"project"`
	TargetFramework string  `json:"target_framework"`
	Moniker         string  `json:"moniker,omitempty"`
	NormalizedScore float64 `json:"normalized_score"`
	Status          Outcome `json:"outcome"`
}

func (m TechDebtMetric) Kind() MetricKind { return KindTechDebt }
func (m TechDebtMetric) Score() float64   { return m.NormalizedScore }
func (m TechDebtMetric) Outcome() Outcome { return m.Status }

// legacyFramework scores .NET Framework monikers, oldest first.
var legacyFramework = map[string]float64{
	"net11": 100, "net20": 100, "net35": 100,
	"net40": 90, "net403": 90,
	"net45": 80, "net451": 80, "net452": 80,
	"net46": 70, "net461": 70, "net462": 70,
	"net47": 60, "net471": 60, "net472": 60,
	"net48": 50, "net481": 50,
}

type TechDebtCalculator struct {
	src    FrameworkSource
	logger *slog.Logger
}

// NewTechDebtCalculator creates a calculator. A nil source makes every project fall back.
func NewTechDebtCalculator(src FrameworkSource, logger *slog.Logger) *TechDebtCalculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TechDebtCalculator{src: src, logger: logger}
}

func (c *TechDebtCalculator) Kind() MetricKind { return KindTechDebt }

func (c *TechDebtCalculator) Calculate(ctx context.Context, p depgraph.ProjectVertex) (Metric, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m := TechDebtMetric{Project: p.Path}

	var (
		raw string
		ok  bool
	)
	if c.src != nil {
		raw, ok = c.src.TargetFramework(p.Path)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return c.fallback(m, "target framework unavailable"), nil
	}
	m.TargetFramework = raw

	moniker, ok := NormalizeMoniker(raw)
	if !ok {
		return c.fallback(m, "unparsable target framework "+strconv.Quote(raw)), nil
	}
	m.Moniker = moniker

	score, ok := MonikerScore(moniker)
	if !ok {
		return c.fallback(m, "unknown target framework "+strconv.Quote(moniker)), nil
	}
	m.NormalizedScore = score
	m.Status = Measured()
	return m, nil
}

func (c *TechDebtCalculator) fallback(m TechDebtMetric, reason string) TechDebtMetric {
	c.logger.Debug("tech debt metric fallback", "project", m.Project, "reason", reason)
	m.NormalizedScore = NeutralScore
	m.Status = Fallback(reason)
	return m
}

// NormalizeMoniker reduces a declared target framework to a bare moniker. The first
// entry of a multi-target list wins, platform suffixes such as "-windows" are dropped,
// and the legacy "v4.7.2" form becomes "net472".
func NormalizeMoniker(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if first, _, found := strings.Cut(s, ";"); found {
		s = strings.TrimSpace(first)
	}
	if base, _, found := strings.Cut(s, "-"); found {
		s = base
	}
	if s == "" {
		return "", false
	}

	if strings.HasPrefix(s, "v") && len(s) > 1 && isDigit(s[1]) {
		digits := strings.ReplaceAll(s[1:], ".", "")
		if !allDigits(digits) {
			return "", false
		}
		return "net" + digits, true
	}

	for _, prefix := range []string{"netcoreapp", "netstandard", "net"} {
		if rest, found := strings.CutPrefix(s, prefix); found {
			if rest == "" || !isDigit(rest[0]) {
				return "", false
			}
			if !allDigits(strings.ReplaceAll(rest, ".", "")) {
				return "", false
			}
			return s, true
		}
	}
	return "", false
}

// MonikerScore looks up a normalized moniker: oldest runtimes score 100, current ones 0.
// Modern "netN.M" monikers newer than the table score 0.
func MonikerScore(moniker string) (float64, bool) {
	if score, ok := legacyFramework[moniker]; ok {
		return score, true
	}

	if rest, found := strings.CutPrefix(moniker, "netcoreapp"); found {
		switch major(rest) {
		case 1:
			return 45, true
		case 2:
			return 40, true
		case 3:
			return 30, true
		}
		return 0, false
	}

	if rest, found := strings.CutPrefix(moniker, "netstandard"); found {
		switch rest {
		case "1.0", "1.1", "1.2", "1.3", "1.4", "1.5", "1.6":
			return 40, true
		case "2.0":
			return 25, true
		case "2.1":
			return 20, true
		}
		return 0, false
	}

	rest, found := strings.CutPrefix(moniker, "net")
	if !found || !strings.Contains(rest, ".") {
		return 0, false
	}
	switch v := major(rest); {
	case v == 5:
		return 20, true
	case v == 6:
		return 10, true
	case v == 7:
		return 5, true
	case v >= 8:
		return 0, true
	}
	return 0, false
}

// major parses the leading version number of "6.0", returning -1 when it is missing.
func major(version string) int {
	head, _, _ := strings.Cut(version, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return -1
	}
	return n
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
