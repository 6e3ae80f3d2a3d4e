package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RunMetrics collects statistics for one analysis run.
type RunMetrics struct {
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at,omitempty"`
	Duration    time.Duration  `json:"duration_ms,omitempty"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	Graph       GraphMetrics   `json:"graph"`
	Cycles      CycleMetrics   `json:"cycles"`
	Scoring     ScoringMetrics `json:"scoring"`
	Stages      []StageMetrics `json:"stages"`
	Errors      []string       `json:"errors,omitempty"`
}

type GraphMetrics struct {
	Solutions          int `json:"solutions"`
	Projects           int `json:"projects"`
	References         int `json:"references"`
	CrossSolution      int `json:"cross_solution"`
	MergedProjects     int `json:"merged_projects"`
	DanglingReferences int `json:"dangling_references"`
}

type CycleMetrics struct {
	Cycles            int     `json:"cycles"`
	LargestCycle      int     `json:"largest_cycle"`
	ProjectsInCycles  int     `json:"projects_in_cycles"`
	ParticipationRate float64 `json:"participation_rate"`
	Suggestions       int     `json:"suggestions"`
}

type ScoringMetrics struct {
	Scored    int            `json:"scored"`
	Skipped   int            `json:"skipped"`
	Fallbacks map[string]int `json:"fallbacks,omitempty"` // metric kind -> projects
	ByTier    map[string]int `json:"by_tier,omitempty"`   // category -> projects
}

type StageMetrics struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration_ms"`
	Items    int           `json:"items"`
	Err      string        `json:"error,omitempty"`
}

// New starts tracking a run.
func New() *RunMetrics {
	return &RunMetrics{StartedAt: time.Now()}
}

// AddStage records a single stage's timing and output size.
func (m *RunMetrics) AddStage(name string, d time.Duration, items int, err error) {
	s := StageMetrics{Name: name, Duration: d, Items: items}
	if err != nil {
		s.Err = err.Error()
		m.Errors = append(m.Errors, fmt.Sprintf("%s: %v", name, err))
	}
	m.Stages = append(m.Stages, s)
}

// Stage returns the recorded metrics for name, if any.
func (m *RunMetrics) Stage(name string) (StageMetrics, bool) {
	for _, s := range m.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageMetrics{}, false
}

// CountFallback notes that one project's metric of the given kind used a fallback.
func (m *RunMetrics) CountFallback(kind string) {
	if m.Scoring.Fallbacks == nil {
		m.Scoring.Fallbacks = make(map[string]int)
	}
	m.Scoring.Fallbacks[kind]++
}

// CountTier notes one project in the given extraction category.
func (m *RunMetrics) CountTier(category string) {
	if m.Scoring.ByTier == nil {
		m.Scoring.ByTier = make(map[string]int)
	}
	m.Scoring.ByTier[category]++
}

// Finish marks the run as complete.
func (m *RunMetrics) Finish() {
	m.FinishedAt = time.Now()
	m.Duration = m.FinishedAt.Sub(m.StartedAt)
}

// PrintSummary writes a human-readable summary.
func (m *RunMetrics) PrintSummary(w io.Writer) {
	fmt.Fprintf(w, "\n╔══════════════════════════════════════╗\n")
	fmt.Fprintf(w, "║       FRACTURE ANALYSIS REPORT       ║\n")
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ Duration:    %-23s║\n", m.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "║ Fingerprint: %-23s║\n", m.Fingerprint)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ GRAPH (%d solutions)\n", m.Graph.Solutions)
	fmt.Fprintf(w, "║   Projects:      %d\n", m.Graph.Projects)
	fmt.Fprintf(w, "║   References:    %d\n", m.Graph.References)
	fmt.Fprintf(w, "║   Cross-sln:     %d\n", m.Graph.CrossSolution)
	fmt.Fprintf(w, "║   Merged:        %d\n", m.Graph.MergedProjects)
	fmt.Fprintf(w, "║   Dangling:      %d\n", m.Graph.DanglingReferences)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ CYCLES\n")
	fmt.Fprintf(w, "║   Cycles:        %d\n", m.Cycles.Cycles)
	fmt.Fprintf(w, "║   Largest:       %d\n", m.Cycles.LargestCycle)
	fmt.Fprintf(w, "║   Participation: %.1f%% (%d projects)\n", m.Cycles.ParticipationRate, m.Cycles.ProjectsInCycles)
	fmt.Fprintf(w, "║   Suggestions:   %d\n", m.Cycles.Suggestions)
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ SCORING\n")
	fmt.Fprintf(w, "║   Scored:        %d (%d skipped)\n", m.Scoring.Scored, m.Scoring.Skipped)
	for _, tier := range []string{"Easy", "Medium", "Hard"} {
		fmt.Fprintf(w, "║   %-14s %d\n", tier+":", m.Scoring.ByTier[tier])
	}
	for _, kind := range []string{"coupling", "complexity", "tech_debt", "external_api"} {
		if n := m.Scoring.Fallbacks[kind]; n > 0 {
			fmt.Fprintf(w, "║   Fallback %-12s %d\n", kind+":", n)
		}
	}
	fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
	fmt.Fprintf(w, "║ STAGES\n")
	for _, s := range m.Stages {
		status := "OK"
		if s.Err != "" {
			status = "ERROR"
		}
		fmt.Fprintf(w, "║   %-12s %8s  %6d items  %s\n", s.Name, s.Duration.Round(time.Microsecond), s.Items, status)
	}
	if len(m.Errors) > 0 {
		fmt.Fprintf(w, "╠══════════════════════════════════════╣\n")
		fmt.Fprintf(w, "║ ERRORS\n")
		for _, e := range m.Errors {
			fmt.Fprintf(w, "║   • %s\n", e)
		}
	}
	fmt.Fprintf(w, "╚══════════════════════════════════════╝\n")
}

// JSON returns the metrics as formatted JSON.
func (m *RunMetrics) JSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}
