package e2e

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/efebarandurmaz/fracture/internal/analysis"
	"github.com/efebarandurmaz/fracture/internal/dataset"
	"github.com/efebarandurmaz/fracture/internal/depgraph"
	"github.com/efebarandurmaz/fracture/internal/graph"
	"github.com/efebarandurmaz/fracture/internal/qualitygate"
	"github.com/efebarandurmaz/fracture/internal/scoring"
)

const ordersAndBilling = `
solutions:
  - id: orders
    projects:
      - path: src/Orders.Api/Orders.Api.csproj
        references:
          - src/Orders.Core/Orders.Core.csproj
          - lib/Newtonsoft.Json/Newtonsoft.Json.csproj
        target_framework: net8.0
        complexity: {method_count: 200, average_complexity: 4}
        endpoints: 12
      - path: src/Orders.Core/Orders.Core.csproj
        references: [src/Billing.Client/Billing.Client.csproj]
        target_framework: net48
        complexity: {method_count: 500, average_complexity: 18}
      - path: lib/Newtonsoft.Json/Newtonsoft.Json.csproj
  - id: billing
    projects:
      - path: src/Billing.Client/Billing.Client.csproj
        references:
          - src/Orders.Core/Orders.Core.csproj
          - src/Missing/Missing.csproj
        target_framework: netstandard2.0
      - path: src/Orders.Core/Orders.Core.csproj
call_counts:
  - {from: src/Orders.Core/Orders.Core.csproj, to: src/Billing.Client/Billing.Client.csproj, count: 40}
  - {from: src/Billing.Client/Billing.Client.csproj, to: src/Orders.Core/Orders.Core.csproj, count: 3}
framework_patterns: ["Newtonsoft.*"]
`

func writeDataset(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "solutions.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, path string, opts analysis.Options) *analysis.Result {
	t.Helper()
	ds, err := dataset.Load(path, dataset.Options{})
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	a, err := analysis.New(opts, nil)
	if err != nil {
		t.Fatalf("new analyzer: %v", err)
	}
	res, err := a.Run(context.Background(), analysis.Input{
		Solutions:  ds.Solutions,
		CallCounts: ds.CallCounts,
		Complexity: ds.Complexity,
		Frameworks: ds.Frameworks,
		Endpoints:  ds.Endpoints,
	})
	if err != nil {
		t.Fatalf("analysis failed: %v", err)
	}
	return res
}

func TestE2E_CrossSolutionCycle(t *testing.T) {
	path := writeDataset(t, ordersAndBilling)
	repo := graph.NewMemoryRepository()
	opts := analysis.DefaultOptions()
	opts.Workers = 2
	opts.Repository = repo

	// 1. Analyze
	res := run(t, path, opts)

	// 2. Graph: shared project merged, missing reference dropped
	if got := res.Graph.VertexCount(); got != 4 {
		t.Fatalf("expected 4 projects, got %d", got)
	}
	if res.BuildReport.MergedProjects != 1 {
		t.Errorf("expected 1 merged project, got %d", res.BuildReport.MergedProjects)
	}
	if len(res.BuildReport.DanglingReferences) != 1 {
		t.Errorf("expected 1 dangling reference, got %v", res.BuildReport.DanglingReferences)
	}

	// 3. One cross-solution cycle between Orders.Core and Billing.Client
	if len(res.Cycles) != 1 || res.Cycles[0].Size != 2 {
		t.Fatalf("expected a single 2-project cycle, got %+v", res.Cycles)
	}
	if res.Statistics.ParticipationRate != 50 {
		t.Errorf("expected 50%% participation, got %.1f", res.Statistics.ParticipationRate)
	}

	// 4. The weaker direction is suggested
	if len(res.Suggestions) != 1 {
		t.Fatalf("expected 1 suggestion, got %d", len(res.Suggestions))
	}
	s := res.Suggestions[0]
	if s.Source.Name != "Billing.Client" || s.Target.Name != "Orders.Core" {
		t.Errorf("expected Billing.Client -> Orders.Core, got %s -> %s", s.Source.Name, s.Target.Name)
	}
	if s.CouplingScore != 3 || !s.CrossSolution {
		t.Errorf("unexpected suggestion %+v", s)
	}

	// 5. Framework project not scored; measured metrics flow through
	if len(res.Scores) != 3 {
		t.Fatalf("expected 3 scores, got %d", len(res.Scores))
	}
	byName := make(map[string]scoring.ExtractionScore)
	for _, sc := range res.Scores {
		if sc.FinalScore < 0 || sc.FinalScore > 100 {
			t.Errorf("%s: final score %.2f out of range", sc.Project.Name, sc.FinalScore)
		}
		byName[sc.Project.Name] = sc
	}
	if _, ok := byName["Newtonsoft.Json"]; ok {
		t.Error("framework project should not be scored")
	}
	core := byName["Orders.Core"]
	if core.TechDebt.NormalizedScore != 50 || core.TechDebt.Status.IsFallback() {
		t.Errorf("Orders.Core tech debt = %+v, want measured 50", core.TechDebt)
	}
	if core.Complexity.Status.IsFallback() {
		t.Error("Orders.Core complexity should be measured")
	}
	if !byName["Billing.Client"].Complexity.Status.IsFallback() {
		t.Error("Billing.Client complexity should fall back")
	}

	// 6. Gates: the cycle fails the required gate, the dangling reference only warns
	if !res.Gates.Failed() {
		t.Error("expected the cycle gate to fail")
	}
	for _, g := range res.Gates.Gates {
		if g.Name == "dangling_references" && g.Status != qualitygate.GateWarning {
			t.Errorf("dangling gate status = %s, want warning", g.Status)
		}
	}

	// 7. Snapshot stored under the fingerprint
	deps, err := repo.QueryDependents(context.Background(), res.Fingerprint, res.Suggestions[0].Target.Path)
	if err != nil {
		t.Fatalf("query dependents: %v", err)
	}
	if len(deps) != 2 {
		t.Errorf("expected Orders.Api and Billing.Client as dependents, got %v", deps)
	}

	// 8. Report serializes
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	if !strings.Contains(string(data), `"fingerprint"`) {
		t.Error("json report missing fingerprint")
	}
}

func TestE2E_Deterministic(t *testing.T) {
	path := writeDataset(t, ordersAndBilling)
	first := run(t, path, analysis.DefaultOptions())

	opts := analysis.DefaultOptions()
	opts.Workers = 8
	second := run(t, path, opts)

	if first.Fingerprint != second.Fingerprint {
		t.Errorf("fingerprint changed between runs: %s vs %s", first.Fingerprint, second.Fingerprint)
	}
	if len(first.Scores) != len(second.Scores) {
		t.Fatalf("score count differs")
	}
	for i := range first.Scores {
		if first.Scores[i].Project.Path != second.Scores[i].Project.Path ||
			first.Scores[i].FinalScore != second.Scores[i].FinalScore {
			t.Errorf("score %d differs: %+v vs %+v", i, first.Scores[i], second.Scores[i])
		}
	}
}

func TestE2E_EmptySolution(t *testing.T) {
	path := writeDataset(t, "solutions:\n  - id: empty\n    projects: []\n")
	res := run(t, path, analysis.DefaultOptions())

	if res.Graph.VertexCount() != 0 || len(res.Cycles) != 0 || len(res.Suggestions) != 0 || len(res.Scores) != 0 {
		t.Errorf("expected an empty result, got %d projects, %d cycles, %d suggestions, %d scores",
			res.Graph.VertexCount(), len(res.Cycles), len(res.Suggestions), len(res.Scores))
	}
	if res.Statistics.ParticipationRate != 0 {
		t.Errorf("expected 0%% participation, got %.1f", res.Statistics.ParticipationRate)
	}
	if res.Gates.Failed() {
		t.Errorf("gates should pass on an empty graph: %s", res.Gates.Summary)
	}
}

func TestE2E_Export(t *testing.T) {
	res := run(t, writeDataset(t, ordersAndBilling), analysis.DefaultOptions())
	cuts := []depgraph.Edge{res.Suggestions[0].Edge()}

	dot := depgraph.ExportDOT(res.Graph, depgraph.DOTOptions{Highlight: cuts})
	if !strings.HasPrefix(dot, "digraph") || !strings.Contains(dot, "cluster_") {
		t.Errorf("unexpected DOT output:\n%s", dot)
	}

	mermaid := depgraph.ExportMermaid(res.Graph, cuts)
	if !strings.HasPrefix(mermaid, "graph LR") {
		t.Errorf("unexpected Mermaid output:\n%s", mermaid)
	}

	data, err := depgraph.ExportJSON(res.Graph)
	if err != nil {
		t.Fatalf("export json: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("exported JSON does not parse: %v", err)
	}
}

func TestE2E_SharedProjectUsesFirstSolutionMeasurements(t *testing.T) {
	body := `
solutions:
  - id: one
    projects:
      - path: src/X/X.csproj
        target_framework: net35
  - id: two
    projects:
      - path: src/X/X.csproj
        target_framework: net8.0
`
	res := run(t, writeDataset(t, body), analysis.DefaultOptions())
	if len(res.Scores) != 1 {
		t.Fatalf("expected 1 score, got %d", len(res.Scores))
	}
	x := res.Scores[0]
	if x.Project.Solution != "one" {
		t.Errorf("vertex solution = %q, want one", x.Project.Solution)
	}
	if x.TechDebt.TargetFramework != "net35" || x.TechDebt.NormalizedScore != 100 {
		t.Errorf("tech debt = %+v, want net35 scored 100", x.TechDebt)
	}
}
