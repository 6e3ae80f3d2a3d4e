package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/efebarandurmaz/fracture/internal/analysis"
	"github.com/efebarandurmaz/fracture/internal/breakpoint"
	"github.com/efebarandurmaz/fracture/internal/config"
	"github.com/efebarandurmaz/fracture/internal/dataset"
	"github.com/efebarandurmaz/fracture/internal/depgraph"
	"github.com/efebarandurmaz/fracture/internal/graph"
	"github.com/efebarandurmaz/fracture/internal/graph/neo4j"
	"github.com/efebarandurmaz/fracture/internal/observability"
	"github.com/efebarandurmaz/fracture/internal/qualitygate"
)

const version = "0.1.0"

// errGatesFailed makes the process exit non-zero without printing a usage message.
var errGatesFailed = errors.New("quality gates failed")

func main() {
	// A missing .env is normal.
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:           "fracture",
		Short:         "Find dependency cycles across .NET solutions and rank where to cut them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/fracture.yaml", "Config file path")

	var (
		inputPath   string
		jsonReport  bool
		top         int
		store       bool
		failOnGates bool
	)
	analyzeCmd := &cobra.Command{
		Use:   "analyze",
		Short: "Detect cycles, suggest cut points and score projects for extraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd.Context(), configPath, inputPath, jsonReport, top, store, failOnGates)
		},
	}
	analyzeCmd.Flags().StringVar(&inputPath, "input", "", "Solution dataset (YAML or JSON)")
	analyzeCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the full result as JSON")
	analyzeCmd.Flags().IntVar(&top, "top", -1, "Number of suggestions to show (default from config, 0 = all)")
	analyzeCmd.Flags().BoolVar(&store, "store", false, "Persist the snapshot to the configured graph database")
	analyzeCmd.Flags().BoolVar(&failOnGates, "fail-on-gates", false, "Exit non-zero when a blocking quality gate fails")
	_ = analyzeCmd.MarkFlagRequired("input")

	var (
		graphInput       string
		graphFingerprint string
		graphFormat      string
		graphOutput      string
	)
	graphCmd := &cobra.Command{
		Use:   "graph",
		Short: "Export the merged dependency graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd.Context(), configPath, graphInput, graphFingerprint, graphFormat, graphOutput)
		},
	}
	graphCmd.Flags().StringVar(&graphInput, "input", "", "Solution dataset (YAML or JSON)")
	graphCmd.Flags().StringVar(&graphFingerprint, "fingerprint", "", "Export a stored snapshot instead of a dataset")
	graphCmd.Flags().StringVar(&graphFormat, "format", "dot", "Output format: dot, mermaid or json")
	graphCmd.Flags().StringVar(&graphOutput, "output", "", "Output file (default stdout)")
	graphCmd.MarkFlagsOneRequired("input", "fingerprint")
	graphCmd.MarkFlagsMutuallyExclusive("input", "fingerprint")

	var depFingerprint, depProject string
	dependentsCmd := &cobra.Command{
		Use:   "dependents",
		Short: "List the projects referencing a project in a stored snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDependents(cmd.Context(), configPath, depFingerprint, depProject)
		},
	}
	dependentsCmd.Flags().StringVar(&depFingerprint, "fingerprint", "", "Snapshot fingerprint printed by analyze")
	dependentsCmd.Flags().StringVar(&depProject, "project", "", "Project file path")
	_ = dependentsCmd.MarkFlagRequired("fingerprint")
	_ = dependentsCmd.MarkFlagRequired("project")

	weightsCmd := &cobra.Command{
		Use:   "weights",
		Short: "Show the validated scoring weights",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWeights(configPath)
		},
	}

	rootCmd.AddCommand(analyzeCmd, graphCmd, dependentsCmd, weightsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errGatesFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func runAnalyze(ctx context.Context, configPath, inputPath string, jsonReport bool, top int, store, failOnGates bool) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateWeights(); err != nil {
		return err
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	shutdown, err := observability.Setup(ctx, observability.Options{
		Version:     version,
		Environment: cfg.Tracing.Environment,
		Endpoint:    cfg.Tracing.OTLPEndpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	ds, err := dataset.Load(inputPath, dataset.Options{
		FrameworkPatterns: cfg.Analysis.FrameworkPatterns,
		Logger:            logger,
	})
	if err != nil {
		return err
	}

	opts := analysis.Options{
		Weights:          cfg.Analysis.Weights,
		APISaturation:    cfg.Analysis.APISaturation,
		Workers:          cfg.Analysis.Workers,
		IncludeFramework: cfg.Analysis.IncludeFramework,
		Gates:            &cfg.Gates,
	}
	if store {
		repo, err := openRepository(ctx, cfg.Graph, logger)
		if err != nil {
			return err
		}
		defer repo.Close(context.Background())
		opts.Repository = repo
	}

	analyzer, err := analysis.New(opts, logger)
	if err != nil {
		return err
	}
	res, err := analyzer.Run(ctx, analysis.Input{
		Solutions:  ds.Solutions,
		CallCounts: ds.CallCounts,
		Complexity: ds.Complexity,
		Frameworks: ds.Frameworks,
		Endpoints:  ds.Endpoints,
	})
	if err != nil {
		return err
	}

	if top < 0 {
		top = cfg.Analysis.MaxSuggestions
	}

	if jsonReport {
		out := *res
		out.Suggestions = res.TopSuggestions(top)
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding result: %w", err)
		}
		fmt.Println(string(data))
	} else {
		printReport(os.Stdout, res, top)
	}

	if failOnGates && res.Gates != nil && res.Gates.Failed() {
		return errGatesFailed
	}
	return nil
}

// openRepository connects to Neo4j when a URI is configured and otherwise keeps
// snapshots in memory for the lifetime of the process.
func openRepository(ctx context.Context, cfg config.GraphConfig, logger *slog.Logger) (graph.Repository, error) {
	if cfg.URI == "" {
		logger.Warn("graph.uri not set, snapshot is kept in memory only")
		return graph.NewMemoryRepository(), nil
	}
	repo, err := neo4j.NewNeo4j(ctx, cfg.URI, cfg.Username, cfg.Password, cfg.Database)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func printReport(w io.Writer, res *analysis.Result, top int) {
	fmt.Fprintln(w, depgraph.FormatStats(res.Graph))
	fmt.Fprintln(w, res.Statistics.Summary())

	if n := len(res.BuildReport.DanglingReferences); n > 0 {
		fmt.Fprintf(w, "\n%d dangling references were dropped:\n", n)
		for _, d := range res.BuildReport.DanglingReferences {
			fmt.Fprintf(w, "  %s -> %s (%s)\n", d.From, d.To, d.Reason)
		}
	}

	suggestions := res.TopSuggestions(top)
	if len(suggestions) > 0 {
		fmt.Fprintf(w, "\n=== Suggested cuts (%d of %d) ===\n", len(suggestions), len(res.Suggestions))
		for _, s := range suggestions {
			printSuggestion(w, s)
		}
	}

	if len(res.Scores) > 0 {
		fmt.Fprintln(w, "\n=== Extraction scores ===")
		fmt.Fprintf(w, "  %-40s %7s  %-6s  %s\n", "PROJECT", "SCORE", "TIER", "FALLBACKS")
		for _, s := range res.Scores {
			var fallbacks []string
			for _, k := range s.Fallbacks() {
				fallbacks = append(fallbacks, string(k))
			}
			fmt.Fprintf(w, "  %-40s %7.2f  %-6s  %s\n",
				s.Project.Name, s.FinalScore, s.Category(), strings.Join(fallbacks, ","))
		}
	}

	if res.Gates != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, qualitygate.FormatReport(res.Gates))
	}

	fmt.Fprintln(w)
	res.Metrics.PrintSummary(w)
}

func printSuggestion(w io.Writer, s breakpoint.Suggestion) {
	marker := ""
	if s.CrossSolution {
		marker = " [cross-solution]"
	}
	fmt.Fprintf(w, "  %2d. %s -> %s%s\n", s.Rank, s.Source.Name, s.Target.Name, marker)
	fmt.Fprintf(w, "      %s\n", s.Rationale)
}

func runGraph(ctx context.Context, configPath, inputPath, fingerprint, format, outputPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	var in analysis.Input
	if fingerprint != "" {
		repo, err := openStoredRepository(ctx, cfg.Graph)
		if err != nil {
			return err
		}
		defer repo.Close(context.Background())
		if in, err = analysis.Reload(ctx, repo, fingerprint); err != nil {
			return err
		}
	} else {
		ds, err := dataset.Load(inputPath, dataset.Options{
			FrameworkPatterns: cfg.Analysis.FrameworkPatterns,
			Logger:            logger,
		})
		if err != nil {
			return err
		}
		in = analysis.Input{Solutions: ds.Solutions, CallCounts: ds.CallCounts}
	}

	opts := analysis.DefaultOptions()
	opts.Weights = cfg.Analysis.Weights
	opts.Gates = nil
	analyzer, err := analysis.New(opts, logger)
	if err != nil {
		return err
	}
	res, err := analyzer.Run(ctx, in)
	if err != nil {
		return err
	}

	// Suggested cuts are highlighted in the diagrams.
	var cuts []depgraph.Edge
	labels := make(map[depgraph.Edge]string)
	for _, s := range res.Suggestions {
		cuts = append(cuts, s.Edge())
		labels[s.Edge()] = fmt.Sprintf("#%d cut (coupling %d)", s.Rank, s.CouplingScore)
	}

	var out []byte
	switch strings.ToLower(format) {
	case "dot":
		out = []byte(depgraph.ExportDOT(res.Graph, depgraph.DOTOptions{Highlight: cuts, Labels: labels}))
	case "mermaid":
		out = []byte(depgraph.ExportMermaid(res.Graph, cuts))
	case "json":
		out, err = depgraph.ExportJSON(res.Graph)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want dot, mermaid or json)", format)
	}

	if outputPath == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(outputPath, out, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", outputPath, err)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s graph to %s\n", format, outputPath)
	return nil
}

// openStoredRepository opens the graph database for read-side commands. In-memory
// snapshots do not outlive the analyze process, so a URI is required.
func openStoredRepository(ctx context.Context, cfg config.GraphConfig) (graph.Repository, error) {
	if cfg.URI == "" {
		return nil, errors.New("graph.uri is not set; stored snapshots live in Neo4j")
	}
	repo, err := neo4j.NewNeo4j(ctx, cfg.URI, cfg.Username, cfg.Password, cfg.Database)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func runDependents(ctx context.Context, configPath, fingerprint, project string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	key, err := depgraph.NormalizePath(project)
	if err != nil {
		return err
	}
	repo, err := openStoredRepository(ctx, cfg.Graph)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	deps, err := repo.QueryDependents(ctx, fingerprint, key)
	if err != nil {
		return err
	}
	if len(deps) == 0 {
		fmt.Printf("No project references %s.\n", key)
		return nil
	}
	fmt.Printf("%d projects reference %s:\n", len(deps), key)
	for _, d := range deps {
		fmt.Printf("  %s\n", d)
	}
	return nil
}

func runWeights(configPath string) error {
	cfg, err := config.LoadOrDefault(configPath)
	if err != nil {
		return err
	}
	w := cfg.Analysis.Weights
	fmt.Println("Extraction score weights:")
	fmt.Printf("  %-13s %.2f\n", "coupling", w.Coupling)
	fmt.Printf("  %-13s %.2f\n", "complexity", w.Complexity)
	fmt.Printf("  %-13s %.2f\n", "tech_debt", w.TechDebt)
	fmt.Printf("  %-13s %.2f\n", "external_api", w.ExternalAPI)
	fmt.Printf("  %-13s %.2f\n", "sum", w.Sum())
	if err := cfg.ValidateWeights(); err != nil {
		return err
	}
	fmt.Println("Weights are valid.")
	return nil
}
