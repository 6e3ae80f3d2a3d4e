package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/efebarandurmaz/fracture/internal/qualitygate"
	"github.com/efebarandurmaz/fracture/internal/scoring"
)

// Config holds all application configuration.
type Config struct {
	Analysis AnalysisConfig         `mapstructure:"analysis"`
	Graph    GraphConfig            `mapstructure:"graph"`
	Tracing  TracingConfig          `mapstructure:"tracing"`
	Log      LogConfig              `mapstructure:"log"`
	Gates    qualitygate.GateConfig `mapstructure:"gates"`
}

type AnalysisConfig struct {
	Weights scoring.Weights `mapstructure:"weights"`

	// APISaturation is the endpoint count at which the external API metric reaches 100.
	APISaturation int `mapstructure:"api_saturation"`

	// Workers bounds concurrent project scoring. 0 or 1 scores sequentially.
	Workers int `mapstructure:"workers"`

	IncludeFramework  bool     `mapstructure:"include_framework"`
	FrameworkPatterns []string `mapstructure:"framework_patterns"`
	MaxSuggestions    int      `mapstructure:"max_suggestions"`
}

// GraphConfig points at the Neo4j instance snapshots are stored in. An empty URI
// keeps snapshots in memory.
type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Weights:        scoring.DefaultWeights(),
			APISaturation:  scoring.DefaultAPISaturation,
			Workers:        4,
			MaxSuggestions: 10,
		},
		Tracing: TracingConfig{SampleRate: 1.0, Environment: "development"},
		Log:     LogConfig{Level: "info", Format: "text"},
		Gates:   *qualitygate.DefaultConfig(),
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if err := c.ValidateWeights(); err != nil {
		warnings = append(warnings, err.Error())
	}

	if c.Analysis.APISaturation < 0 {
		warnings = append(warnings, fmt.Sprintf("analysis api_saturation %d is negative, the default %d is used", c.Analysis.APISaturation, scoring.DefaultAPISaturation))
	}

	if c.Analysis.Workers < 0 {
		warnings = append(warnings, fmt.Sprintf("analysis workers %d is negative, scoring runs sequentially", c.Analysis.Workers))
	}

	if c.Analysis.MaxSuggestions < 0 {
		warnings = append(warnings, fmt.Sprintf("analysis max_suggestions %d is negative, all suggestions are shown", c.Analysis.MaxSuggestions))
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	if c.Graph.URI != "" && c.Graph.Username == "" {
		warnings = append(warnings, fmt.Sprintf("graph uri '%s' is configured but username is empty", c.Graph.URI))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		warnings = append(warnings, fmt.Sprintf("log level '%s' is not recognized, info is used", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		warnings = append(warnings, fmt.Sprintf("log format '%s' is not recognized, text is used", c.Log.Format))
	}

	return append(warnings, c.Gates.Validate()...)
}

// ValidateWeights rejects weights the combiner cannot use. Unlike the other checks
// this one is fatal: a final score built on bad weights is meaningless.
func (c *Config) ValidateWeights() error {
	if err := c.Analysis.Weights.Validate(); err != nil {
		return fmt.Errorf("analysis weights: %w", err)
	}
	return nil
}

// Load reads configuration from file and environment. Values missing from the file
// keep their defaults.
func Load(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return unmarshal(v)
}

// LoadOrDefault loads path when it is set and exists, and otherwise returns the
// defaults with environment overrides applied.
func LoadOrDefault(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Warning: config file %s not found, using defaults\n", path)
	}
	return unmarshal(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FRACTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// setDefaults registers every key so AutomaticEnv can override it without a file.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("analysis.weights.coupling", d.Analysis.Weights.Coupling)
	v.SetDefault("analysis.weights.complexity", d.Analysis.Weights.Complexity)
	v.SetDefault("analysis.weights.tech_debt", d.Analysis.Weights.TechDebt)
	v.SetDefault("analysis.weights.external_api", d.Analysis.Weights.ExternalAPI)
	v.SetDefault("analysis.api_saturation", d.Analysis.APISaturation)
	v.SetDefault("analysis.workers", d.Analysis.Workers)
	v.SetDefault("analysis.include_framework", d.Analysis.IncludeFramework)
	v.SetDefault("analysis.framework_patterns", []string{})
	v.SetDefault("analysis.max_suggestions", d.Analysis.MaxSuggestions)

	v.SetDefault("graph.uri", "")
	v.SetDefault("graph.username", "")
	v.SetDefault("graph.password", "")
	v.SetDefault("graph.database", "")

	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.environment", d.Tracing.Environment)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	g := d.Gates
	v.SetDefault("gates.enabled", g.Enabled)
	v.SetDefault("gates.max_cycles", g.MaxCycles)
	v.SetDefault("gates.cycle_severity", g.CycleSeverity)
	v.SetDefault("gates.max_participation", g.MaxParticipation)
	v.SetDefault("gates.participation_severity", g.ParticipationSeverity)
	v.SetDefault("gates.max_largest_cycle", g.MaxLargestCycle)
	v.SetDefault("gates.largest_cycle_severity", g.LargestCycleSeverity)
	v.SetDefault("gates.max_hard_projects", g.MaxHardProjects)
	v.SetDefault("gates.hard_projects_severity", g.HardProjectsSeverity)
	v.SetDefault("gates.max_dangling", g.MaxDangling)
	v.SetDefault("gates.dangling_severity", g.DanglingSeverity)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
