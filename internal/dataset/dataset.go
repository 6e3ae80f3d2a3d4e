// Package dataset loads pre-resolved solution data from a YAML or JSON document.
//
// A document lists the solutions with their projects and references, plus the
// per-project measurements the scorers consume. Parsing of build files and source code
// happens elsewhere; this package only reads their output.
package dataset

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/efebarandurmaz/fracture/internal/breakpoint"
	"github.com/efebarandurmaz/fracture/internal/depgraph"
	"github.com/efebarandurmaz/fracture/internal/scoring"
)

// Document is the on-disk layout.
type Document struct {
	Solutions         []SolutionDoc  `yaml:"solutions"`
	CallCounts        []CallCountDoc `yaml:"call_counts"`
	FrameworkPatterns []string       `yaml:"framework_patterns"`
}

type SolutionDoc struct {
	ID       string       `yaml:"id"`
	Projects []ProjectDoc `yaml:"projects"`
}

type ProjectDoc struct {
	Path            string                  `yaml:"path"`
	Name            string                  `yaml:"name"`
	Framework       bool                    `yaml:"framework"`
	References      []string                `yaml:"references"`
	TargetFramework *string                 `yaml:"target_framework"`
	Complexity      *scoring.ComplexityData `yaml:"complexity"`
	Endpoints       *int                    `yaml:"endpoints"`
}

type CallCountDoc struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Count int    `yaml:"count"`
}

// Dataset is a decoded document with every path resolved to a vertex identity.
// Measurements absent from the document are absent from the lookups.
type Dataset struct {
	Solutions  []depgraph.Solution
	CallCounts breakpoint.CallCountMap
	Complexity scoring.ComplexityMap
	Frameworks scoring.FrameworkMap
	Endpoints  scoring.EndpointMap
}

// Options control how a document is turned into a Dataset.
type Options struct {
	// BaseDir resolves relative project paths. Load defaults it to the document's directory.
	BaseDir string
	// FrameworkPatterns are added to the document's own patterns.
	FrameworkPatterns []string
	Logger            *slog.Logger
}

// Load reads and decodes the document at file.
func Load(file string, opts Options) (*Dataset, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	if opts.BaseDir == "" {
		abs, err := filepath.Abs(filepath.Dir(file))
		if err != nil {
			return nil, fmt.Errorf("resolving dataset directory: %w", err)
		}
		opts.BaseDir = abs
	}
	ds, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return ds, nil
}

// Parse decodes a document. Unknown fields are rejected so typos surface early.
func Parse(data []byte, opts Options) (*Dataset, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing dataset (check for unknown/misspelled fields): %w", err)
	}

	filter, err := NewFrameworkFilter(append(doc.FrameworkPatterns, opts.FrameworkPatterns...)...)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		CallCounts: breakpoint.CallCountMap{},
		Complexity: scoring.ComplexityMap{},
		Frameworks: scoring.FrameworkMap{},
		Endpoints:  scoring.EndpointMap{},
	}
	resolve := func(p string) string { return resolvePath(opts.BaseDir, p) }

	for i, sol := range doc.Solutions {
		id := sol.ID
		if id == "" {
			id = fmt.Sprintf("solution-%d", i+1)
		}
		out := depgraph.Solution{ID: id}
		for _, p := range sol.Projects {
			rec := depgraph.ProjectRecord{
				Path:        resolve(p.Path),
				Name:        p.Name,
				IsFramework: p.Framework,
			}
			for _, ref := range p.References {
				rec.References = append(rec.References, resolve(ref))
			}
			if !rec.IsFramework && filter.Match(rec.Path, p.Name) {
				rec.IsFramework = true
				logger.Debug("project marked as framework by pattern", "project", rec.Path)
			}
			out.Projects = append(out.Projects, rec)

			key, err := depgraph.NormalizePath(rec.Path)
			if err != nil {
				// The builder reports malformed identities; measurements for them are moot.
				continue
			}
			// A project shared by several solutions keeps the measurements of the first
			// solution that declares them, matching the vertex's solution tag.
			if p.TargetFramework != nil {
				keepFirst(logger, ds.Frameworks, key, *p.TargetFramework, id, "target_framework")
			}
			if p.Complexity != nil {
				keepFirst(logger, ds.Complexity, key, *p.Complexity, id, "complexity")
			}
			if p.Endpoints != nil {
				keepFirst(logger, ds.Endpoints, key, *p.Endpoints, id, "endpoints")
			}
		}
		ds.Solutions = append(ds.Solutions, out)
	}

	for _, cc := range doc.CallCounts {
		from, errFrom := depgraph.NormalizePath(resolve(cc.From))
		to, errTo := depgraph.NormalizePath(resolve(cc.To))
		if errFrom != nil || errTo != nil {
			logger.Warn("skipping call count with malformed endpoint", "from", cc.From, "to", cc.To)
			continue
		}
		if cc.Count < 0 {
			logger.Warn("skipping negative call count", "from", from, "to", to, "count", cc.Count)
			continue
		}
		ds.CallCounts[depgraph.Edge{From: from, To: to}] += cc.Count
	}

	return ds, nil
}

// keepFirst records value under key unless an earlier solution already did. A differing
// later value is logged and ignored.
func keepFirst[M ~map[string]V, V comparable](logger *slog.Logger, m M, key string, value V, solution, field string) {
	prev, ok := m[key]
	if !ok {
		m[key] = value
		return
	}
	if prev != value {
		logger.Warn("conflicting measurement, keeping first-seen",
			"project", key, "field", field, "solution", solution,
			"kept", prev, "ignored", value)
	}
}

// resolvePath joins a relative slash or backslash path onto base. Absolute and empty
// paths are returned unchanged.
func resolvePath(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || base == "" {
		return p
	}
	slashed := strings.ReplaceAll(p, `\`, "/")
	if depgraph.IsAbs(slashed) {
		return p
	}
	return path.Join(filepath.ToSlash(base), slashed)
}
