package dataset

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FrameworkFilter flags framework and third-party projects by glob. Patterns containing
// a slash match the project path; others match the display name, falling back to the
// file name.
type FrameworkFilter struct {
	pathPatterns []string
	namePatterns []string
}

// NewFrameworkFilter validates and splits the patterns.
func NewFrameworkFilter(patterns ...string) (*FrameworkFilter, error) {
	f := &FrameworkFilter{}
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid framework pattern %q", p)
		}
		if strings.Contains(p, "/") {
			f.pathPatterns = append(f.pathPatterns, p)
		} else {
			f.namePatterns = append(f.namePatterns, p)
		}
	}
	return f, nil
}

// Match reports whether the project is a framework project.
func (f *FrameworkFilter) Match(projectPath, name string) bool {
	if f == nil {
		return false
	}
	slashed := strings.ReplaceAll(projectPath, `\`, "/")
	// Relative patterns such as **/packages/** must also match rooted paths.
	relative := strings.TrimPrefix(slashed, "/")
	for _, pattern := range f.pathPatterns {
		if matched, _ := doublestar.Match(pattern, slashed); matched {
			return true
		}
		if matched, _ := doublestar.Match(pattern, relative); matched {
			return true
		}
	}
	if name == "" {
		name = baseName(slashed)
	}
	for _, pattern := range f.namePatterns {
		if matched, _ := doublestar.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// baseName strips the directory and extension: /src/Api/Api.csproj -> Api.
func baseName(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndex(p, "."); i > 0 {
		p = p[:i]
	}
	return p
}
