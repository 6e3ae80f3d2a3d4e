package cycles

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidVertexCount is returned for a negative total vertex count.
var ErrInvalidVertexCount = errors.New("total vertex count must not be negative")

// Statistics aggregates the detected cycles.
type Statistics struct {
	TotalCycles       int     `json:"total_cycles"`
	LargestCycleSize  int     `json:"largest_cycle_size"`
	ProjectsInCycles  int     `json:"projects_in_cycles"`
	TotalProjects     int     `json:"total_projects"`
	ParticipationRate float64 `json:"participation_rate"` // percent, 0-100
}

// ComputeStatistics counts cycles and the distinct projects taking part in them.
// A project in several overlapping cycles is counted once.
func ComputeStatistics(ctx context.Context, cycles []*CycleInfo, totalVertices int) (Statistics, error) {
	if totalVertices < 0 {
		return Statistics{}, fmt.Errorf("%w: %d", ErrInvalidVertexCount, totalVertices)
	}

	stats := Statistics{
		TotalCycles:   len(cycles),
		TotalProjects: totalVertices,
	}

	members := make(map[string]struct{})
	for _, c := range cycles {
		if err := ctx.Err(); err != nil {
			return Statistics{}, err
		}
		if c.Size > stats.LargestCycleSize {
			stats.LargestCycleSize = c.Size
		}
		for _, p := range c.Projects {
			members[p] = struct{}{}
		}
	}
	stats.ProjectsInCycles = len(members)

	if totalVertices > 0 {
		rate := float64(stats.ProjectsInCycles) / float64(totalVertices) * 100
		if rate > 100 {
			rate = 100
		}
		stats.ParticipationRate = rate
	}

	return stats, nil
}

// Summary returns a one-line description of the statistics.
func (s Statistics) Summary() string {
	if s.TotalCycles == 0 {
		return fmt.Sprintf("No cycles across %d projects", s.TotalProjects)
	}
	return fmt.Sprintf("%d cycles, largest %d projects, %d/%d projects involved (%.1f%%)",
		s.TotalCycles, s.LargestCycleSize, s.ProjectsInCycles, s.TotalProjects, s.ParticipationRate)
}
