package neo4j

import (
	"context"
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/efebarandurmaz/fracture/internal/depgraph"
	"github.com/efebarandurmaz/fracture/internal/graph"
)

// Neo4jRepository implements graph.Repository using Neo4j. Every node carries the
// fingerprint of the graph it belongs to, so snapshots of different inputs coexist.
type Neo4jRepository struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4j creates a Neo4j-backed repository. An empty database selects the server default.
func NewNeo4j(ctx context.Context, uri, username, password, database string) (*Neo4jRepository, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity: %w", err)
	}
	return &Neo4jRepository{driver: driver, database: database}, nil
}

func (r *Neo4jRepository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

const (
	cypherProjects = `
UNWIND $projects AS p
MERGE (n:Project {fingerprint: $fp, path: p.path})
SET n.name = p.name, n.solution = p.solution, n.framework = p.framework, n.position = p.position`

	cypherEdges = `
UNWIND $edges AS e
MATCH (a:Project {fingerprint: $fp, path: e.from}), (b:Project {fingerprint: $fp, path: e.to})
MERGE (a)-[d:DEPENDS_ON]->(b)
SET d.cross_solution = e.cross_solution`

	cypherCycles = `
UNWIND $cycles AS c
MERGE (y:Cycle {fingerprint: $fp, id: c.id})
SET y.size = c.size, y.min_coupling = c.min_coupling
WITH y, c
UNWIND c.members AS member
MATCH (p:Project {fingerprint: $fp, path: member})
MERGE (p)-[:IN_CYCLE]->(y)`

	cypherCuts = `
UNWIND $cuts AS s
MATCH (:Project {fingerprint: $fp, path: s.from})-[d:DEPENDS_ON]->(:Project {fingerprint: $fp, path: s.to})
SET d.suggested_cut = true, d.rank = s.rank, d.coupling = s.coupling, d.cycle_id = s.cycle_id`

	cypherLoad = `
MATCH (p:Project {fingerprint: $fp})
OPTIONAL MATCH (p)-[:DEPENDS_ON]->(q:Project {fingerprint: $fp})
RETURN p.path AS path, p.name AS name, p.solution AS solution, p.framework AS framework,
       p.position AS position, collect(q.path) AS refs
ORDER BY position`

	cypherDependents = `
MATCH (d:Project {fingerprint: $fp})-[:DEPENDS_ON]->(:Project {fingerprint: $fp, path: $path})
WHERE d.path <> $path
RETURN d.path AS path
ORDER BY path`
)

// StoreSnapshot writes the whole snapshot in one transaction.
func (r *Neo4jRepository) StoreSnapshot(ctx context.Context, snap graph.Snapshot) error {
	if snap.Graph == nil {
		return depgraph.ErrNilGraph
	}
	if snap.Fingerprint == "" {
		snap.Fingerprint = depgraph.Fingerprint(snap.Graph)
	}
	params := snapshotParams(snap)

	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range []struct {
			name, cypher, key string
		}{
			{"projects", cypherProjects, "projects"},
			{"references", cypherEdges, "edges"},
			{"cycles", cypherCycles, "cycles"},
			{"suggested cuts", cypherCuts, "cuts"},
		} {
			if _, err := tx.Run(ctx, q.cypher, map[string]any{"fp": snap.Fingerprint, q.key: params[q.key]}); err != nil {
				return nil, fmt.Errorf("store %s: %w", q.name, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("store snapshot %s: %w", snap.Fingerprint, err)
	}
	return nil
}

// snapshotParams converts a snapshot into UNWIND-ready parameter lists.
func snapshotParams(snap graph.Snapshot) map[string][]map[string]any {
	g := snap.Graph
	params := map[string][]map[string]any{
		"projects": {},
		"edges":    {},
		"cycles":   {},
		"cuts":     {},
	}
	for i, v := range g.Vertices() {
		params["projects"] = append(params["projects"], map[string]any{
			"path":      v.Path,
			"name":      v.Name,
			"solution":  v.Solution,
			"framework": v.IsFramework,
			"position":  int64(i),
		})
	}
	for _, e := range g.Edges() {
		params["edges"] = append(params["edges"], map[string]any{
			"from":           e.From,
			"to":             e.To,
			"cross_solution": g.IsCrossSolution(e),
		})
	}
	for _, c := range snap.Cycles {
		members := make([]any, len(c.Projects))
		for i, p := range c.Projects {
			members[i] = p
		}
		params["cycles"] = append(params["cycles"], map[string]any{
			"id":           int64(c.ID),
			"size":         int64(c.Size),
			"min_coupling": int64(c.MinCouplingScore),
			"members":      members,
		})
	}
	for _, s := range snap.Suggestions {
		params["cuts"] = append(params["cuts"], map[string]any{
			"from":     s.Source.Path,
			"to":       s.Target.Path,
			"rank":     int64(s.Rank),
			"coupling": int64(s.CouplingScore),
			"cycle_id": int64(s.CycleID),
		})
	}
	return params
}

func (r *Neo4jRepository) LoadGraph(ctx context.Context, fingerprint string) (*depgraph.DependencyGraph, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, cypherLoad, map[string]any{"fp": fingerprint})
		if err != nil {
			return nil, err
		}

		var rows []projectRow
		for records.Next(ctx) {
			row, err := rowFromRecord(records.Record())
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}
		return rows, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("load graph %s: %w", fingerprint, err)
	}

	rows := result.([]projectRow)
	if len(rows) == 0 {
		return nil, fmt.Errorf("fingerprint %s: %w", fingerprint, graph.ErrNotFound)
	}
	g, _, err := depgraph.NewBuilder(nil).Build(ctx, solutionsFromRows(rows))
	if err != nil {
		return nil, fmt.Errorf("rebuild graph %s: %w", fingerprint, err)
	}
	return g, nil
}

type projectRow struct {
	path, name, solution string
	framework            bool
	refs                 []string
}

func rowFromRecord(rec *neo4j.Record) (projectRow, error) {
	path, _, err := neo4j.GetRecordValue[string](rec, "path")
	if err != nil {
		return projectRow{}, err
	}
	name, _, err := neo4j.GetRecordValue[string](rec, "name")
	if err != nil {
		return projectRow{}, err
	}
	solution, _, err := neo4j.GetRecordValue[string](rec, "solution")
	if err != nil {
		return projectRow{}, err
	}
	framework, _, err := neo4j.GetRecordValue[bool](rec, "framework")
	if err != nil {
		return projectRow{}, err
	}
	rawRefs, _, err := neo4j.GetRecordValue[[]any](rec, "refs")
	if err != nil {
		return projectRow{}, err
	}

	row := projectRow{path: path, name: name, solution: solution, framework: framework}
	for _, ref := range rawRefs {
		if s, ok := ref.(string); ok {
			row.refs = append(row.refs, s)
		}
	}
	// collect() has no defined order.
	sort.Strings(row.refs)
	return row, nil
}

func solutionsFromRows(rows []projectRow) []depgraph.Solution {
	index := make(map[string]int)
	var sols []depgraph.Solution
	for _, row := range rows {
		i, ok := index[row.solution]
		if !ok {
			i = len(sols)
			index[row.solution] = i
			sols = append(sols, depgraph.Solution{ID: row.solution})
		}
		sols[i].Projects = append(sols[i].Projects, depgraph.ProjectRecord{
			Path:        row.path,
			Name:        row.name,
			IsFramework: row.framework,
			References:  row.refs,
		})
	}
	return sols
}

func (r *Neo4jRepository) QueryDependents(ctx context.Context, fingerprint, project string) ([]string, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		records, err := tx.Run(ctx, cypherDependents, map[string]any{"fp": fingerprint, "path": project})
		if err != nil {
			return nil, err
		}
		var paths []string
		for records.Next(ctx) {
			p, _, err := neo4j.GetRecordValue[string](records.Record(), "path")
			if err != nil {
				return nil, err
			}
			paths = append(paths, p)
		}
		return paths, records.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("query dependents of %s: %w", project, err)
	}
	return result.([]string), nil
}

func (r *Neo4jRepository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

var _ graph.Repository = (*Neo4jRepository)(nil)
