package kg

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
)

// graphFile is the on-disk shape: flat arrays of nodes and edges. Edges use
// the multi-valued edge_types form even when a pair carries one relation.
type graphFile struct {
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`
}

// Save writes the graph to path as JSON. Reverse edges are persisted too so
// a loaded graph is usable before EnsureReverseEdges runs.
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	file := graphFile{
		Nodes: make([]*Node, 0, len(g.nodes)),
		Edges: make([]*Edge, 0, len(g.edges)),
	}
	for _, n := range g.nodes {
		file.Nodes = append(file.Nodes, n)
	}
	for _, e := range g.edges {
		file.Edges = append(file.Edges, e)
	}
	g.mu.RUnlock()

	sort.Slice(file.Nodes, func(i, j int) bool { return file.Nodes[i].ID < file.Nodes[j].ID })
	sort.Slice(file.Edges, func(i, j int) bool {
		if file.Edges[i].Source != file.Edges[j].Source {
			return file.Edges[i].Source < file.Edges[j].Source
		}
		return file.Edges[i].Target < file.Edges[j].Target
	})

	data, err := json.MarshalIndent(&file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write graph file: %w", err)
	}
	return nil
}

// Load reads a graph from path and ensures reverse edges are present.
func Load(path string, logger *logrus.Logger) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph file: %w", err)
	}

	var file graphFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse graph file: %w", err)
	}

	g := NewGraph(logger)
	for _, n := range file.Nodes {
		if err := g.AddNode(n); err != nil {
			return nil, fmt.Errorf("graph file %s: %w", path, err)
		}
	}
	for _, e := range file.Edges {
		for _, t := range e.Types {
			var meta map[string]interface{}
			if e.Metadata != nil {
				meta = e.Metadata[t]
			}
			if err := g.AddEdge(e.Source, e.Target, t, meta); err != nil {
				return nil, fmt.Errorf("graph file %s: %w", path, err)
			}
		}
	}

	added := g.EnsureReverseEdges()
	stats := g.GetStats()
	g.logger.WithFields(logrus.Fields{
		"path":           path,
		"nodes":          stats.Nodes,
		"edges":          stats.Edges,
		"reverses_added": added,
	}).Info("Knowledge graph loaded")
	return g, nil
}
