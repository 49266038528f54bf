// Package kg holds the regulation knowledge graph: laws, implementing
// regulations, chapters and articles as nodes, with typed relations between
// them. The graph is built by ingestion, loaded at startup, and read-only
// during serving.
package kg

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hukumqa/hukumqa/internal/models"
)

// NodeType classifies a graph node.
type NodeType string

const (
	NodeLaw                    NodeType = "law"
	NodeGovernmentRegulation   NodeType = "government_regulation"
	NodePresidentialRegulation NodeType = "presidential_regulation"
	NodeMinisterialRegulation  NodeType = "ministerial_regulation"
	NodeChapter                NodeType = "chapter"
	NodeArticle                NodeType = "article"
)

// Node is one regulation, chapter, or article. Parent is the id of the
// containing regulation or chapter; Text is populated for articles only.
type Node struct {
	ID     string   `json:"id"`
	Type   NodeType `json:"type"`
	Number string   `json:"number,omitempty"`
	Year   string   `json:"year,omitempty"`
	Title  string   `json:"title,omitempty"`
	About  string   `json:"about,omitempty"`
	Parent string   `json:"parent,omitempty"`
	Text   string   `json:"text,omitempty"`
}

// EdgeType labels a directed relation between two nodes.
type EdgeType string

const (
	EdgeContains   EdgeType = "contains"
	EdgeImplements EdgeType = "implements"
	EdgeAmends     EdgeType = "amends"
	EdgeRevokes    EdgeType = "revokes"
	EdgeReplaces   EdgeType = "replaces"
	EdgeReferences EdgeType = "references"
	EdgeSupersedes EdgeType = "supersedes"

	EdgeAmendedBy     EdgeType = "amended_by"
	EdgeRevokedBy     EdgeType = "revoked_by"
	EdgeReplacedBy    EdgeType = "replaced_by"
	EdgeImplementedBy EdgeType = "implemented_by"
)

// reverseOf maps forward relations onto their inverse. Relations absent
// from the table have no materialized inverse.
var reverseOf = map[EdgeType]EdgeType{
	EdgeAmends:     EdgeAmendedBy,
	EdgeRevokes:    EdgeRevokedBy,
	EdgeReplaces:   EdgeReplacedBy,
	EdgeImplements: EdgeImplementedBy,
}

// forwardOf is the inverse view of reverseOf.
var forwardOf = map[EdgeType]EdgeType{
	EdgeAmendedBy:     EdgeAmends,
	EdgeRevokedBy:     EdgeRevokes,
	EdgeReplacedBy:    EdgeReplaces,
	EdgeImplementedBy: EdgeImplements,
}

// BoostEdgeTypes are the relations the retriever expands along when boosting
// candidates related to the top results.
var BoostEdgeTypes = []EdgeType{EdgeImplements, EdgeAmends, EdgeReferences, EdgeSupersedes}

// Traversal budgets.
const (
	DefaultBoostBudget   = 200 * time.Millisecond
	DefaultRelatedBudget = 500 * time.Millisecond
)

// Edge is a directed relation between two nodes. Several relation types can
// coexist on the same (source, target) pair; Types holds all of them and
// Metadata carries optional per-type attributes.
type Edge struct {
	Source   string                            `json:"source"`
	Target   string                            `json:"target"`
	Types    []EdgeType                        `json:"edge_types"`
	Metadata map[EdgeType]map[string]interface{} `json:"metadata,omitempty"`
}

// HasType reports whether the edge carries the given relation.
func (e *Edge) HasType(t EdgeType) bool {
	for _, et := range e.Types {
		if et == t {
			return true
		}
	}
	return false
}

func (e *Edge) hasAnyType(types []EdgeType) bool {
	for _, t := range types {
		if e.HasType(t) {
			return true
		}
	}
	return false
}

// Graph is a directed multi-relation graph keyed by node id.
type Graph struct {
	mu     sync.RWMutex
	nodes  map[string]*Node
	edges  map[string]*Edge // keyed by source + "\x00" + target
	out    map[string][]*Edge
	in     map[string][]*Edge
	logger *logrus.Logger
}

// NewGraph returns an empty graph.
func NewGraph(logger *logrus.Logger) *Graph {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.WarnLevel)
	}
	return &Graph{
		nodes:  make(map[string]*Node),
		edges:  make(map[string]*Edge),
		out:    make(map[string][]*Edge),
		in:     make(map[string][]*Edge),
		logger: logger,
	}
}

// AddNode inserts a node. Node ids are globally unique.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.ID == "" {
		return fmt.Errorf("node id is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate node id: %s", n.ID)
	}
	g.nodes[n.ID] = n
	return nil
}

// GetNode returns the node with the given id.
func (g *Graph) GetNode(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// AddEdge records a relation from source to target. When an edge for the
// pair already exists the type is merged onto it.
func (g *Graph) AddEdge(source, target string, t EdgeType, meta map[string]interface{}) error {
	if source == "" || target == "" {
		return fmt.Errorf("edge endpoints are required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.addEdgeLocked(source, target, t, meta)
}

func (g *Graph) addEdgeLocked(source, target string, t EdgeType, meta map[string]interface{}) error {
	key := source + "\x00" + target
	e, exists := g.edges[key]
	if !exists {
		e = &Edge{Source: source, Target: target}
		g.edges[key] = e
		g.out[source] = append(g.out[source], e)
		g.in[target] = append(g.in[target], e)
	}
	if !e.HasType(t) {
		e.Types = append(e.Types, t)
	}
	if meta != nil {
		if e.Metadata == nil {
			e.Metadata = make(map[EdgeType]map[string]interface{})
		}
		e.Metadata[t] = meta
	}
	return nil
}

// EnsureReverseEdges materializes the inverse relation for every forward
// edge whose type has a defined inverse. Idempotent; returns the number of
// relation instances added.
func (g *Graph) EnsureReverseEdges() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	added := 0
	// Snapshot the pairs first; addEdgeLocked mutates the maps.
	type pending struct {
		source, target string
		t              EdgeType
	}
	var todo []pending
	for _, e := range g.edges {
		for _, t := range e.Types {
			rev, ok := reverseOf[t]
			if !ok {
				continue
			}
			revKey := e.Target + "\x00" + e.Source
			if existing, ok := g.edges[revKey]; ok && existing.HasType(rev) {
				continue
			}
			todo = append(todo, pending{e.Target, e.Source, rev})
		}
	}
	for _, p := range todo {
		_ = g.addEdgeLocked(p.source, p.target, p.t, nil)
		added++
	}
	return added
}

// Neighborhood expands the seed set by up to hops steps along the given
// relation types, in both directions. Traversal preempts at every edge
// check once ctx is done; callers treat a deadline error by skipping the
// boost. The returned set includes the seeds.
func (g *Graph) Neighborhood(ctx context.Context, seeds []string, hops int, along []EdgeType) (map[string]bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	reached := make(map[string]bool, len(seeds))
	type item struct {
		id    string
		depth int
	}
	queue := make([]item, 0, len(seeds))
	for _, s := range seeds {
		if !reached[s] {
			reached[s] = true
			queue = append(queue, item{s, 0})
		}
	}

	visit := func(next string, depth int) {
		if !reached[next] {
			reached[next] = true
			queue = append(queue, item{next, depth})
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= hops {
			continue
		}
		for _, e := range g.out[cur.id] {
			if err := ctx.Err(); err != nil {
				return reached, err
			}
			if e.hasAnyType(along) {
				visit(e.Target, cur.depth+1)
			}
		}
		for _, e := range g.in[cur.id] {
			if err := ctx.Err(); err != nil {
				return reached, err
			}
			if e.hasAnyType(along) {
				visit(e.Source, cur.depth+1)
			}
		}
	}
	return reached, nil
}

// amendmentForwardTypes are the relations Amendments reports.
var amendmentForwardTypes = []EdgeType{EdgeAmends, EdgeRevokes, EdgeReplaces}

var edgeToAmendmentType = map[EdgeType]models.AmendmentType{
	EdgeAmends:   models.AmendmentAmends,
	EdgeRevokes:  models.AmendmentRevokes,
	EdgeReplaces: models.AmendmentReplaces,
}

// Amendments returns every amendment relation touching the given regulation,
// in both directions, expressed as forward Source-acts-on-Target relations.
func (g *Graph) Amendments(id string) []models.AmendmentRelation {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var rels []models.AmendmentRelation
	for _, e := range g.out[id] {
		for _, t := range e.Types {
			if at, ok := edgeToAmendmentType[t]; ok {
				rels = append(rels, models.AmendmentRelation{Source: id, Target: e.Target, Type: at, Confidence: 1.0})
			}
		}
	}
	for _, e := range g.in[id] {
		for _, t := range e.Types {
			if at, ok := edgeToAmendmentType[t]; ok {
				rels = append(rels, models.AmendmentRelation{Source: e.Source, Target: id, Type: at, Confidence: 1.0})
			}
		}
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Source != rels[j].Source {
			return rels[i].Source < rels[j].Source
		}
		return rels[i].Target < rels[j].Target
	})
	return rels
}

// RelatedRegulation is one neighbor of a regulation with the relation that
// connects them, as seen from the queried node.
type RelatedRegulation struct {
	ID       string   `json:"id"`
	Relation EdgeType `json:"relation"`
	Node     *Node    `json:"node,omitempty"`
}

// RelatedRegulations returns the regulations directly related to id along
// non-structural relations. The traversal runs under DefaultRelatedBudget
// unless ctx already carries an earlier deadline.
func (g *Graph) RelatedRegulations(ctx context.Context, id string) ([]RelatedRegulation, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultRelatedBudget)
	defer cancel()

	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[id]; !ok {
		return nil, fmt.Errorf("unknown regulation: %s", id)
	}

	seen := make(map[string]bool)
	var out []RelatedRegulation
	add := func(other string, rel EdgeType) {
		key := other + string(rel)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, RelatedRegulation{ID: other, Relation: rel, Node: g.nodes[other]})
	}

	for _, e := range g.out[id] {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		for _, t := range e.Types {
			if t == EdgeContains {
				continue
			}
			add(e.Target, t)
		}
	}
	for _, e := range g.in[id] {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		for _, t := range e.Types {
			if t == EdgeContains {
				continue
			}
			// Express the incoming relation from this node's viewpoint.
			rel := t
			if inv, ok := reverseOf[t]; ok {
				rel = inv
			} else if fwd, ok := forwardOf[t]; ok {
				rel = fwd
			}
			add(e.Source, rel)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ID != out[j].ID {
			return out[i].ID < out[j].ID
		}
		return out[i].Relation < out[j].Relation
	})
	return out, nil
}

// Stats summarizes the graph contents.
type Stats struct {
	Nodes       int              `json:"nodes"`
	Edges       int              `json:"edges"`
	NodesByType map[NodeType]int `json:"nodes_by_type"`
	EdgesByType map[EdgeType]int `json:"edges_by_type"`
}

// GetStats returns node and edge counts, broken down by type. Edges counts
// (source, target) pairs; EdgesByType counts individual relation instances.
func (g *Graph) GetStats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s := Stats{
		Nodes:       len(g.nodes),
		Edges:       len(g.edges),
		NodesByType: make(map[NodeType]int),
		EdgesByType: make(map[EdgeType]int),
	}
	for _, n := range g.nodes {
		s.NodesByType[n.Type]++
	}
	for _, e := range g.edges {
		for _, t := range e.Types {
			s.EdgesByType[t]++
		}
	}
	return s
}
