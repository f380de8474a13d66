// Package graph defines the lineage dependency graph: typed nodes and
// edges with merge-on-add semantics, incrementally maintained adjacency
// indices, BFS traversal, and a lossless JSON wire format.
//
// A Graph is populated once by the builder and treated as read-only by
// every downstream consumer, so concurrent reads need no locking.
package graph

import (
	"fmt"
	"strings"
)

// NodeKind classifies a node. The set is closed; raw strings are
// normalized through ParseNodeKind at deserialization boundaries and
// never stored directly.
type NodeKind string

const (
	// NodeDataset is anything queryable: a table, view, materialized
	// view, or dynamic table.
	NodeDataset NodeKind = "dataset"
	// NodeTask is a scheduled unit of SQL execution.
	NodeTask NodeKind = "task"
)

// ParseNodeKind normalizes a raw string into a NodeKind.
func ParseNodeKind(s string) (NodeKind, error) {
	switch NodeKind(strings.ToLower(strings.TrimSpace(s))) {
	case NodeDataset:
		return NodeDataset, nil
	case NodeTask:
		return NodeTask, nil
	}
	return "", fmt.Errorf("unknown node kind %q", s)
}

// EdgeKind classifies a directed edge.
type EdgeKind string

const (
	// EdgeDerivesFrom points from a dataset at a source its definition
	// reads from.
	EdgeDerivesFrom EdgeKind = "derives_from"
	// EdgeProduces points from a task at a dataset it writes to.
	EdgeProduces EdgeKind = "produces"
	// EdgeConsumes points from a task at a dataset it reads from.
	EdgeConsumes EdgeKind = "consumes"
)

// AllEdgeKinds lists every edge kind, in a fixed order.
var AllEdgeKinds = []EdgeKind{EdgeDerivesFrom, EdgeProduces, EdgeConsumes}

// ParseEdgeKind normalizes a raw string into an EdgeKind.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch EdgeKind(strings.ToLower(strings.TrimSpace(s))) {
	case EdgeDerivesFrom:
		return EdgeDerivesFrom, nil
	case EdgeProduces:
		return EdgeProduces, nil
	case EdgeConsumes:
		return EdgeConsumes, nil
	}
	return "", fmt.Errorf("unknown edge kind %q", s)
}

// TaskKeySuffix distinguishes a task node from a dataset of the same
// fully qualified name.
const TaskKeySuffix = "::task"

// TaskKey appends the task suffix to a fully qualified name, if absent.
func TaskKey(key string) string {
	if strings.HasSuffix(key, TaskKeySuffix) {
		return key
	}
	return key + TaskKeySuffix
}

// ShortName returns the unqualified object name of a node key, with any
// task suffix removed.
func ShortName(key string) string {
	key = strings.TrimSuffix(key, TaskKeySuffix)
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i+1:]
	}
	return key
}

// Node is one data object or scheduled task. Key is immutable identity;
// Attributes are descriptive only and never affect graph algorithms.
type Node struct {
	Key        string
	Kind       NodeKind
	Attributes map[string]string
}

// Edge is a directed, typed relationship between two node keys. Identity
// is the (Source, Target, Kind) triple; Evidence records why the edge
// exists and never affects semantics.
type Edge struct {
	Source   string
	Target   string
	Kind     EdgeKind
	Evidence map[string]string
}

type edgeID struct {
	src  string
	dst  string
	kind EdgeKind
}

// Graph is a node set keyed by node key plus an edge set keyed by the
// (source, target, kind) triple, with insertion-stable iteration order.
type Graph struct {
	nodes     map[string]*Node
	nodeOrder []string
	edges     map[edgeID]*Edge
	edgeOrder []edgeID
	out       map[string][]edgeID
	in        map[string][]edgeID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[edgeID]*Edge),
		out:   make(map[string][]edgeID),
		in:    make(map[string][]edgeID),
	}
}

// AddNode inserts a node or, if the key already exists, merges the given
// attributes into the existing node. The kind of an existing node is
// upgraded from dataset to task but never downgraded, so that a dataset
// placeholder auto-created by AddEdge can later be typed properly.
func (g *Graph) AddNode(n Node) {
	existing, ok := g.nodes[n.Key]
	if !ok {
		stored := &Node{Key: n.Key, Kind: n.Kind, Attributes: copyMap(n.Attributes)}
		if stored.Kind == "" {
			stored.Kind = NodeDataset
		}
		if stored.Attributes == nil {
			stored.Attributes = make(map[string]string)
		}
		g.nodes[n.Key] = stored
		g.nodeOrder = append(g.nodeOrder, n.Key)
		return
	}
	for k, v := range n.Attributes {
		existing.Attributes[k] = v
	}
	if n.Kind == NodeTask {
		existing.Kind = NodeTask
	}
}

// AddEdge inserts an edge, auto-creating either endpoint as a bare
// dataset node if absent. An edge is never dropped for a missing
// endpoint: downstream analyses assume referential completeness. Adding
// an existing triple merges evidence instead of duplicating the edge.
func (g *Graph) AddEdge(e Edge) {
	if _, ok := g.nodes[e.Source]; !ok {
		g.AddNode(Node{Key: e.Source, Kind: NodeDataset})
	}
	if _, ok := g.nodes[e.Target]; !ok {
		g.AddNode(Node{Key: e.Target, Kind: NodeDataset})
	}

	id := edgeID{src: e.Source, dst: e.Target, kind: e.Kind}
	if existing, ok := g.edges[id]; ok {
		for k, v := range e.Evidence {
			existing.Evidence[k] = v
		}
		return
	}

	stored := &Edge{Source: e.Source, Target: e.Target, Kind: e.Kind, Evidence: copyMap(e.Evidence)}
	if stored.Evidence == nil {
		stored.Evidence = make(map[string]string)
	}
	g.edges[id] = stored
	g.edgeOrder = append(g.edgeOrder, id)
	g.out[e.Source] = append(g.out[e.Source], id)
	g.in[e.Target] = append(g.in[e.Target], id)
}

// Node returns the node stored under key.
func (g *Graph) Node(key string) (*Node, bool) {
	n, ok := g.nodes[key]
	return n, ok
}

// HasNode reports whether key is present.
func (g *Graph) HasNode(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.nodeOrder))
	for _, key := range g.nodeOrder {
		nodes = append(nodes, g.nodes[key])
	}
	return nodes
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge {
	edges := make([]*Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		edges = append(edges, g.edges[id])
	}
	return edges
}

// Outgoing returns the edges whose source is key, in insertion order.
func (g *Graph) Outgoing(key string) []*Edge {
	return g.edgesByID(g.out[key])
}

// Incoming returns the edges whose target is key, in insertion order.
func (g *Graph) Incoming(key string) []*Edge {
	return g.edgesByID(g.in[key])
}

func (g *Graph) edgesByID(ids []edgeID) []*Edge {
	if len(ids) == 0 {
		return nil
	}
	edges := make([]*Edge, 0, len(ids))
	for _, id := range ids {
		edges = append(edges, g.edges[id])
	}
	return edges
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Neighbors returns the keys adjacent to key, filtered by direction and
// an optional kind filter, in insertion-stable order without duplicates.
func (g *Graph) Neighbors(key string, dir Direction, kinds []EdgeKind) []string {
	allowed := kindSet(kinds)
	seen := make(map[string]struct{})
	var result []string

	appendNeighbor := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		result = append(result, k)
	}

	if dir == Downstream || dir == Both {
		for _, id := range g.out[key] {
			if allowed == nil || allowed[id.kind] {
				appendNeighbor(id.dst)
			}
		}
	}
	if dir == Upstream || dir == Both {
		for _, id := range g.in[key] {
			if allowed == nil || allowed[id.kind] {
				appendNeighbor(id.src)
			}
		}
	}
	return result
}

func kindSet(kinds []EdgeKind) map[EdgeKind]bool {
	if len(kinds) == 0 {
		return nil
	}
	set := make(map[EdgeKind]bool, len(kinds))
	for _, k := range kinds {
		set[k] = true
	}
	return set
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
