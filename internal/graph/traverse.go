package graph

import (
	"fmt"
	"strings"
)

// Direction selects which edges a traversal follows from each node.
type Direction string

const (
	// Downstream walks out-edges: "what does this feed".
	Downstream Direction = "downstream"
	// Upstream walks in-edges: "what feeds this".
	Upstream Direction = "upstream"
	// Both walks out- and in-edges at every step.
	Both Direction = "both"
)

// ParseDirection normalizes a raw string into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Downstream:
		return Downstream, nil
	case Upstream:
		return Upstream, nil
	case Both:
		return Both, nil
	}
	return "", fmt.Errorf("unknown direction %q", s)
}

// Unbounded disables the depth cap of a traversal.
const Unbounded = -1

// TraverseOptions configures a traversal. The zero value walks
// downstream over every edge kind with no depth cap.
type TraverseOptions struct {
	// Direction of the walk. Defaults to Downstream when empty.
	Direction Direction
	// Kinds restricts which edge kinds are followed; empty follows all.
	Kinds []EdgeKind
	// MaxDepth bounds the number of hops from the start node. Nil is
	// unbounded; Depth(0) returns only the start node itself.
	MaxDepth *int
}

// Depth builds a MaxDepth value capping traversal at n hops. Negative n
// means unbounded, so flag values can be passed through directly.
func Depth(n int) *int {
	if n < 0 {
		return nil
	}
	return &n
}

// Traverse returns the connected subgraph reachable from start via
// breadth-first search, honoring the direction, kind filter, and depth
// cap in opts. Each node is visited at most once at its first-discovered
// distance. A start key absent from g yields an empty graph, not an
// error, so callers can distinguish "found nothing" from "bad query" by
// checking catalog membership themselves.
func Traverse(g *Graph, start string, opts TraverseOptions) *Graph {
	sub := New()
	if !g.HasNode(start) {
		return sub
	}

	dir := opts.Direction
	if dir == "" {
		dir = Downstream
	}
	allowed := kindSet(opts.Kinds)
	limit := Unbounded
	if opts.MaxDepth != nil {
		limit = *opts.MaxDepth
	}

	type queued struct {
		key  string
		dist int
	}
	visited := map[string]struct{}{start: {}}
	queue := []queued{{key: start, dist: 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if limit >= 0 && cur.dist >= limit {
			continue
		}
		for _, next := range g.Neighbors(cur.key, dir, opts.Kinds) {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			queue = append(queue, queued{key: next, dist: cur.dist + 1})
		}
	}

	// Copy visited nodes in insertion order, then every eligible edge
	// whose endpoints both made it into the result.
	for _, key := range g.nodeOrder {
		if _, ok := visited[key]; !ok {
			continue
		}
		n := g.nodes[key]
		sub.AddNode(Node{Key: n.Key, Kind: n.Kind, Attributes: n.Attributes})
	}
	for _, id := range g.edgeOrder {
		if allowed != nil && !allowed[id.kind] {
			continue
		}
		if _, ok := visited[id.src]; !ok {
			continue
		}
		if _, ok := visited[id.dst]; !ok {
			continue
		}
		e := g.edges[id]
		sub.AddEdge(Edge{Source: e.Source, Target: e.Target, Kind: e.Kind, Evidence: e.Evidence})
	}
	return sub
}
