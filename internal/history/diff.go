package history

import (
	"github.com/floedata/floe/internal/graph"
)

// EdgeRef identifies an edge by its (source, target, kind) triple.
// Evidence changes are not structural and never show up in a diff.
type EdgeRef struct {
	Source string         `json:"src"`
	Target string         `json:"dst"`
	Kind   graph.EdgeKind `json:"type"`
}

// AttributeChange is one changed field of a modified node.
type AttributeChange struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// NodeChange is a node present in both graphs with differing attributes.
type NodeChange struct {
	Key     string                     `json:"key"`
	Changed map[string]AttributeChange `json:"changed"`
}

// GraphDiff is the structural difference between two graphs, old to new.
type GraphDiff struct {
	AddedNodes    []string     `json:"added_nodes"`
	RemovedNodes  []string     `json:"removed_nodes"`
	ModifiedNodes []NodeChange `json:"modified_nodes"`
	AddedEdges    []EdgeRef    `json:"added_edges"`
	RemovedEdges  []EdgeRef    `json:"removed_edges"`
}

// Empty reports whether the two graphs are structurally identical.
func (d *GraphDiff) Empty() bool {
	return len(d.AddedNodes) == 0 && len(d.RemovedNodes) == 0 &&
		len(d.ModifiedNodes) == 0 && len(d.AddedEdges) == 0 && len(d.RemovedEdges) == 0
}

// DiffGraphs computes the structural diff from old to new. Added entries
// follow new's insertion order, removed entries old's, so diffing the
// same pair twice renders identically.
func DiffGraphs(oldG, newG *graph.Graph) *GraphDiff {
	d := &GraphDiff{}

	for _, n := range newG.Nodes() {
		prev, ok := oldG.Node(n.Key)
		if !ok {
			d.AddedNodes = append(d.AddedNodes, n.Key)
			continue
		}
		if changed := diffNode(prev, n); len(changed) > 0 {
			d.ModifiedNodes = append(d.ModifiedNodes, NodeChange{Key: n.Key, Changed: changed})
		}
	}
	for _, n := range oldG.Nodes() {
		if !newG.HasNode(n.Key) {
			d.RemovedNodes = append(d.RemovedNodes, n.Key)
		}
	}

	oldEdges := edgeSet(oldG)
	newEdges := edgeSet(newG)
	for _, e := range newG.Edges() {
		ref := EdgeRef{Source: e.Source, Target: e.Target, Kind: e.Kind}
		if !oldEdges[ref] {
			d.AddedEdges = append(d.AddedEdges, ref)
		}
	}
	for _, e := range oldG.Edges() {
		ref := EdgeRef{Source: e.Source, Target: e.Target, Kind: e.Kind}
		if !newEdges[ref] {
			d.RemovedEdges = append(d.RemovedEdges, ref)
		}
	}
	return d
}

func diffNode(oldN, newN *graph.Node) map[string]AttributeChange {
	changed := make(map[string]AttributeChange)
	if oldN.Kind != newN.Kind {
		changed["kind"] = AttributeChange{Old: string(oldN.Kind), New: string(newN.Kind)}
	}
	for k, newV := range newN.Attributes {
		if oldV, ok := oldN.Attributes[k]; !ok || oldV != newV {
			changed[k] = AttributeChange{Old: oldN.Attributes[k], New: newV}
		}
	}
	for k, oldV := range oldN.Attributes {
		if _, ok := newN.Attributes[k]; !ok {
			changed[k] = AttributeChange{Old: oldV, New: ""}
		}
	}
	if len(changed) == 0 {
		return nil
	}
	return changed
}

func edgeSet(g *graph.Graph) map[EdgeRef]bool {
	set := make(map[EdgeRef]bool, g.EdgeCount())
	for _, e := range g.Edges() {
		set[EdgeRef{Source: e.Source, Target: e.Target, Kind: e.Kind}] = true
	}
	return set
}
