package graph

import "testing"

// chainGraph builds SUMMARY -> TRADES -> EVENTS (each derives from the
// next) plus a task producing TRADES.
func chainGraph() *Graph {
	g := New()
	g.AddEdge(Edge{Source: "ANALYTICS.PUBLIC.SUMMARY", Target: "PROCESSED.PUBLIC.TRADES", Kind: EdgeDerivesFrom})
	g.AddEdge(Edge{Source: "PROCESSED.PUBLIC.TRADES", Target: "RAW.PUBLIC.EVENTS", Kind: EdgeDerivesFrom})
	g.AddNode(Node{Key: "ETL.PUBLIC.LOAD::task", Kind: NodeTask})
	g.AddEdge(Edge{Source: "ETL.PUBLIC.LOAD::task", Target: "PROCESSED.PUBLIC.TRADES", Kind: EdgeProduces})
	g.AddEdge(Edge{Source: "ETL.PUBLIC.LOAD::task", Target: "RAW.PUBLIC.EVENTS", Kind: EdgeConsumes})
	return g
}

func TestTraverseDownstream(t *testing.T) {
	g := chainGraph()
	sub := Traverse(g, "ANALYTICS.PUBLIC.SUMMARY", TraverseOptions{Direction: Downstream})

	for _, key := range []string{"ANALYTICS.PUBLIC.SUMMARY", "PROCESSED.PUBLIC.TRADES", "RAW.PUBLIC.EVENTS"} {
		if !sub.HasNode(key) {
			t.Errorf("expected %s in downstream traversal", key)
		}
	}
	if sub.HasNode("ETL.PUBLIC.LOAD::task") {
		t.Error("task is not downstream of SUMMARY")
	}
}

func TestTraverseUpstream(t *testing.T) {
	g := chainGraph()
	sub := Traverse(g, "RAW.PUBLIC.EVENTS", TraverseOptions{Direction: Upstream})

	for _, key := range []string{"RAW.PUBLIC.EVENTS", "PROCESSED.PUBLIC.TRADES", "ANALYTICS.PUBLIC.SUMMARY", "ETL.PUBLIC.LOAD::task"} {
		if !sub.HasNode(key) {
			t.Errorf("expected %s in upstream traversal", key)
		}
	}
}

func TestTraverseDepthCap(t *testing.T) {
	g := chainGraph()
	sub := Traverse(g, "ANALYTICS.PUBLIC.SUMMARY", TraverseOptions{Direction: Downstream, MaxDepth: Depth(1)})

	if !sub.HasNode("PROCESSED.PUBLIC.TRADES") {
		t.Error("distance-1 node missing")
	}
	if sub.HasNode("RAW.PUBLIC.EVENTS") {
		t.Error("depth cap violated: distance-2 node returned")
	}
}

func TestTraverseZeroDepth(t *testing.T) {
	g := chainGraph()
	sub := Traverse(g, "PROCESSED.PUBLIC.TRADES", TraverseOptions{Direction: Both, MaxDepth: Depth(0)})
	if sub.NodeCount() != 1 || !sub.HasNode("PROCESSED.PUBLIC.TRADES") {
		t.Errorf("depth 0 should return only the start node, got %d nodes", sub.NodeCount())
	}
}

func TestTraverseZeroValueOptionsUnbounded(t *testing.T) {
	g := New()
	g.AddEdge(Edge{Source: "A", Target: "B", Kind: EdgeDerivesFrom})

	sub := Traverse(g, "A", TraverseOptions{})
	if !sub.HasNode("B") {
		t.Errorf("zero-value options must not cap depth: B not reached, got %d nodes", sub.NodeCount())
	}

	if Depth(-1) != nil {
		t.Error("negative depth should mean unbounded")
	}
	if d := Depth(2); d == nil || *d != 2 {
		t.Error("Depth(2) should cap at 2 hops")
	}
}

func TestTraverseMissingStart(t *testing.T) {
	g := chainGraph()
	sub := Traverse(g, "NO.SUCH.KEY", TraverseOptions{Direction: Both})
	if sub.NodeCount() != 0 || sub.EdgeCount() != 0 {
		t.Errorf("missing start should yield an empty graph, got %d/%d", sub.NodeCount(), sub.EdgeCount())
	}
}

func TestTraverseEdgeKindFilter(t *testing.T) {
	g := chainGraph()
	sub := Traverse(g, "ETL.PUBLIC.LOAD::task", TraverseOptions{
		Direction: Downstream,
		Kinds:     []EdgeKind{EdgeProduces},
	})

	if !sub.HasNode("PROCESSED.PUBLIC.TRADES") {
		t.Error("produced dataset missing")
	}
	if sub.HasNode("RAW.PUBLIC.EVENTS") {
		t.Error("consumes edge should have been filtered out")
	}
	for _, e := range sub.Edges() {
		if e.Kind != EdgeProduces {
			t.Errorf("unexpected edge kind %s in filtered traversal", e.Kind)
		}
	}
}

func TestTraverseInducedEdges(t *testing.T) {
	// A -> B, A -> C, B -> C: traversing from A must include edge B -> C
	// because both endpoints are visited.
	g := New()
	g.AddEdge(Edge{Source: "A", Target: "B", Kind: EdgeDerivesFrom})
	g.AddEdge(Edge{Source: "A", Target: "C", Kind: EdgeDerivesFrom})
	g.AddEdge(Edge{Source: "B", Target: "C", Kind: EdgeDerivesFrom})

	sub := Traverse(g, "A", TraverseOptions{Direction: Downstream})
	if sub.EdgeCount() != 3 {
		t.Errorf("expected all 3 induced edges, got %d", sub.EdgeCount())
	}
}
