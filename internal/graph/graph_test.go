package graph

import (
	"reflect"
	"testing"
)

func TestAddNodeMergesAttributes(t *testing.T) {
	g := New()
	g.AddNode(Node{Key: "DB.S.T", Kind: NodeDataset, Attributes: map[string]string{"name": "T"}})
	g.AddNode(Node{Key: "DB.S.T", Kind: NodeDataset, Attributes: map[string]string{"object_kind": "view"}})

	if g.NodeCount() != 1 {
		t.Fatalf("expected 1 node, got %d", g.NodeCount())
	}
	n, ok := g.Node("DB.S.T")
	if !ok {
		t.Fatal("node not found")
	}
	if n.Attributes["name"] != "T" || n.Attributes["object_kind"] != "view" {
		t.Errorf("attributes not merged: %v", n.Attributes)
	}
}

func TestAddNodeUpgradesKind(t *testing.T) {
	g := New()
	g.AddNode(Node{Key: "DB.S.X", Kind: NodeDataset})
	g.AddNode(Node{Key: "DB.S.X", Kind: NodeTask})
	n, _ := g.Node("DB.S.X")
	if n.Kind != NodeTask {
		t.Errorf("expected task kind after upgrade, got %s", n.Kind)
	}

	// Re-adding as dataset never downgrades.
	g.AddNode(Node{Key: "DB.S.X", Kind: NodeDataset})
	n, _ = g.Node("DB.S.X")
	if n.Kind != NodeTask {
		t.Errorf("kind downgraded to %s", n.Kind)
	}
}

func TestAddEdgeAutoCreatesEndpoints(t *testing.T) {
	g := New()
	g.AddEdge(Edge{Source: "A", Target: "B", Kind: EdgeDerivesFrom})

	if !g.HasNode("A") || !g.HasNode("B") {
		t.Fatal("endpoints not auto-created")
	}
	a, _ := g.Node("A")
	if a.Kind != NodeDataset {
		t.Errorf("auto-created node should be a dataset, got %s", a.Kind)
	}
}

func TestAddEdgeMergesEvidence(t *testing.T) {
	g := New()
	g.AddEdge(Edge{Source: "A", Target: "B", Kind: EdgeDerivesFrom,
		Evidence: map[string]string{"reference": "b"}})
	g.AddEdge(Edge{Source: "A", Target: "B", Kind: EdgeDerivesFrom,
		Evidence: map[string]string{"statement": "select"}})

	if g.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge, got %d", g.EdgeCount())
	}
	e := g.Outgoing("A")[0]
	if e.Evidence["reference"] != "b" || e.Evidence["statement"] != "select" {
		t.Errorf("evidence not merged: %v", e.Evidence)
	}
}

func TestDistinctKindsBetweenSamePair(t *testing.T) {
	g := New()
	g.AddEdge(Edge{Source: "T::task", Target: "D", Kind: EdgeProduces})
	g.AddEdge(Edge{Source: "T::task", Target: "D", Kind: EdgeConsumes})
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges for distinct kinds, got %d", g.EdgeCount())
	}
}

func TestNeighbors(t *testing.T) {
	g := New()
	g.AddEdge(Edge{Source: "B", Target: "A", Kind: EdgeDerivesFrom})
	g.AddEdge(Edge{Source: "C", Target: "A", Kind: EdgeDerivesFrom})
	g.AddEdge(Edge{Source: "T::task", Target: "A", Kind: EdgeProduces})

	down := g.Neighbors("B", Downstream, nil)
	if !reflect.DeepEqual(down, []string{"A"}) {
		t.Errorf("downstream of B = %v", down)
	}

	up := g.Neighbors("A", Upstream, nil)
	if !reflect.DeepEqual(up, []string{"B", "C", "T::task"}) {
		t.Errorf("upstream of A = %v", up)
	}

	filtered := g.Neighbors("A", Upstream, []EdgeKind{EdgeProduces})
	if !reflect.DeepEqual(filtered, []string{"T::task"}) {
		t.Errorf("produces-only upstream of A = %v", filtered)
	}
}

func TestTaskKey(t *testing.T) {
	if got := TaskKey("DB.S.T"); got != "DB.S.T::task" {
		t.Errorf("TaskKey = %q", got)
	}
	if got := TaskKey("DB.S.T::task"); got != "DB.S.T::task" {
		t.Errorf("TaskKey should be idempotent, got %q", got)
	}
	if got := ShortName("DB.S.T::task"); got != "T" {
		t.Errorf("ShortName = %q", got)
	}
}
