package graph

import (
	"encoding/json"
	"fmt"
)

// The wire format is the contract between the engine and any
// persistence: a nodes array and an edges array, round-tripping every
// attribute and evidence entry.

type nodeDoc struct {
	Key        string            `json:"key"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type edgeDoc struct {
	Src      string            `json:"src"`
	Dst      string            `json:"dst"`
	Type     string            `json:"type"`
	Evidence map[string]string `json:"evidence"`
}

type graphDoc struct {
	Nodes []nodeDoc `json:"nodes"`
	Edges []edgeDoc `json:"edges"`
}

// Marshal serializes the graph to its wire JSON.
func (g *Graph) Marshal() ([]byte, error) {
	doc := graphDoc{
		Nodes: make([]nodeDoc, 0, g.NodeCount()),
		Edges: make([]edgeDoc, 0, g.EdgeCount()),
	}
	for _, n := range g.Nodes() {
		doc.Nodes = append(doc.Nodes, nodeDoc{
			Key:        n.Key,
			Type:       string(n.Kind),
			Attributes: n.Attributes,
		})
	}
	for _, e := range g.Edges() {
		doc.Edges = append(doc.Edges, edgeDoc{
			Src:      e.Source,
			Dst:      e.Target,
			Type:     string(e.Kind),
			Evidence: e.Evidence,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Unmarshal reconstructs a graph from its wire JSON. Node and edge kinds
// are validated here so raw strings never leak past this boundary.
func Unmarshal(data []byte) (*Graph, error) {
	var doc graphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode graph document: %w", err)
	}

	g := New()
	for _, n := range doc.Nodes {
		kind, err := ParseNodeKind(n.Type)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", n.Key, err)
		}
		g.AddNode(Node{Key: n.Key, Kind: kind, Attributes: n.Attributes})
	}
	for _, e := range doc.Edges {
		kind, err := ParseEdgeKind(e.Type)
		if err != nil {
			return nil, fmt.Errorf("edge %s -> %s: %w", e.Src, e.Dst, err)
		}
		g.AddEdge(Edge{Source: e.Src, Target: e.Dst, Kind: kind, Evidence: e.Evidence})
	}
	return g, nil
}
