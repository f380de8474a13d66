package impact

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floedata/floe/internal/graph"
)

// pipelineGraph models EVENTS -> TRADES -> SUMMARY with a task producing
// TRADES from EVENTS.
func pipelineGraph() *graph.Graph {
	g := graph.New()
	g.AddEdge(graph.Edge{Source: "ANALYTICS.PUBLIC.SUMMARY", Target: "PROCESSED.PUBLIC.TRADES", Kind: graph.EdgeDerivesFrom})
	g.AddEdge(graph.Edge{Source: "PROCESSED.PUBLIC.TRADES", Target: "RAW.PUBLIC.EVENTS", Kind: graph.EdgeDerivesFrom})
	g.AddNode(graph.Node{Key: "ETL.PUBLIC.LOAD::task", Kind: graph.NodeTask})
	g.AddEdge(graph.Edge{Source: "ETL.PUBLIC.LOAD::task", Target: "PROCESSED.PUBLIC.TRADES", Kind: graph.EdgeProduces})
	g.AddEdge(graph.Edge{Source: "ETL.PUBLIC.LOAD::task", Target: "RAW.PUBLIC.EVENTS", Kind: graph.EdgeConsumes})
	return g
}

func impactedKeys(r *Report) map[string]ImpactedNode {
	out := make(map[string]ImpactedNode, len(r.Impacted))
	for _, n := range r.Impacted {
		out[n.Key] = n
	}
	return out
}

func TestAnalyzeBlastRadius(t *testing.T) {
	a := NewAnalyzer(pipelineGraph(), nil)
	report, err := a.Analyze("RAW.PUBLIC.EVENTS")
	require.NoError(t, err)

	nodes := impactedKeys(report)
	require.Len(t, nodes, 3)

	trades := nodes["PROCESSED.PUBLIC.TRADES"]
	assert.Equal(t, 1, trades.Distance)
	assert.Equal(t, SeverityCritical, trades.Severity)
	assert.Equal(t, []string{"RAW.PUBLIC.EVENTS", "PROCESSED.PUBLIC.TRADES"}, trades.Path)

	task := nodes["ETL.PUBLIC.LOAD::task"]
	assert.Equal(t, 1, task.Distance)
	assert.Equal(t, graph.NodeTask, task.Kind)

	summary := nodes["ANALYTICS.PUBLIC.SUMMARY"]
	assert.Equal(t, 2, summary.Distance)
	assert.Equal(t, SeverityHigh, summary.Severity)
	assert.Equal(t,
		[]string{"RAW.PUBLIC.EVENTS", "PROCESSED.PUBLIC.TRADES", "ANALYTICS.PUBLIC.SUMMARY"},
		summary.Path)

	assert.Equal(t, 2, report.MaxDistance)
	assert.InDelta(t, 4.0/3.0, report.AvgDistance, 1e-9)
	assert.Equal(t, 2, report.SeverityCounts[SeverityCritical])
	assert.Equal(t, 1, report.SeverityCounts[SeverityHigh])
	assert.Empty(t, report.Cycles)
}

func TestAnalyzeLeafHasNoImpact(t *testing.T) {
	a := NewAnalyzer(pipelineGraph(), nil)
	report, err := a.Analyze("ANALYTICS.PUBLIC.SUMMARY")
	require.NoError(t, err)
	assert.Empty(t, report.Impacted)
	assert.Zero(t, report.MaxDistance)
	assert.Zero(t, report.AvgDistance)
}

func TestAnalyzeUnknownStart(t *testing.T) {
	a := NewAnalyzer(pipelineGraph(), nil)
	_, err := a.Analyze("NO.SUCH.OBJECT")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeNotFound))
	assert.Contains(t, err.Error(), "NO.SUCH.OBJECT")
}

// Every edge u -> v means u depends on v, so u must appear in the
// impact set of v.
func TestAnalyzeCoversAllDirectDependents(t *testing.T) {
	g := pipelineGraph()
	a := NewAnalyzer(g, nil)
	for _, e := range g.Edges() {
		report, err := a.Analyze(e.Target)
		require.NoError(t, err)
		assert.Contains(t, impactedKeys(report), e.Source,
			"edge %s -> %s not reflected in impact of %s", e.Source, e.Target, e.Target)
	}
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityCritical, SeverityFor(0))
	assert.Equal(t, SeverityCritical, SeverityFor(1))
	assert.Equal(t, SeverityHigh, SeverityFor(2))
	assert.Equal(t, SeverityMedium, SeverityFor(3))
	assert.Equal(t, SeverityMedium, SeverityFor(4))
	assert.Equal(t, SeverityLow, SeverityFor(5))
	assert.Equal(t, SeverityLow, SeverityFor(50))
}
