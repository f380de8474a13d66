package cli

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floedata/floe/internal/config"
	"github.com/floedata/floe/internal/graph"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := NewVersionCommand("1.2.3")
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	assert.Contains(t, out.String(), "floe v1.2.3")
}

func TestParseEdgeKinds(t *testing.T) {
	kinds, err := parseEdgeKinds([]string{"derives_from", " produces "})
	require.NoError(t, err)
	assert.Equal(t, []graph.EdgeKind{graph.EdgeDerivesFrom, graph.EdgeProduces}, kinds)

	_, err = parseEdgeKinds([]string{"publishes"})
	assert.Error(t, err)

	kinds, err = parseEdgeKinds(nil)
	require.NoError(t, err)
	assert.Nil(t, kinds)
}

func TestParseTimeFlag(t *testing.T) {
	got, err := parseTimeFlag("2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC), got)

	got, err = parseTimeFlag("2026-08-28T10:30:00Z")
	require.NoError(t, err)
	assert.Equal(t, 10, got.Hour())

	got, err = parseTimeFlag("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	_, err = parseTimeFlag("yesterday")
	assert.Error(t, err)
}

func TestCatalogDirsSplitsList(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.WithValue(context.Background(), appKey{},
		&appState{cfg: &config.Config{CatalogDir: "sales, analytics ,"}}))
	assert.Equal(t, []string{"sales", "analytics"}, catalogDirs(cmd))

	cmd.SetContext(context.WithValue(context.Background(), appKey{},
		&appState{cfg: &config.Config{CatalogDir: "catalog"}}))
	assert.Equal(t, []string{"catalog"}, catalogDirs(cmd))
}

func TestRootCommandWiring(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"build", "traverse", "impact", "columns", "snapshot", "export", "version"} {
		assert.Contains(t, names, want)
	}
	assert.True(t, root.SilenceUsage)

	for _, flag := range []string{"catalog_dir", "history_dir", "retention", "output", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing flag %s", flag)
	}
}
