package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, "catalog", cfg.CatalogDir)
	assert.Equal(t, filepath.Join(".floe", "history"), cfg.HistoryDir)
	assert.Zero(t, cfg.Retention)
	assert.Equal(t, 256, cfg.CacheSize)
	assert.Equal(t, "table", cfg.Output)
	assert.False(t, cfg.Verbose)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	doc := "catalog_dir: exports\nretention: 14\ndefault_database: PROD\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(doc), 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "exports", cfg.CatalogDir)
	assert.Equal(t, 14, cfg.Retention)
	assert.Equal(t, "PROD", cfg.DefaultDatabase)
	// Untouched keys keep their defaults.
	assert.Equal(t, 256, cfg.CacheSize)
}

func TestLoadAltConfigFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileNameAlt),
		[]byte("catalog_dir: alt\n"), 0o644))

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "alt", cfg.CatalogDir)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName),
		[]byte("retention: 14\noutput: table\n"), 0o644))
	t.Setenv("FLOE_RETENTION", "3")
	t.Setenv("FLOE_OUTPUT", "json")

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Retention)
	assert.Equal(t, "json", cfg.Output)
}

func TestFlagsOverrideEverything(t *testing.T) {
	t.Setenv("FLOE_CATALOG_DIR", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("catalog_dir", "catalog", "")
	flags.Int("workers", 0, "")
	require.NoError(t, flags.Parse([]string{"--catalog_dir", "from-flag", "--workers", "8"}))

	cfg, err := Load(t.TempDir(), flags)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.CatalogDir)
	assert.Equal(t, 8, cfg.Workers)
}

func TestUnsetFlagsDoNotOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName),
		[]byte("catalog_dir: from-file\n"), 0o644))

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("catalog_dir", "catalog", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(dir, flags)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.CatalogDir)
}

func TestValidate(t *testing.T) {
	cfg := Config{Retention: -1, Output: "table"}
	assert.ErrorContains(t, cfg.Validate(), "retention")

	cfg = Config{Retention: 0, Output: "yaml"}
	assert.ErrorContains(t, cfg.Validate(), "output")

	cfg = Config{Retention: 5, Output: "json"}
	assert.NoError(t, cfg.Validate())
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), nil, 0o644))

	assert.Equal(t, root, FindProjectRoot(nested))
	assert.Equal(t, "", FindProjectRoot(filepath.Join(t.TempDir(), "elsewhere")))
}
