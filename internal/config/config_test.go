package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archmap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
parsing:
  parallel_workers: 8
analysis:
  max_nodes: 40
  include_private: false
  include_modules: [pkg, lib.core]
  entry_point: main
  max_depth: 2
cycles:
  detect: false
logging:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Parsing.ParallelWorkers)
	assert.Equal(t, 10, cfg.Parsing.MaxFileSizeMB, "unset keys keep defaults")
	assert.Equal(t, 40, cfg.Analysis.MaxNodes)
	assert.False(t, cfg.Analysis.IncludePrivate)
	assert.Equal(t, []string{"pkg", "lib.core"}, cfg.Analysis.IncludeModules)
	assert.Equal(t, "main", cfg.Analysis.EntryPoint)
	assert.Equal(t, 2, cfg.Analysis.MaxDepth)
	assert.False(t, cfg.Cycles.Detect)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("ARCHMAP_MAX_NODES", "25")
	t.Setenv("ARCHMAP_INCLUDE_PRIVATE", "false")
	t.Setenv("ARCHMAP_EXCLUDE_MODULES", "tests, docs ,")
	t.Setenv("ARCHMAP_CYCLE_TIMEOUT_SECONDS", "2")

	cfg, err := Load(writeConfig(t, "analysis:\n  max_nodes: 90\n"))
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Analysis.MaxNodes, "environment wins over the file")
	assert.False(t, cfg.Analysis.IncludePrivate)
	assert.Equal(t, []string{"tests", "docs"}, cfg.Analysis.ExcludeModules)
	assert.Equal(t, 2*time.Second, cfg.Cycles.Timeout())
}

func TestLoad_Errors(t *testing.T) {
	t.Run("bad env integer", func(t *testing.T) {
		t.Setenv("ARCHMAP_PARALLEL_WORKERS", "many")
		_, err := Load("")
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := Load(writeConfig(t, "analysis: [unclosed"))
		assert.Error(t, err)
	})

	t.Run("invalid values", func(t *testing.T) {
		_, err := Load(writeConfig(t, "parsing:\n  parallel_workers: 0\n"))
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())

	cfg := Default()
	cfg.Logging.Format = "xml"
	cfg.Analysis.MaxDepth = -1
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.Contains(t, err.Error(), "logging.format")
	assert.Contains(t, err.Error(), "max_depth")
}

func TestDurations(t *testing.T) {
	cfg := Default()
	assert.Equal(t, int64(10*1024*1024), cfg.Parsing.MaxFileSize())
	assert.Equal(t, 30*time.Second, cfg.Parsing.Timeout())
}
