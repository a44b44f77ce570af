package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 60, cfg.Search.RRFConstant)
	require.Equal(t, []int{50, 150, 400}, cfg.Search.BM25BackoffMS)
}

func TestValidate_RejectsBadWeightSum(t *testing.T) {
	cfg := NewConfig()
	cfg.Search.BM25Weight = 0.9
	cfg.Search.SemanticWeight = 0.9
	require.Error(t, cfg.Validate())
}

func TestLoad_ProjectFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, ".rele.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("search:\n  rrf_constant: 30\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 30, cfg.Search.RRFConstant)
}

func TestLoad_EnvOverridesProjectFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, ".rele.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("search:\n  rrf_constant: 30\n"), 0o644))

	t.Setenv("RELE_RRF_CONSTANT", "45")
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, 45, cfg.Search.RRFConstant)
}

func TestLoad_NoProjectFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, "unified_diff", cfg.Editing.PreviewMode)
}
