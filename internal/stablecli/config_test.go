package stablecli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_loadFileConfig_noFile(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	cfg, path, err := loadFileConfig()
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Empty(t, cfg.Server)
}

func Test_loadFileConfig_validYAMLInCwd(t *testing.T) {
	dir := t.TempDir()
	stableops := filepath.Join(dir, ".stableops")
	require.NoError(t, os.MkdirAll(stableops, 0750))
	configPath := filepath.Join(stableops, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
server: http://stable.example:8080
token: secret
stable_id: st1
caretaker: anna
`), 0644))

	orig, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	cfg, path, err := loadFileConfig()
	require.NoError(t, err)
	assert.Equal(t, configPath, path)
	assert.Equal(t, "http://stable.example:8080", cfg.Server)
	assert.Equal(t, "secret", cfg.Token)
	assert.Equal(t, "st1", cfg.StableID)
	assert.Equal(t, "anna", cfg.Caretaker)
}

func Test_loadFileConfig_invalidYAML(t *testing.T) {
	dir := t.TempDir()
	stableops := filepath.Join(dir, ".stableops")
	require.NoError(t, os.MkdirAll(stableops, 0750))
	configPath := filepath.Join(stableops, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("not: valid: yaml: here"), 0644))

	orig, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	_, _, err := loadFileConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config.yaml")
}

func Test_resolveConfig_layering(t *testing.T) {
	dir := t.TempDir()
	stableops := filepath.Join(dir, ".stableops")
	require.NoError(t, os.MkdirAll(stableops, 0750))
	require.NoError(t, os.WriteFile(filepath.Join(stableops, "config.yaml"), []byte(`
server: http://from-file:8080
stable_id: st-file
caretaker: file-caretaker
`), 0644))

	orig, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	cfg, _, err := resolveConfig(Config{StableID: "st-flag"})
	require.NoError(t, err)
	// flag wins over file
	assert.Equal(t, "st-flag", cfg.StableID)
	// file wins over defaults
	assert.Equal(t, "http://from-file:8080", cfg.Server)
	assert.Equal(t, "file-caretaker", cfg.Caretaker)
	// DB falls back next to the config file
	assert.Equal(t, filepath.Join(stableops, "local.db"), cfg.DB)
}

func Test_resolveConfig_defaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig) })

	cfg, path, err := resolveConfig(Config{})
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, "stablectl", cfg.Caretaker)
	assert.Empty(t, cfg.Server)
	assert.Contains(t, cfg.DB, filepath.Join(".stableops", "local.db"))
}
