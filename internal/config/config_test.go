package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, uint64(512<<20), cfg.Hybrid.RamLake.TotalSize)
	assert.InDelta(t, 1.0, cfg.Hybrid.RamLake.Allocation.Sum(), 1e-6)
	assert.False(t, cfg.Hybrid.RamLake.UseHNSW)
	assert.True(t, cfg.Hybrid.RamLake.WatchForBursts)

	assert.Equal(t, uint64(8<<30), cfg.Hybrid.Persistent.MaxSize)
	assert.Equal(t, "snappy", cfg.Hybrid.Persistent.Compression)
	assert.True(t, cfg.Hybrid.Persistent.EnableWAL)

	assert.Equal(t, 3600, cfg.Hybrid.HotRetentionSecs)
	assert.Equal(t, 30, cfg.Hybrid.SyncIntervalSecs)
	assert.Equal(t, 100000, cfg.Hybrid.MaxRAMEntries)

	assert.Equal(t, "stdio", cfg.Server.Transport)
	assert.Equal(t, 8765, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestNewConfig_ValidatesCleanly(t *testing.T) {
	assert.NoError(t, NewConfig().Validate())
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Hybrid.RamLake.TotalSize, cfg.Hybrid.RamLake.TotalSize)
}

func TestLoad_YamlFile_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "version: 1\nhybrid:\n  ramlake:\n    use_hnsw: true\n  sync_interval_secs: 45\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".postdevai.yaml"), []byte(yamlContent), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Hybrid.RamLake.UseHNSW)
	assert.Equal(t, 45, cfg.Hybrid.SyncIntervalSecs)
}

func TestLoad_YmlExtension_IsRecognized(t *testing.T) {
	dir := t.TempDir()
	yamlContent := "version: 1\nserver:\n  log_level: warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".postdevai.yml"), []byte(yamlContent), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_YamlPreferredOverYml(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".postdevai.yaml"), []byte("server:\n  log_level: error\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".postdevai.yml"), []byte("server:\n  log_level: warn\n"), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Server.LogLevel)
}

func TestLoad_InvalidYaml_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".postdevai.yaml"), []byte("server: [not a map"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_InvalidConfiguration_ReturnsValidationError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".postdevai.yaml"), []byte("server:\n  transport: carrier-pigeon\n"), 0644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestFindProjectRoot_GitDirectory_ReturnsGitRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0755))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	root, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_ConfigFile_ReturnsConfigLocation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".postdevai.yaml"), []byte("version: 1\n"), 0644))

	root, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestFindProjectRoot_NoMarkers_ReturnsCurrentDir(t *testing.T) {
	dir := t.TempDir()
	root, err := FindProjectRoot(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestLoad_EnvVarOverridesLogLevel(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POSTDEVAI_LOG_LEVEL", "warn")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_EnvVarOverridesTransport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POSTDEVAI_TRANSPORT", "sse")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "sse", cfg.Server.Transport)
}

func TestLoad_EnvVarOverridesUseHNSW(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POSTDEVAI_USE_HNSW", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.True(t, cfg.Hybrid.RamLake.UseHNSW)
}

func TestLoad_EnvVarEmptyString_DoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("POSTDEVAI_LOG_LEVEL", "")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Server.LogLevel)
}

func TestGetUserConfigPath_DefaultsToXDGLocation(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "postdevai", "config.yaml"), GetUserConfigPath())
}

func TestGetUserConfigPath_RespectsXDGConfigHome(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/xdg")
	assert.Equal(t, "/custom/xdg/postdevai/config.yaml", GetUserConfigPath())
}

func TestGetUserConfigDir_ReturnsParentOfConfigPath(t *testing.T) {
	assert.Equal(t, filepath.Dir(GetUserConfigPath()), GetUserConfigDir())
}

func TestUserConfigExists_ReturnsFalseWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	assert.False(t, UserConfigExists())
}

func TestUserConfigExists_ReturnsTrueWhenPresent(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)

	configDir := filepath.Join(xdg, "postdevai")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("version: 1\n"), 0644))

	assert.True(t, UserConfigExists())
}

func TestLoad_UserConfigOverridesDefaults(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	configDir := filepath.Join(xdg, "postdevai")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("server:\n  log_level: warn\n"), 0644))

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	configDir := filepath.Join(xdg, "postdevai")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("server:\n  log_level: warn\n"), 0644))

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".postdevai.yaml"), []byte("server:\n  log_level: error\n"), 0644))

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Server.LogLevel)
}

func TestLoad_EnvVarOverridesUserAndProjectConfig(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	configDir := filepath.Join(xdg, "postdevai")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("server:\n  log_level: warn\n"), 0644))

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ".postdevai.yaml"), []byte("server:\n  log_level: error\n"), 0644))

	t.Setenv("POSTDEVAI_LOG_LEVEL", "debug")

	cfg, err := Load(projectDir)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoad_InvalidUserConfig_ReturnsError(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	configDir := filepath.Join(xdg, "postdevai")
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte("server: [broken"), 0644))

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
