// Package config loads postdevaid's configuration in layered-precedence
// order: hardcoded defaults, then the user/global config file, then the
// project config file, then POSTDEVAI_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/postdevai/postdevai/internal/hybrid"
	"github.com/postdevai/postdevai/internal/persistent"
	"github.com/postdevai/postdevai/internal/ramlake"
)

// Config is the complete postdevaid configuration.
type Config struct {
	Version int          `yaml:"version" json:"version"`
	Hybrid  HybridConfig `yaml:"hybrid" json:"hybrid"`
	Server  ServerConfig `yaml:"server" json:"server"`
}

// HybridConfig configures the Hybrid Memory façade and its two tiers. The
// nested RamLake and Persistent configs are the same structs the ramlake
// and persistent packages consume directly — no translation layer.
type HybridConfig struct {
	RamLake       ramlake.Config    `yaml:"ramlake" json:"ramlake"`
	Persistent    persistent.Config `yaml:"persistent" json:"persistent"`
	hybrid.Config `yaml:",inline"`
}

// ServerConfig configures the RPC façade transport.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Hybrid: HybridConfig{
			RamLake: ramlake.Config{
				BasePath:  defaultDataPath("ramlake"),
				TotalSize: 512 << 20, // 512MB
				Allocation: ramlake.StoreAllocation{
					Vectors: 0.5, Code: 0.3, History: 0.15, Metadata: 0.05,
				},
				UseHNSW:           false,
				BackupPath:        defaultDataPath("backups"),
				BackupInterval:    15 * time.Minute,
				MinBackupInterval: time.Minute,
				MaxBackups:        5,
				WatchForBursts:    true,
			},
			Persistent: persistent.Config{
				BasePath:          defaultDataPath("persistent"),
				MaxSize:           8 << 30, // 8GB
				Compression:       "snappy",
				CacheSizeMB:       64,
				WriteBufferSizeMB: 32,
				EnableWAL:         true,
			},
			Config: hybrid.Config{
				HotRetentionSecs: 3600,
				SyncIntervalSecs: 30,
				MaxRAMEntries:    100000,
			},
		},
		Server: ServerConfig{
			Transport: "stdio",
			Port:      8765,
			LogLevel:  "info",
		},
	}
}

// defaultDataPath returns ~/.postdevai/<sub>, falling back to a temp
// directory if the home directory can't be resolved.
func defaultDataPath(sub string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".postdevai", sub)
	}
	return filepath.Join(home, ".postdevai", sub)
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/postdevai/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/postdevai/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "postdevai", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "postdevai", "config.yaml")
	}
	return filepath.Join(home, ".config", "postdevai", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}
	return cfg, nil
}

// LoadUserConfig loads the user configuration file.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}

// Load loads configuration from the specified project directory, applying
// settings in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/postdevai/config.yaml)
//  3. Project config (.postdevai.yaml in dir)
//  4. Environment variables (POSTDEVAI_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile attempts to load configuration from .postdevai.yaml or
// .postdevai.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".postdevai.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".postdevai.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	// No config file is fine - use defaults
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// RAM Lake
	if other.Hybrid.RamLake.BasePath != "" {
		c.Hybrid.RamLake.BasePath = other.Hybrid.RamLake.BasePath
	}
	if other.Hybrid.RamLake.TotalSize != 0 {
		c.Hybrid.RamLake.TotalSize = other.Hybrid.RamLake.TotalSize
	}
	if other.Hybrid.RamLake.Allocation.Sum() != 0 {
		c.Hybrid.RamLake.Allocation = other.Hybrid.RamLake.Allocation
	}
	if other.Hybrid.RamLake.BackupPath != "" {
		c.Hybrid.RamLake.BackupPath = other.Hybrid.RamLake.BackupPath
	}
	if other.Hybrid.RamLake.BackupInterval != 0 {
		c.Hybrid.RamLake.BackupInterval = other.Hybrid.RamLake.BackupInterval
	}
	if other.Hybrid.RamLake.MinBackupInterval != 0 {
		c.Hybrid.RamLake.MinBackupInterval = other.Hybrid.RamLake.MinBackupInterval
	}
	if other.Hybrid.RamLake.MaxBackups != 0 {
		c.Hybrid.RamLake.MaxBackups = other.Hybrid.RamLake.MaxBackups
	}
	// UseHNSW/WatchForBursts can be explicitly set to false, so only merge
	// both when the project file set any other RamLake field alongside it.
	// A true UseHNSW is always merged, since it can only come from the file.
	if other.Hybrid.RamLake.BasePath != "" || other.Hybrid.RamLake.TotalSize != 0 {
		c.Hybrid.RamLake.UseHNSW = other.Hybrid.RamLake.UseHNSW
		c.Hybrid.RamLake.WatchForBursts = other.Hybrid.RamLake.WatchForBursts
	}
	if other.Hybrid.RamLake.UseHNSW {
		c.Hybrid.RamLake.UseHNSW = true
	}

	// Persistent Store
	if other.Hybrid.Persistent.BasePath != "" {
		c.Hybrid.Persistent.BasePath = other.Hybrid.Persistent.BasePath
	}
	if other.Hybrid.Persistent.MaxSize != 0 {
		c.Hybrid.Persistent.MaxSize = other.Hybrid.Persistent.MaxSize
	}
	if other.Hybrid.Persistent.Compression != "" {
		c.Hybrid.Persistent.Compression = other.Hybrid.Persistent.Compression
	}
	if other.Hybrid.Persistent.CacheSizeMB != 0 {
		c.Hybrid.Persistent.CacheSizeMB = other.Hybrid.Persistent.CacheSizeMB
	}
	if other.Hybrid.Persistent.WriteBufferSizeMB != 0 {
		c.Hybrid.Persistent.WriteBufferSizeMB = other.Hybrid.Persistent.WriteBufferSizeMB
	}
	if other.Hybrid.Persistent.BasePath != "" || other.Hybrid.Persistent.MaxSize != 0 {
		c.Hybrid.Persistent.EnableWAL = other.Hybrid.Persistent.EnableWAL
	}

	// Hybrid Memory
	if other.Hybrid.HotRetentionSecs != 0 {
		c.Hybrid.HotRetentionSecs = other.Hybrid.HotRetentionSecs
	}
	if other.Hybrid.SyncIntervalSecs != 0 {
		c.Hybrid.SyncIntervalSecs = other.Hybrid.SyncIntervalSecs
	}
	if other.Hybrid.MaxRAMEntries != 0 {
		c.Hybrid.MaxRAMEntries = other.Hybrid.MaxRAMEntries
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies POSTDEVAI_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("POSTDEVAI_BASE_PATH"); v != "" {
		c.Hybrid.RamLake.BasePath = v
	}
	if v := os.Getenv("POSTDEVAI_PERSISTENT_PATH"); v != "" {
		c.Hybrid.Persistent.BasePath = v
	}
	if v := os.Getenv("POSTDEVAI_COMPRESSION"); v != "" {
		c.Hybrid.Persistent.Compression = v
	}
	if v := os.Getenv("POSTDEVAI_USE_HNSW"); v != "" {
		c.Hybrid.RamLake.UseHNSW = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("POSTDEVAI_TOTAL_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.Hybrid.RamLake.TotalSize = n
		}
	}
	if v := os.Getenv("POSTDEVAI_SYNC_INTERVAL_SECS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Hybrid.SyncIntervalSecs = n
		}
	}
	if v := os.Getenv("POSTDEVAI_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("POSTDEVAI_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// FindProjectRoot finds the project root directory by walking up from
// startDir looking for a .git directory or a .postdevai.yaml/.yml file.
func FindProjectRoot(startDir string) (string, error) {
	absDir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	currentDir := absDir
	for {
		if dirExists(filepath.Join(currentDir, ".git")) {
			return currentDir, nil
		}
		if fileExists(filepath.Join(currentDir, ".postdevai.yaml")) ||
			fileExists(filepath.Join(currentDir, ".postdevai.yml")) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return absDir, nil
		}
		currentDir = parentDir
	}
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// dirExists checks if a directory exists.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := c.Hybrid.RamLake.Allocation.Validate(); err != nil {
		return fmt.Errorf("invalid store allocation: %w", err)
	}
	if c.Hybrid.RamLake.TotalSize == 0 {
		return fmt.Errorf("ramlake.total_size must be positive")
	}
	if c.Hybrid.Persistent.MaxSize == 0 {
		return fmt.Errorf("persistent.max_size must be positive")
	}

	validCompression := map[string]bool{"none": true, "snappy": true, "zstd": true}
	if !validCompression[strings.ToLower(c.Hybrid.Persistent.Compression)] {
		return fmt.Errorf("persistent.compression must be 'none', 'snappy', or 'zstd', got %s", c.Hybrid.Persistent.Compression)
	}

	if c.Hybrid.SyncIntervalSecs <= 0 {
		return fmt.Errorf("hybrid.sync_interval_secs must be positive, got %d", c.Hybrid.SyncIntervalSecs)
	}
	if c.Hybrid.HotRetentionSecs <= 0 {
		return fmt.Errorf("hybrid.hot_retention_secs must be positive, got %d", c.Hybrid.HotRetentionSecs)
	}
	if c.Hybrid.MaxRAMEntries <= 0 {
		return fmt.Errorf("hybrid.max_ram_entries must be positive, got %d", c.Hybrid.MaxRAMEntries)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
