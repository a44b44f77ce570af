// Package config provides RELE's own layered configuration: hardcoded
// defaults, overridden by a user config file, overridden by a project
// config file, overridden by environment variables (highest precedence).
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is RELE's complete configuration: search fusion tuning,
// concurrency caps, sidecar paths, and the editing preview default.
type Config struct {
	Version  int            `yaml:"version" json:"version"`
	Search   SearchConfig   `yaml:"search" json:"search"`
	IO       IOConfig       `yaml:"io" json:"io"`
	BM25     BM25SidecarConfig `yaml:"bm25" json:"bm25"`
	Editing  EditingConfig  `yaml:"editing" json:"editing"`
	Server   ServerConfig   `yaml:"server" json:"server"`
}

// SearchConfig configures HybridSearch's RRF fusion.
//
// Weights and the RRF constant are configurable via:
//  1. User config (~/.config/rele/config.yaml) - personal defaults
//  2. Project config (.rele.yaml) - per-repo tuning
//  3. Env vars (RELE_BM25_WEIGHT, RELE_SEMANTIC_WEIGHT, RELE_RRF_CONSTANT) - highest priority
type SearchConfig struct {
	// BM25Weight is the weight given to sparse-search rank in fusion.
	BM25Weight float64 `yaml:"bm25_weight" json:"bm25_weight"`
	// SemanticWeight is the weight given to dense-search rank in fusion.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`
	// RRFConstant is the RRF smoothing parameter k (industry default: 60).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	// MaxResults caps the fused result set size returned to callers.
	MaxResults int `yaml:"max_results" json:"max_results"`
	// BM25BackoffMS is the fixed backoff schedule (ms) HybridSearch walks
	// while waiting for BM25Actor readiness in Lenient mode.
	BM25BackoffMS []int `yaml:"bm25_backoff_ms" json:"bm25_backoff_ms"`
}

// IOConfig configures IoActor's bounded concurrency.
type IOConfig struct {
	// FDLimitOverride, if non-zero, overrides the computed semaphore size
	// (PLOKE_IO_FD_LIMIT env var has higher precedence than this field).
	FDLimitOverride int `yaml:"fd_limit_override" json:"fd_limit_override"`
}

// BM25SidecarConfig configures BM25Actor's save/load sidecar.
type BM25SidecarConfig struct {
	// SidecarDir is the directory holding the BM25 sidecar JSON
	// (PLOKE_BM25_SIDECAR_DIR env var overrides this field).
	SidecarDir string `yaml:"sidecar_dir" json:"sidecar_dir"`
}

// EditingConfig configures EditEngine's preview behavior.
type EditingConfig struct {
	// PreviewMode selects the default Preview strategy: "unified_diff" or
	// "code_block".
	PreviewMode string `yaml:"preview_mode" json:"preview_mode"`
	// AutoConfirmEdits, when true, skips the UI approval step and
	// auto-approves every staged proposal.
	AutoConfirmEdits bool `yaml:"auto_confirm_edits" json:"auto_confirm_edits"`
}

// ServerConfig configures the MCP server transport and log level.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig returns a Config populated with RELE's defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			BM25Weight:     0.5,
			SemanticWeight: 0.5,
			RRFConstant:    60,
			MaxResults:     20,
			BM25BackoffMS:  []int{50, 150, 400},
		},
		IO: IOConfig{
			FDLimitOverride: 0,
		},
		BM25: BM25SidecarConfig{
			SidecarDir: defaultSidecarDir(),
		},
		Editing: EditingConfig{
			PreviewMode: "unified_diff",
		},
		Server: ServerConfig{
			Transport: "stdio",
			LogLevel:  "info",
		},
	}
}

func defaultSidecarDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".rele", "bm25")
	}
	return filepath.Join(home, ".rele", "bm25")
}

// GetUserConfigPath returns the user/global configuration path, following
// the XDG Base Directory spec.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rele", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "rele", "config.yaml")
	}
	return filepath.Join(home, ".config", "rele", "config.yaml")
}

// UserConfigExists reports whether the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the final Config for a project directory: defaults, then
// user config, then project config (.rele.yaml), then environment
// variables — each layer overriding the previous one.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
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

func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".rele.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".rele.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if len(other.Search.BM25BackoffMS) > 0 {
		c.Search.BM25BackoffMS = other.Search.BM25BackoffMS
	}

	if other.IO.FDLimitOverride != 0 {
		c.IO.FDLimitOverride = other.IO.FDLimitOverride
	}

	if other.BM25.SidecarDir != "" {
		c.BM25.SidecarDir = other.BM25.SidecarDir
	}

	if other.Editing.PreviewMode != "" {
		c.Editing.PreviewMode = other.Editing.PreviewMode
	}
	if other.Editing.AutoConfirmEdits {
		c.Editing.AutoConfirmEdits = other.Editing.AutoConfirmEdits
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies RELE_*/PLOKE_* environment variable
// overrides, the highest-precedence layer.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RELE_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("RELE_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("RELE_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("PLOKE_IO_FD_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.IO.FDLimitOverride = n
		}
	}
	if v := os.Getenv("PLOKE_BM25_SIDECAR_DIR"); v != "" {
		c.BM25.SidecarDir = v
	}
	if v := os.Getenv("RELE_EDITING_PREVIEW_MODE"); v != "" {
		c.Editing.PreviewMode = v
	}
	if v := os.Getenv("RELE_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("RELE_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return fmt.Errorf("bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if sum := c.Search.BM25Weight + c.Search.SemanticWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("bm25_weight + semantic_weight must equal 1.0, got %.2f", sum)
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("max_results must be non-negative, got %d", c.Search.MaxResults)
	}

	validTransports := map[string]bool{"stdio": true, "sse": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'stdio' or 'sse', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	validPreview := map[string]bool{"unified_diff": true, "code_block": true}
	if !validPreview[c.Editing.PreviewMode] {
		return fmt.Errorf("editing.preview_mode must be 'unified_diff' or 'code_block', got %s", c.Editing.PreviewMode)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
