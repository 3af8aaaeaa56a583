package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration. User-facing preferences
// (principles, task, provider...) live in the settings store instead.
type Config struct {
	// LogCapacity is the maximum number of entries each log table retains.
	// Appending past it evicts the oldest entries.
	LogCapacity int `json:"log_capacity"`

	// CallTimeoutMs bounds a single model call, including response decoding.
	CallTimeoutMs int `json:"call_timeout_ms"`

	// PageLoadDelayMs is how long the pageLoad trigger waits after a
	// load/navigation event before asking for a judgement.
	PageLoadDelayMs int `json:"page_load_delay_ms"`

	// CallsPerMinute caps model calls across all providers. 0 disables the cap.
	CallsPerMinute int `json:"calls_per_minute,omitempty"`

	// OllamaURL is the base URL of the local model server.
	OllamaURL string `json:"ollama_url"`

	// AnthropicModel is the cloud model identifier.
	AnthropicModel string `json:"anthropic_model"`

	// AnthropicMaxTokens is the completion token ceiling for cloud calls.
	AnthropicMaxTokens int `json:"anthropic_max_tokens"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// HTTPAddr is the listen address for `objective serve`.
	HTTPAddr string `json:"http_addr"`

	// AllowedOrigins lists CORS origins allowed to call the HTTP API
	// (typically the extension's chrome-extension:// origin).
	AllowedOrigins []string `json:"allowed_origins,omitempty"`

	// ExportDir is the only directory log exports are written to and read
	// from. Empty means <baseDir>/exports.
	ExportDir string `json:"export_dir,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogCapacity:        1000,
		CallTimeoutMs:      60000,
		PageLoadDelayMs:    1000,
		OllamaURL:          "http://localhost:11434",
		AnthropicModel:     "claude-3-haiku-20240307",
		AnthropicMaxTokens: 1024,
		HTTPAddr:           "127.0.0.1:7414",
	}
}

// CallTimeout returns CallTimeoutMs as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutMs) * time.Millisecond
}

// PageLoadDelay returns PageLoadDelayMs as a duration.
func (c *Config) PageLoadDelay() time.Duration {
	return time.Duration(c.PageLoadDelayMs) * time.Millisecond
}

// ExportPath returns ExportDir, defaulting to <baseDir>/exports.
func (c *Config) ExportPath(baseDir string) string {
	if c.ExportDir != "" {
		return c.ExportDir
	}
	return filepath.Join(baseDir, "exports")
}

// BaseDir returns the data directory: $OBJECTIVE_HOME, else ~/.objective.
func BaseDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("OBJECTIVE_HOME")); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".objective"), nil
}

// Load loads configuration from baseDir/config.json and applies environment
// overrides. Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.objective.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides selected fields from the environment.
func applyEnv(cfg *Config) {
	if addr := strings.TrimSpace(os.Getenv("OBJECTIVE_HTTP_ADDR")); addr != "" {
		cfg.HTTPAddr = addr
	}
	if url := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); url != "" {
		if !strings.Contains(url, "://") {
			url = "http://" + url
		}
		cfg.OllamaURL = url
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		LogCapacity:        firstPositive(overlay.LogCapacity, base.LogCapacity),
		CallTimeoutMs:      firstPositive(overlay.CallTimeoutMs, base.CallTimeoutMs),
		PageLoadDelayMs:    firstPositive(overlay.PageLoadDelayMs, base.PageLoadDelayMs),
		CallsPerMinute:     firstPositive(overlay.CallsPerMinute, base.CallsPerMinute),
		AnthropicMaxTokens: firstPositive(overlay.AnthropicMaxTokens, base.AnthropicMaxTokens),
		DBMaxOpenConns:     firstPositive(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:     firstPositive(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		OllamaURL:          firstNonEmpty(overlay.OllamaURL, base.OllamaURL),
		AnthropicModel:     firstNonEmpty(overlay.AnthropicModel, base.AnthropicModel),
		HTTPAddr:           firstNonEmpty(overlay.HTTPAddr, base.HTTPAddr),
		ExportDir:          firstNonEmpty(overlay.ExportDir, base.ExportDir),
	}

	result.AllowedOrigins = mergeStringSlice(base.AllowedOrigins, overlay.AllowedOrigins)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func firstPositive(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

func firstNonEmpty(a, b string) string {
	if s := strings.TrimSpace(a); s != "" {
		return s
	}
	return b
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
