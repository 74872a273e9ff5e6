// Package config handles recalld configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/becomeliminal/recall-go-sdk/memory"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/recalld/config.yaml, /etc/recalld/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "recalld", "config.yaml"))
	}

	paths = append(paths, "/etc/recalld/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all recalld configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Memory    MemoryConfig    `yaml:"memory"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Agent     AgentConfig     `yaml:"agent"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the chat gateway settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// AnthropicConfig defines Anthropic API settings. The API key falls back to
// the ANTHROPIC_API_KEY environment variable when unset.
type AnthropicConfig struct {
	APIKey       string `yaml:"api_key"`
	Model        string `yaml:"model"`
	SummaryModel string `yaml:"summary_model"`
	MaxTokens    int    `yaml:"max_tokens"`
}

// MemoryConfig defines the memory subsystem's limits and maintenance policy.
// Zero values fall back to the memory package defaults.
type MemoryConfig struct {
	Policy               string `yaml:"policy"` // "summarize" or "trim"
	HistoryLimit         int    `yaml:"history_limit"`
	CoreFactLimit        int    `yaml:"core_fact_limit"`
	SearchLimit          int    `yaml:"search_limit"`
	MaintenanceThreshold int    `yaml:"maintenance_threshold"`
	SummaryWindow        int    `yaml:"summary_window"`
	SummarizeWatermark   int    `yaml:"summarize_watermark"`
	TrimWatermark        int    `yaml:"trim_watermark"`
}

// EmbedderConfig selects the embedding backend.
type EmbedderConfig struct {
	// Provider is "mock" or "onnx". The onnx provider requires building
	// with the onnx tag.
	Provider      string `yaml:"provider"`
	ModelPath     string `yaml:"model_path"`
	TokenizerPath string `yaml:"tokenizer_path"`
	LibraryPath   string `yaml:"library_path"`
	Dimensions    int    `yaml:"dimensions"`
}

// AgentConfig tunes the tool-calling loop.
type AgentConfig struct {
	MaxIterations  int    `yaml:"max_iterations"`
	CallTimeoutSec int    `yaml:"call_timeout_sec"`
	SystemPrompt   string `yaml:"system_prompt"`
}

// SessionsConfig tunes the session cache.
type SessionsConfig struct {
	MaxSessions int `yaml:"max_sessions"`
	TTLMinutes  int `yaml:"ttl_minutes"`
}

// Load reads configuration from a YAML file. Environment variables in the
// file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	if cfg.Anthropic.APIKey == "" {
		cfg.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen:   ListenConfig{Port: 8080},
		Memory:   MemoryConfig{Policy: "summarize"},
		Embedder: EmbedderConfig{Provider: "mock"},
		DataDir:  "data",
	}
}

// ShortTermPath returns the SQLite file path for the conversation log.
func (c *Config) ShortTermPath() string {
	return filepath.Join(c.DataDir, "short_term.db")
}

// LongTermPath returns the vector store directory.
func (c *Config) LongTermPath() string {
	return filepath.Join(c.DataDir, "long_term")
}

// MemorySettings maps the file config onto the memory package's Config,
// leaving zero values for its defaults to fill.
func (c *Config) MemorySettings() (memory.Config, error) {
	mc := memory.Config{
		HistoryLimit:         c.Memory.HistoryLimit,
		CoreFactLimit:        c.Memory.CoreFactLimit,
		SearchLimit:          c.Memory.SearchLimit,
		MaintenanceThreshold: c.Memory.MaintenanceThreshold,
		SummaryWindow:        c.Memory.SummaryWindow,
		SummarizeWatermark:   c.Memory.SummarizeWatermark,
		TrimWatermark:        c.Memory.TrimWatermark,
	}
	switch c.Memory.Policy {
	case "", "summarize":
		mc.Policy = memory.PolicySummarize
	case "trim":
		mc.Policy = memory.PolicyTrim
	default:
		return memory.Config{}, fmt.Errorf("unknown maintenance policy %q (valid: summarize, trim)", c.Memory.Policy)
	}
	return mc, nil
}

// CallTimeout returns the per-model-call timeout, or zero when unset.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Agent.CallTimeoutSec) * time.Second
}

// SessionTTL returns the session cache TTL, or zero when unset.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Sessions.TTLMinutes) * time.Minute
}
