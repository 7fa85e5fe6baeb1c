package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider keys accepted in the provider field.
const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderMock       = "mock"
)

// Provider-specific default model constants
const (
	DefaultOpenAIModel     = "gpt-5"
	DefaultAnthropicModel  = "claude-sonnet-4-5"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
	DefaultMockModel       = "mock-model"
)

const (
	DefaultWorkspaceRoot        = "workspace"
	DefaultInterpreter          = "python3"
	DefaultTemperature          = 0.7
	DefaultMaxOutputTokens      = 2000
	DefaultRequestTimeout       = 90
	DefaultScriptTimeout        = 30
	DefaultMaxOutputBytes       = 1 << 20
	DefaultMaxToolRounds        = 10
	DefaultContextSummaryBytes  = 64 << 10
	DefaultOpenRouterBaseURL    = "https://openrouter.ai/api/v1"
	maxTimeoutSeconds           = 600
	maxContextSummaryBytesLimit = 8 << 20
)

// Config captures the tunable runtime settings for the assistant.
type Config struct {
	Provider              string  `yaml:"provider"`
	Model                 string  `yaml:"model"`
	BaseURL               string  `yaml:"base_url"`
	Temperature           float64 `yaml:"temperature"`
	MaxOutputTokens       int     `yaml:"max_output_tokens"`
	SystemPrompt          string  `yaml:"system_prompt"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
	WorkspaceRoot         string  `yaml:"workspace_root"`
	Interpreter           string  `yaml:"interpreter"`
	ScriptTimeoutSeconds  int     `yaml:"script_timeout_seconds"`
	MaxOutputBytes        int     `yaml:"max_output_bytes"`
	DisableTools          bool    `yaml:"disable_tools"`
	MaxToolRounds         int     `yaml:"max_tool_rounds"`
	ContextSummaryBytes   int     `yaml:"context_summary_bytes"`
	HistoryPath           string  `yaml:"history_path"`
	JournalPath           string  `yaml:"journal_path"`
	LogPath               string  `yaml:"log_path"`
	LogJSON               bool    `yaml:"log_json"`
}

// Default returns a configuration with every optional value filled in.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// ConfigPath reports the config file location, honouring COPHYSICIST_CONFIG_PATH.
func ConfigPath() string {
	if configPath := os.Getenv("COPHYSICIST_CONFIG_PATH"); configPath != "" {
		return configPath
	}
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// EnsureDefaultConfig writes a default config.yaml on first run.
func EnsureDefaultConfig() error {
	configPath := ConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	cfg := Config{
		Provider:             ProviderOpenAI,
		Model:                DefaultOpenAIModel,
		Temperature:          DefaultTemperature,
		MaxOutputTokens:      DefaultMaxOutputTokens,
		WorkspaceRoot:        DefaultWorkspaceRoot,
		Interpreter:          DefaultInterpreter,
		ScriptTimeoutSeconds: DefaultScriptTimeout,
		MaxToolRounds:        DefaultMaxToolRounds,
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// LoadUserConfig loads ConfigPath(). A missing file yields defaults.
func LoadUserConfig() (Config, error) {
	configPath := ConfigPath()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}
	return Load(configPath)
}

// Load reads the YAML configuration from path and injects defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyDefaults fills in optional values to keep the YAML file concise.
func (c *Config) applyDefaults() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModelFor(c.Provider)
	}
	if c.BaseURL == "" && c.Provider == ProviderOpenRouter {
		c.BaseURL = DefaultOpenRouterBaseURL
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.RequestTimeoutSeconds == 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeout
	}
	if strings.TrimSpace(c.WorkspaceRoot) == "" {
		c.WorkspaceRoot = DefaultWorkspaceRoot
	}
	if strings.TrimSpace(c.Interpreter) == "" {
		c.Interpreter = DefaultInterpreter
	}
	if c.ScriptTimeoutSeconds == 0 {
		c.ScriptTimeoutSeconds = DefaultScriptTimeout
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.MaxToolRounds == 0 {
		c.MaxToolRounds = DefaultMaxToolRounds
	}
	if c.ContextSummaryBytes == 0 {
		c.ContextSummaryBytes = DefaultContextSummaryBytes
	}
	if c.HistoryPath == "" {
		c.HistoryPath = filepath.Join(GetConfigDir(), "history")
	}
	if c.JournalPath == "" {
		c.JournalPath = filepath.Join(GetConfigDir(), "journal.db")
	}
	if c.LogPath == "" {
		c.LogPath = filepath.Join(GetConfigDir(), "cophysicist.log")
	}
}

// Validate rejects values outside the supported ranges.
func (c Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter, ProviderMock:
	default:
		return fmt.Errorf("provider must be one of openai, anthropic, openrouter, mock (got %q)", c.Provider)
	}
	// Temperature validation (typical LLM range is 0-2.0)
	if c.Temperature < 0 || c.Temperature > 2.0 {
		return fmt.Errorf("temperature must be between 0 and 2.0 (got %f)", c.Temperature)
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must be positive")
	}
	if c.RequestTimeoutSeconds < 0 || c.RequestTimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("request_timeout_seconds cannot exceed 600 (10 minutes)")
	}
	if c.ScriptTimeoutSeconds < 0 || c.ScriptTimeoutSeconds > maxTimeoutSeconds {
		return fmt.Errorf("script_timeout_seconds cannot exceed 600 (10 minutes)")
	}
	if c.MaxOutputBytes < 0 {
		return fmt.Errorf("max_output_bytes must be positive")
	}
	if c.MaxToolRounds < 0 {
		return fmt.Errorf("max_tool_rounds must be positive")
	}
	if c.ContextSummaryBytes < 0 || c.ContextSummaryBytes > maxContextSummaryBytesLimit {
		return fmt.Errorf("context_summary_bytes must be between 0 and %d", maxContextSummaryBytesLimit)
	}
	if strings.TrimSpace(c.HistoryPath) == "" {
		return fmt.Errorf("history_path must be set")
	}
	return nil
}

// RequestTimeout turns the integer value into a duration for HTTP clients.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ScriptTimeout is the wall-clock bound for one script run.
func (c Config) ScriptTimeout() time.Duration {
	return time.Duration(c.ScriptTimeoutSeconds) * time.Second
}

// OverrideWorkspaceRoot swaps the workspace root at runtime.
func (c *Config) OverrideWorkspaceRoot(root string) {
	if c == nil {
		return
	}
	if trimmed := strings.TrimSpace(root); trimmed != "" {
		c.WorkspaceRoot = trimmed
	}
}

// OverrideProvider switches provider and, unless the model was pinned for the
// same provider, resets the model to that provider's default.
func (c *Config) OverrideProvider(provider string) {
	if c == nil {
		return
	}
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" || provider == c.Provider {
		return
	}
	c.Provider = provider
	c.Model = DefaultModelFor(provider)
	if provider == ProviderOpenRouter && c.BaseURL == "" {
		c.BaseURL = DefaultOpenRouterBaseURL
	}
}

// DefaultModelFor returns the built-in model for a provider key.
func DefaultModelFor(provider string) string {
	switch strings.ToLower(provider) {
	case ProviderAnthropic:
		return DefaultAnthropicModel
	case ProviderOpenRouter:
		return DefaultOpenRouterModel
	case ProviderMock:
		return DefaultMockModel
	default:
		return DefaultOpenAIModel
	}
}

func GetConfigDir() string {
	if configDir := os.Getenv("COPHYSICIST_CONFIG_DIR"); configDir != "" {
		return configDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".cophysicist"
	}
	return filepath.Join(home, ".cophysicist")
}
