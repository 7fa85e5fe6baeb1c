package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cophysicist/internal/config"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned when neither the environment nor the
// credentials file supplies a key for the selected provider.
var ErrMissingAPIKey = errors.New("missing API key")

// envVars maps provider keys to the environment variable holding their key.
var envVars = map[string]string{
	config.ProviderOpenAI:     "OPENAI_API_KEY",
	config.ProviderAnthropic:  "ANTHROPIC_API_KEY",
	config.ProviderOpenRouter: "OPENROUTER_API_KEY",
}

// Credentials stores API keys per provider
type Credentials struct {
	Providers map[string]Provider `yaml:"providers"`
}

// Provider stores authentication details for a single provider
type Provider struct {
	APIKey string `yaml:"api_key"`
}

// Manager handles credential storage and retrieval
type Manager struct {
	path string
}

// NewManager creates a credential manager backed by COPHYSICIST_CREDENTIALS_PATH,
// or credentials.yaml in the config directory.
func NewManager() *Manager {
	credPath := os.Getenv("COPHYSICIST_CREDENTIALS_PATH")
	if credPath == "" {
		credPath = filepath.Join(config.GetConfigDir(), "credentials.yaml")
	}
	return &Manager{path: credPath}
}

// EnvVar names the environment variable consulted for provider.
func EnvVar(provider string) string {
	return envVars[strings.ToLower(provider)]
}

// APIKey resolves the key for provider, preferring the environment.
func (m *Manager) APIKey(provider string) (string, error) {
	provider = strings.ToLower(provider)
	if provider == config.ProviderMock {
		return "", nil
	}
	envVar := EnvVar(provider)
	if envVar != "" {
		if key := strings.TrimSpace(os.Getenv(envVar)); key != "" {
			return key, nil
		}
	}
	creds, err := m.Load()
	if err != nil {
		return "", err
	}
	if key := strings.TrimSpace(creds.GetAPIKey(provider)); key != "" {
		return key, nil
	}
	if envVar == "" {
		return "", fmt.Errorf("%w: unknown provider %q", ErrMissingAPIKey, provider)
	}
	return "", fmt.Errorf("%w: set %s or add providers.%s.api_key to %s", ErrMissingAPIKey, envVar, provider, m.path)
}

// Load reads credentials from disk. A missing file yields empty credentials.
func (m *Manager) Load() (*Credentials, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{Providers: make(map[string]Provider)}, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	if creds.Providers == nil {
		creds.Providers = make(map[string]Provider)
	}
	return &creds, nil
}

// Save writes credentials to disk with user-only permissions.
func (m *Manager) Save(creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	data, err := yaml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

// Path returns the credentials file path
func (m *Manager) Path() string {
	return m.path
}

// GetAPIKey returns the stored API key for a provider
func (c *Credentials) GetAPIKey(provider string) string {
	if c.Providers == nil {
		return ""
	}
	return c.Providers[provider].APIKey
}

// SetProvider sets the API key for a provider
func (c *Credentials) SetProvider(name, apiKey string) {
	if c.Providers == nil {
		c.Providers = make(map[string]Provider)
	}
	c.Providers[name] = Provider{APIKey: apiKey}
}
