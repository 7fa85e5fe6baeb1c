package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	t.Setenv("COPHYSICIST_CREDENTIALS_PATH", filepath.Join(t.TempDir(), "nested", "credentials.yaml"))
	for _, env := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY"} {
		t.Setenv(env, "")
	}
	return NewManager()
}

func TestAPIKeyPrefersEnvironment(t *testing.T) {
	m := newTestManager(t)
	creds := &Credentials{}
	creds.SetProvider("openai", "sk-file")
	if err := m.Save(creds); err != nil {
		t.Fatalf("Save: %v", err)
	}

	key, err := m.APIKey("openai")
	if err != nil || key != "sk-file" {
		t.Fatalf("file key = %q, %v", key, err)
	}

	t.Setenv("OPENAI_API_KEY", "  sk-env  ")
	key, err = m.APIKey("OpenAI")
	if err != nil || key != "sk-env" {
		t.Fatalf("env key = %q, %v", key, err)
	}
}

func TestAPIKeyMissing(t *testing.T) {
	m := newTestManager(t)
	_, err := m.APIKey("anthropic")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if !strings.Contains(err.Error(), "ANTHROPIC_API_KEY") {
		t.Fatalf("error should name the variable: %v", err)
	}
	if key, err := m.APIKey("mock"); err != nil || key != "" {
		t.Fatalf("mock should need no key: %q, %v", key, err)
	}
}

func TestSaveRestrictsPermissions(t *testing.T) {
	m := newTestManager(t)
	if err := m.Save(&Credentials{}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(m.Path())
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("permissions = %o, want 600", perm)
	}
}
