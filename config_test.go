package courier_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/courier"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "courier.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := courier.DefaultConfig()
	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.BaseDelay != time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.Endpoint != "" {
		t.Errorf("Endpoint = %q, want empty", cfg.Endpoint)
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
endpoint: https://ingest.example.com/v1/commits
max_attempts: 3
base_delay: 250ms
max_delay: 2s
request_timeout: 10s
validate: true
`)
	cfg, err := courier.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Endpoint != "https://ingest.example.com/v1/commits" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
	if cfg.MaxAttempts != 3 || cfg.BaseDelay != 250*time.Millisecond || cfg.MaxDelay != 2*time.Second {
		t.Errorf("unexpected retry config: %+v", cfg)
	}
	if cfg.RequestTimeout != 10*time.Second || !cfg.Validate {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.UserAgent != "courier/"+courier.Version {
		t.Errorf("UserAgent default lost: %q", cfg.UserAgent)
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := courier.LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatal(err)
	}
	if cfg != courier.DefaultConfig() {
		t.Errorf("empty file should yield defaults, got %+v", cfg)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := courier.LoadConfig(writeConfig(t, "retries: 3\n")); err == nil {
		t.Error("expected unknown key to be rejected")
	}
	if _, err := courier.LoadConfig(writeConfig(t, "max_attempts: 0\n")); !errors.Is(err, courier.ErrInvalidMaxAttempts) {
		t.Errorf("expected ErrInvalidMaxAttempts, got %v", err)
	}
	if _, err := courier.LoadConfig(writeConfig(t, "base_delay: -1s\n")); !errors.Is(err, courier.ErrInvalidDelay) {
		t.Errorf("expected ErrInvalidDelay, got %v", err)
	}
	if _, err := courier.LoadConfig(writeConfig(t, "endpoint: not a url\n")); !errors.Is(err, courier.ErrInvalidEndpoint) {
		t.Errorf("expected ErrInvalidEndpoint, got %v", err)
	}
	if _, err := courier.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestResolveEndpoint(t *testing.T) {
	t.Setenv(courier.EndpointEnv, "")
	if got := courier.ResolveEndpoint(""); got != courier.DefaultEndpoint {
		t.Errorf("ResolveEndpoint() = %q, want default", got)
	}

	t.Setenv(courier.EndpointEnv, "https://env.example.com")
	if got := courier.ResolveEndpoint(""); got != "https://env.example.com" {
		t.Errorf("ResolveEndpoint() = %q, want env value", got)
	}
	if got := courier.ResolveEndpoint("https://flag.example.com"); got != "https://flag.example.com" {
		t.Errorf("ResolveEndpoint(explicit) = %q", got)
	}
}
