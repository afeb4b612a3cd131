package courier

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/courier/delivery"
)

// Version is the client version reported in the User-Agent header.
const Version = delivery.Version

// DefaultEndpoint is the production ingestion URL.
const DefaultEndpoint = "https://ingest.courier.dev/v1/commits"

// EndpointEnv names the environment variable that overrides the endpoint
// when no explicit one is configured.
const EndpointEnv = "COURIER_ENDPOINT"

// Config holds the configuration for a Client.
type Config struct {
	// Endpoint is the explicit ingestion URL. Empty defers to EndpointEnv
	// and then DefaultEndpoint.
	Endpoint string `yaml:"endpoint" json:"endpoint,omitempty"`

	// UserAgent is sent with every request.
	UserAgent string `yaml:"user_agent" json:"user_agent,omitempty"`

	// MaxAttempts is the total number of attempts per delivery.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// BaseDelay is the wait after the first failed attempt. Each further
	// failure doubles it.
	BaseDelay time.Duration `yaml:"base_delay" json:"base_delay"`

	// MaxDelay caps a single backoff wait. Zero means uncapped.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay,omitempty"`

	// RequestTimeout is the HTTP timeout per attempt.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Validate enables DefaultSchema validation before delivery.
	Validate bool `yaml:"validate" json:"validate,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:      delivery.DefaultUserAgent,
		MaxAttempts:    delivery.DefaultMaxAttempts,
		BaseDelay:      time.Second,
		RequestTimeout: 30 * time.Second,
	}
}

// LoadConfig reads a YAML config file on top of DefaultConfig. Unknown keys
// are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("courier: read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("courier: parse config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ResolveEndpoint returns explicit if set, then the EndpointEnv value, then
// DefaultEndpoint.
func ResolveEndpoint(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv(EndpointEnv); v != "" {
		return v
	}
	return DefaultEndpoint
}

func (c Config) validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxAttempts, c.MaxAttempts)
	}
	if c.BaseDelay < 0 || c.MaxDelay < 0 || c.RequestTimeout < 0 {
		return fmt.Errorf("%w: base_delay=%s max_delay=%s request_timeout=%s",
			ErrInvalidDelay, c.BaseDelay, c.MaxDelay, c.RequestTimeout)
	}
	if c.Endpoint != "" {
		if err := validateEndpoint(c.Endpoint); err != nil {
			return err
		}
	}
	return nil
}

func validateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, raw)
	}
	return nil
}
