package courier

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/payload"
)

// Option configures a Client.
type Option func(*Client) error

// WithConfig replaces the whole configuration. Apply it before options that
// tweak single fields.
func WithConfig(cfg Config) Option {
	return func(c *Client) error {
		if err := cfg.validate(); err != nil {
			return err
		}
		c.config = cfg
		return nil
	}
}

// WithEndpoint sets an explicit ingestion URL, taking precedence over the
// environment.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) error {
		if err := validateEndpoint(endpoint); err != nil {
			return err
		}
		c.config.Endpoint = endpoint
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for every attempt.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithMaxAttempts sets the total number of attempts per delivery.
func WithMaxAttempts(n int) Option {
	return func(c *Client) error {
		if n < 1 {
			return ErrInvalidMaxAttempts
		}
		c.config.MaxAttempts = n
		return nil
	}
}

// WithBaseDelay sets the wait after the first failed attempt. Zero selects
// the 1s default and keeps any WithMaxDelay cap.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return ErrInvalidDelay
		}
		c.config.BaseDelay = d
		return nil
	}
}

// WithMaxDelay caps a single backoff wait.
func WithMaxDelay(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return ErrInvalidDelay
		}
		c.config.MaxDelay = d
		return nil
	}
}

// WithRequestTimeout sets the HTTP timeout per attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d < 0 {
			return ErrInvalidDelay
		}
		c.config.RequestTimeout = d
		return nil
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithTracer enables OpenTelemetry spans per delivery.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Client) error {
		c.tracer = t
		return nil
	}
}

// WithDLQ dead-letters exhausted deliveries into store.
func WithDLQ(store dlq.Store) Option {
	return func(c *Client) error {
		c.dlqStore = store
		return nil
	}
}

// WithValidation validates every payload against schema before delivery.
// A nil schema selects payload.DefaultSchema.
func WithValidation(schema json.RawMessage) Option {
	return func(c *Client) error {
		if schema == nil {
			schema = payload.DefaultSchema
		}
		c.schema = schema
		return nil
	}
}
