package courier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/payload"
)

// Client signs and delivers payloads to a single ingestion endpoint.
// A Client is safe for concurrent use.
type Client struct {
	config     Config
	endpoint   string
	httpClient *http.Client
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	schema     json.RawMessage
	dlqStore   dlq.Store
	dlqSvc     *dlq.Service
	engine     *delivery.Engine
	logger     *slog.Logger
}

// New creates a Client with the given options. The endpoint is resolved once
// here, see ResolveEndpoint.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.endpoint = ResolveEndpoint(c.config.Endpoint)
	if err := validateEndpoint(c.endpoint); err != nil {
		return nil, err
	}
	if c.config.Validate && c.schema == nil {
		c.schema = payload.DefaultSchema
	}

	c.wireServices()
	return c, nil
}

// wireServices initializes the internal services after options have been applied.
func (c *Client) wireServices() {
	cfg := delivery.EngineConfig{
		Endpoint:       c.endpoint,
		UserAgent:      c.config.UserAgent,
		MaxAttempts:    c.config.MaxAttempts,
		RequestTimeout: c.config.RequestTimeout,
		HTTPClient:     c.httpClient,
		Backoff: delivery.Backoff{
			Base:   c.config.BaseDelay,
			Factor: 2,
			Max:    c.config.MaxDelay,
		},
		Metrics: c.metrics,
		Tracer:  c.tracer,
	}
	if len(c.schema) > 0 {
		cfg.Schema = c.schema
	}
	if c.dlqStore != nil {
		c.dlqSvc = dlq.NewService(c.dlqStore, c.logger)
		cfg.DLQ = c.dlqSvc
	}
	c.engine = delivery.NewEngine(cfg, c.logger)
}

// Endpoint returns the resolved ingestion URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Deliver stamps p with job_minutes measured from startTime, signs it with
// secret and delivers it. p is not modified.
//
// The returned error is nil on success. After every attempt failed it is a
// *delivery.Error whose message reads "Failed after N attempts: <last>".
// Validation failures wrap delivery.ErrInvalidPayload and make no request.
func (c *Client) Deliver(ctx context.Context, p any, secret string, startTime time.Time) error {
	if secret == "" {
		return ErrSecretRequired
	}
	return c.engine.Deliver(ctx, p, secret, startTime)
}

// Replay re-sends the exact bytes stored in a DLQ entry and marks the entry
// replayed on success. A failed replay leaves the entry pending.
func (c *Client) Replay(ctx context.Context, dlqID id.ID, secret string) error {
	if c.dlqSvc == nil {
		return ErrNoDLQ
	}
	if secret == "" {
		return ErrSecretRequired
	}

	entry, err := c.dlqSvc.Get(ctx, dlqID)
	if err != nil {
		return err
	}
	if entry.ReplayedAt != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyReplayed, dlqID)
	}

	if err := c.engine.DeliverRaw(ctx, entry.Payload, secret); err != nil {
		return fmt.Errorf("courier: replay %s: %w", dlqID, err)
	}
	if err := c.dlqSvc.MarkReplayed(ctx, dlqID); err != nil {
		return fmt.Errorf("courier: mark replayed: %w", err)
	}

	c.logger.InfoContext(ctx, "dlq entry replayed", "dlq_id", dlqID, "delivery_id", entry.DeliveryID)
	return nil
}

// DLQ returns the dead letter queue service, or nil when no store is
// configured.
func (c *Client) DLQ() *dlq.Service {
	return c.dlqSvc
}
