package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/payload"
	"github.com/xraph/courier/signature"
)

// DefaultMaxAttempts is the attempt budget of a delivery call.
const DefaultMaxAttempts = 5

// Failure describes a delivery call whose attempts were all exhausted.
type Failure struct {
	DeliveryID     id.ID
	URL            string
	Body           []byte
	Attempts       int
	LastError      string
	LastStatusCode int
}

// DLQPusher receives exhausted deliveries.
type DLQPusher interface {
	PushFailed(ctx context.Context, f Failure) error
}

// EngineConfig holds engine configuration.
type EngineConfig struct {
	// Endpoint is the ingestion URL. Resolved once by the caller.
	Endpoint string

	UserAgent      string
	MaxAttempts    int
	Backoff        Backoff
	RequestTimeout time.Duration

	// HTTPClient overrides the default client built from RequestTimeout.
	HTTPClient *http.Client

	// Schema, when set, is validated against the serialized payload before
	// the first attempt. Validator defaults to a fresh payload.Validator.
	Schema    any
	Validator *payload.Validator

	Metrics *observability.Metrics
	Tracer  *observability.Tracer
	DLQ     DLQPusher

	// Sleep waits between attempts. Defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error

	// Now is the clock used for job minutes. Defaults to time.Now.
	Now func() time.Time
}

// Engine delivers signed payloads with bounded retries.
//
// An Engine holds only configuration; every Deliver call owns its attempt
// counter and timing baseline, so one Engine may be used concurrently.
type Engine struct {
	sender  *Sender
	retrier *Retrier
	config  EngineConfig
	logger  *slog.Logger
}

// NewEngine creates a delivery engine.
func NewEngine(cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff.Base = DefaultBackoff().Base
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Schema != nil && cfg.Validator == nil {
		cfg.Validator = payload.NewValidator()
	}
	return &Engine{
		sender:  NewSender(cfg.HTTPClient, cfg.RequestTimeout, cfg.UserAgent),
		retrier: NewRetrier(cfg.MaxAttempts, cfg.Backoff),
		config:  cfg,
		logger:  logger,
	}
}

// Endpoint returns the configured ingestion URL.
func (e *Engine) Endpoint() string {
	return e.config.Endpoint
}

// Deliver annotates p with job_minutes measured from startTime, serializes
// it and delivers it. It returns nil on success, a *Error once all attempts
// failed, or an error wrapping ErrInvalidPayload or ctx.Err().
func (e *Engine) Deliver(ctx context.Context, p any, secret string, startTime time.Time) error {
	minutes := payload.JobMinutes(startTime, e.config.Now())

	annotated, err := payload.WithJobMinutes(p, minutes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	body, err := json.Marshal(annotated)
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", ErrInvalidPayload, err)
	}

	if e.config.Schema != nil {
		if err := e.config.Validator.Validate(e.config.Schema, body); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
	}

	return e.run(ctx, body, secret, true)
}

// DeliverRaw sends already-serialized bytes without annotation or
// validation. Exhausted raw deliveries are not dead-lettered.
func (e *Engine) DeliverRaw(ctx context.Context, body []byte, secret string) error {
	return e.run(ctx, body, secret, false)
}

// run is the retry loop. body is signed and sent unchanged on every attempt.
func (e *Engine) run(ctx context.Context, body []byte, secret string, deadLetter bool) (err error) {
	deliveryID := id.NewDeliveryID()
	logger := e.logger.With("delivery_id", deliveryID.String())

	var span trace.Span
	if e.config.Tracer != nil {
		ctx, span = e.config.Tracer.StartDeliverySpan(ctx, deliveryID.String(), e.config.Endpoint)
	}

	attempts := 0
	defer func() {
		if span != nil {
			e.config.Tracer.EndDeliverySpan(span, attempts, err)
		}
		if e.config.Metrics != nil {
			status := "delivered"
			if err != nil {
				status = "failed"
			}
			e.config.Metrics.RecordDelivery(status)
		}
	}()

	for attempt := 1; ; attempt++ {
		attempts = attempt

		att := e.sender.Send(ctx, Request{
			URL:        e.config.Endpoint,
			Body:       body,
			Signature:  signature.Sign(body, secret),
			DeliveryID: deliveryID.String(),
			Attempt:    attempt,
		})

		if e.config.Metrics != nil {
			e.config.Metrics.RecordAttempt(att.Outcome.String(), att.Latency.Seconds())
		}
		if span != nil {
			e.config.Tracer.RecordAttempt(span, attempt, att.Outcome.String(), att.StatusCode, att.Latency.Milliseconds())
		}

		// A canceled caller is never an exhaustion, even on the last attempt.
		if ctxErr := ctx.Err(); ctxErr != nil && !att.Succeeded() {
			logger.WarnContext(ctx, "delivery canceled",
				"attempt", attempt, "outcome", att.Outcome.String(), "error", ctxErr.Error())
			return fmt.Errorf("delivery: canceled after %d attempts: %w", attempt, ctxErr)
		}

		switch e.retrier.Decide(att) {
		case Delivered:
			logger.DebugContext(ctx, "delivered",
				"attempt", attempt, "status", att.StatusCode, "latency_ms", att.Latency.Milliseconds())
			return nil

		case Exhausted:
			logger.WarnContext(ctx, "delivery attempt failed",
				"attempt", attempt, "max_attempts", e.retrier.MaxAttempts(),
				"outcome", att.Outcome.String(), "status", att.StatusCode, "error", att.Err.Error())

			failure := &Error{
				Attempts:   attempt,
				Last:       att.Err,
				StatusCode: att.StatusCode,
				DeliveryID: deliveryID.String(),
			}
			if deadLetter {
				e.pushDLQ(ctx, logger, deliveryID, body, failure)
			}
			return failure

		case Retry:
			delay := e.retrier.Delay(attempt)
			logger.WarnContext(ctx, "delivery attempt failed",
				"attempt", attempt, "max_attempts", e.retrier.MaxAttempts(),
				"outcome", att.Outcome.String(), "status", att.StatusCode, "error", att.Err.Error(),
				"retry_in", delay.String())

			if sleepErr := e.config.Sleep(ctx, delay); sleepErr != nil {
				return fmt.Errorf("delivery: canceled after %d attempts: %w", attempt, sleepErr)
			}
			if e.config.Metrics != nil {
				e.config.Metrics.BackoffSeconds.Add(delay.Seconds())
			}
		}
	}
}

func (e *Engine) pushDLQ(ctx context.Context, logger *slog.Logger, deliveryID id.ID, body []byte, failure *Error) {
	if e.config.DLQ == nil {
		return
	}
	err := e.config.DLQ.PushFailed(ctx, Failure{
		DeliveryID:     deliveryID,
		URL:            e.config.Endpoint,
		Body:           body,
		Attempts:       failure.Attempts,
		LastError:      failure.Last.Error(),
		LastStatusCode: failure.StatusCode,
	})
	if err != nil {
		logger.ErrorContext(ctx, "push to DLQ failed", "error", err)
		return
	}
	if e.config.Metrics != nil {
		e.config.Metrics.DLQPushed.Inc()
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
