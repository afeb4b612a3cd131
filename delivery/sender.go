package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/xraph/courier/payload"
	"github.com/xraph/courier/signature"
)

const (
	maxResponseBody = 1 << 20 // 1MB buffered per response; larger 2xx bodies are stream-validated
	maxDiagnostic   = 256     // response text kept for logs and errors
)

// Version is the client version reported in DefaultUserAgent.
const Version = "1.0.0"

// DefaultUserAgent identifies this client when none is configured.
const DefaultUserAgent = "courier/" + Version

// Header names set on every delivery request besides the signature.
const (
	HeaderDeliveryID = "X-Courier-Delivery-ID"
	HeaderAttempt    = "X-Courier-Attempt"
)

// Request is a single signed POST.
type Request struct {
	URL        string
	Body       []byte
	Signature  string
	DeliveryID string
	Attempt    int
}

// Sender performs one HTTP delivery attempt.
type Sender struct {
	client    *http.Client
	userAgent string
}

// NewSender creates a sender using client. A nil client gets a default
// client with the given timeout.
func NewSender(client *http.Client, timeout time.Duration, userAgent string) *Sender {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Sender{client: client, userAgent: userAgent}
}

// Send posts the request and classifies the response. It never returns a
// Go error: every failure is carried in the returned Attempt.
func (s *Sender) Send(ctx context.Context, r Request) Attempt {
	att := Attempt{Number: r.Attempt}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(r.Body))
	if err != nil {
		att.Outcome = OutcomeNetworkError
		att.Err = fmt.Errorf("%w: create request: %w", ErrTransport, err)
		return att
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set(signature.HeaderName, r.Signature)
	if r.DeliveryID != "" {
		req.Header.Set(HeaderDeliveryID, r.DeliveryID)
	}
	req.Header.Set(HeaderAttempt, strconv.Itoa(r.Attempt))

	start := time.Now()
	resp, err := s.client.Do(req) //nolint:gosec // G107: URL is the configured ingestion endpoint.
	att.Latency = time.Since(start)

	if err != nil {
		att.Outcome = OutcomeNetworkError
		att.Err = fmt.Errorf("%w: %w", ErrTransport, err)
		return att
	}
	defer resp.Body.Close()

	att.StatusCode = resp.StatusCode

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	overflow := len(body) > maxResponseBody
	att.Response = payload.Truncate(string(body), maxDiagnostic)
	if readErr != nil {
		att.Outcome = OutcomeNetworkError
		att.Err = fmt.Errorf("%w: read response: %w", ErrTransport, readErr)
		return att
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		att.Outcome = OutcomeHTTPError
		att.Err = fmt.Errorf("%w: HTTP %d: %s", ErrRemoteRejected, resp.StatusCode, att.Response)
		return att
	}

	valid := json.Valid(body)
	if overflow {
		valid = validJSON(io.MultiReader(bytes.NewReader(body), resp.Body))
	}
	if !valid {
		att.Outcome = OutcomeMalformedBody
		att.Err = fmt.Errorf("%w (HTTP %d): %s", ErrMalformedResponse, resp.StatusCode, att.Response)
		return att
	}

	att.Outcome = OutcomeSuccess
	return att
}

// validJSON reports whether r holds exactly one JSON value. It walks tokens,
// so memory stays bounded by the largest single token.
func validJSON(r io.Reader) bool {
	dec := json.NewDecoder(r)
	depth, values := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return depth == 0 && values == 1
		}
		if err != nil {
			return false
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
				continue
			default:
				depth--
			}
		}
		if depth == 0 {
			values++
			if values > 1 {
				return false
			}
		}
	}
}
