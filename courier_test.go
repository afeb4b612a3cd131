package courier_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/dlq"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/payload"
	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/store/memory"
)

const secret = "whsec_client_test"

func ctx() context.Context { return context.Background() }

// ingest is a fake ingestion endpoint whose behavior can be switched mid-test.
type ingest struct {
	mu     sync.Mutex
	fail   bool
	bodies [][]byte
	sigs   []string
	agents []string
}

func (g *ingest) setFail(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = v
}

func (g *ingest) requests() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.bodies)
}

func (g *ingest) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	g.mu.Lock()
	g.bodies = append(g.bodies, body)
	g.sigs = append(g.sigs, r.Header.Get(signature.HeaderName))
	g.agents = append(g.agents, r.UserAgent())
	fail := g.fail
	g.mu.Unlock()

	if fail {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func setup(t *testing.T, opts ...courier.Option) (*courier.Client, *ingest) {
	t.Helper()
	g := &ingest{}
	srv := httptest.NewServer(g)
	t.Cleanup(srv.Close)

	base := []courier.Option{
		courier.WithEndpoint(srv.URL),
		courier.WithBaseDelay(time.Millisecond),
	}
	c, err := courier.New(append(base, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	return c, g
}

func samplePayload() payload.Payload {
	return payload.Payload{
		Repo:   "courier",
		Owner:  "xraph",
		Branch: "main",
		Commits: []payload.Commit{{
			ID:        "4f2a9c1",
			Message:   "Add backoff cap",
			Author:    payload.Author{Name: "Dev", Email: "dev@example.com"},
			Timestamp: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
			URL:       "https://git.example.com/xraph/courier/commit/4f2a9c1",
		}},
	}
}

func TestDeliverHappyPath(t *testing.T) {
	c, g := setup(t)

	p := samplePayload()
	if err := c.Deliver(ctx(), p, secret, time.Now().Add(-150*time.Second)); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if g.requests() != 1 {
		t.Fatalf("expected 1 request, got %d", g.requests())
	}
	if !signature.Verify(g.bodies[0], secret, g.sigs[0]) {
		t.Fatal("signature does not verify against the received body")
	}
	if g.agents[0] != "courier/"+courier.Version {
		t.Errorf("user agent = %q", g.agents[0])
	}

	var got map[string]any
	if err := json.Unmarshal(g.bodies[0], &got); err != nil {
		t.Fatal(err)
	}
	if m, _ := got["job_minutes"].(float64); m < 2 {
		t.Errorf("job_minutes = %v, want >= 2", got["job_minutes"])
	}
	if p.JobMinutes != 0 {
		t.Error("caller payload was modified")
	}
}

func TestDeliverRequiresSecret(t *testing.T) {
	c, g := setup(t)
	if err := c.Deliver(ctx(), samplePayload(), "", time.Now()); !errors.Is(err, courier.ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
	if g.requests() != 0 {
		t.Fatal("no request expected without a secret")
	}
}

func TestDeliverExhausted(t *testing.T) {
	c, g := setup(t, courier.WithMaxAttempts(3))
	g.setFail(true)

	err := c.Deliver(ctx(), samplePayload(), secret, time.Now())
	if !errors.Is(err, delivery.ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !strings.Contains(err.Error(), "Failed after 3 attempts") {
		t.Errorf("unexpected message: %v", err)
	}
	if g.requests() != 3 {
		t.Fatalf("expected 3 requests, got %d", g.requests())
	}
}

func TestDeliverValidation(t *testing.T) {
	c, g := setup(t, courier.WithValidation(nil))

	err := c.Deliver(ctx(), map[string]any{"repo": "courier"}, secret, time.Now())
	if !errors.Is(err, delivery.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if g.requests() != 0 {
		t.Fatalf("validation failure must not reach the network, got %d requests", g.requests())
	}

	if err := c.Deliver(ctx(), samplePayload(), secret, time.Now()); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}
}

func TestDeadLetterAndReplay(t *testing.T) {
	store := memory.New()
	c, g := setup(t, courier.WithMaxAttempts(2), courier.WithDLQ(store))
	g.setFail(true)

	if err := c.Deliver(ctx(), samplePayload(), secret, time.Now()); err == nil {
		t.Fatal("expected delivery to fail")
	}

	entries, err := c.DLQ().List(ctx(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 DLQ entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.AttemptCount != 2 || entry.LastStatusCode != http.StatusServiceUnavailable {
		t.Errorf("unexpected entry: attempts=%d status=%d", entry.AttemptCount, entry.LastStatusCode)
	}

	// A failing replay leaves the entry pending.
	if err := c.Replay(ctx(), entry.ID, secret); !errors.Is(err, delivery.ErrExhausted) {
		t.Fatalf("expected replay to exhaust, got %v", err)
	}
	if n, _ := c.DLQ().Count(ctx()); n != 1 {
		t.Fatalf("raw replays must not be dead-lettered again, count = %d", n)
	}

	g.setFail(false)
	before := g.requests()
	if err := c.Replay(ctx(), entry.ID, secret); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if g.requests() != before+1 {
		t.Fatalf("expected one replay request, got %d", g.requests()-before)
	}
	if string(g.bodies[len(g.bodies)-1]) != string(g.bodies[0]) {
		t.Error("replay must re-send the original bytes")
	}

	got, err := c.DLQ().Get(ctx(), entry.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReplayedAt == nil {
		t.Fatal("expected entry to be marked replayed")
	}

	if err := c.Replay(ctx(), entry.ID, secret); !errors.Is(err, courier.ErrAlreadyReplayed) {
		t.Fatalf("expected ErrAlreadyReplayed, got %v", err)
	}
}

func TestReplayErrors(t *testing.T) {
	c, _ := setup(t)
	if err := c.Replay(ctx(), id.NewDLQID(), secret); !errors.Is(err, courier.ErrNoDLQ) {
		t.Fatalf("expected ErrNoDLQ, got %v", err)
	}
	if c.DLQ() != nil {
		t.Fatal("expected nil DLQ service without a store")
	}

	c, _ = setup(t, courier.WithDLQ(memory.New()))
	if err := c.Replay(ctx(), id.NewDLQID(), secret); !errors.Is(err, dlq.ErrNotFound) {
		t.Fatalf("expected dlq.ErrNotFound, got %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  courier.Option
		want error
	}{
		{"relative endpoint", courier.WithEndpoint("/v1/commits"), courier.ErrInvalidEndpoint},
		{"ftp endpoint", courier.WithEndpoint("ftp://example.com"), courier.ErrInvalidEndpoint},
		{"zero attempts", courier.WithMaxAttempts(0), courier.ErrInvalidMaxAttempts},
		{"bad config", courier.WithConfig(courier.Config{MaxAttempts: -1}), courier.ErrInvalidMaxAttempts},
		{"negative base delay", courier.WithBaseDelay(-time.Second), courier.ErrInvalidDelay},
		{"negative max delay", courier.WithMaxDelay(-time.Second), courier.ErrInvalidDelay},
		{"negative timeout", courier.WithRequestTimeout(-time.Second), courier.ErrInvalidDelay},
		{"negative config delay", courier.WithConfig(courier.Config{MaxAttempts: 1, BaseDelay: -time.Millisecond}), courier.ErrInvalidDelay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := courier.New(tt.opt); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestEndpointFromEnvironment(t *testing.T) {
	t.Setenv(courier.EndpointEnv, "https://staging.example.com/ingest")

	c, err := courier.New()
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint() != "https://staging.example.com/ingest" {
		t.Fatalf("endpoint = %q", c.Endpoint())
	}

	c, err = courier.New(courier.WithEndpoint("https://explicit.example.com"))
	if err != nil {
		t.Fatal(err)
	}
	if c.Endpoint() != "https://explicit.example.com" {
		t.Fatalf("explicit endpoint should win, got %q", c.Endpoint())
	}
}
