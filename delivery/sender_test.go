package delivery_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/signature"
)

func TestSenderHappyPath(t *testing.T) {
	var receivedHeaders http.Header
	var receivedBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedHeaders = r.Header
		bodyBytes, err := io.ReadAll(r.Body)
		if err != nil {
			t.Error(err)
		}
		receivedBody = string(bodyBytes)
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	sender := delivery.NewSender(nil, 5*time.Second, "courier-test/0.1")
	body := []byte(`{"repo":"r","owner":"o","commits":[],"job_minutes":1}`)
	sig := signature.Sign(body, testSecret)

	att := sender.Send(context.Background(), delivery.Request{
		URL:        srv.URL,
		Body:       body,
		Signature:  sig,
		DeliveryID: "dlv_test",
		Attempt:    2,
	})

	if !att.Succeeded() {
		t.Fatalf("expected success, got %v: %v", att.Outcome, att.Err)
	}
	if att.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", att.StatusCode)
	}
	if att.Response != `{"ok":true}` {
		t.Fatalf("unexpected response: %s", att.Response)
	}
	if att.Latency < 0 {
		t.Fatal("latency should be non-negative")
	}
	if receivedBody != string(body) {
		t.Fatalf("body: got %q, want %q", receivedBody, body)
	}
	if receivedHeaders.Get("User-Agent") != "courier-test/0.1" {
		t.Fatalf("User-Agent = %q", receivedHeaders.Get("User-Agent"))
	}
	if receivedHeaders.Get(signature.HeaderName) != sig {
		t.Fatal("missing signature header")
	}
	if receivedHeaders.Get(delivery.HeaderDeliveryID) != "dlv_test" {
		t.Fatal("missing delivery id header")
	}
	if receivedHeaders.Get(delivery.HeaderAttempt) != "2" {
		t.Fatal("missing attempt header")
	}
}

func TestSenderClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome delivery.Outcome
		wantErr error
	}{
		{"200 json", 200, `{"id":1}`, delivery.OutcomeSuccess, nil},
		{"202 json array", 202, `[]`, delivery.OutcomeSuccess, nil},
		{"200 text", 200, "This is not JSON", delivery.OutcomeMalformedBody, delivery.ErrMalformedResponse},
		{"204 empty", 204, "", delivery.OutcomeMalformedBody, delivery.ErrMalformedResponse},
		{"422", 422, `{"error":"bad"}`, delivery.OutcomeHTTPError, delivery.ErrRemoteRejected},
		{"500 text", 500, "internal", delivery.OutcomeHTTPError, delivery.ErrRemoteRejected},
		{"301", 301, "", delivery.OutcomeHTTPError, delivery.ErrRemoteRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := srv.Client()
			client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
			sender := delivery.NewSender(client, 0, "")

			att := sender.Send(context.Background(), delivery.Request{URL: srv.URL, Body: []byte(`{}`), Attempt: 1})

			if att.Outcome != tt.outcome {
				t.Fatalf("outcome = %v, want %v (err %v)", att.Outcome, tt.outcome, att.Err)
			}
			if tt.wantErr == nil && att.Err != nil {
				t.Fatalf("unexpected error: %v", att.Err)
			}
			if tt.wantErr != nil && !errors.Is(att.Err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", att.Err, tt.wantErr)
			}
			if att.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", att.StatusCode, tt.status)
			}
		})
	}
}

func TestSenderConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	att := delivery.NewSender(nil, time.Second, "").Send(context.Background(), delivery.Request{URL: url, Body: []byte(`{}`), Attempt: 1})

	if att.Outcome != delivery.OutcomeNetworkError {
		t.Fatalf("outcome = %v, want network_error", att.Outcome)
	}
	if !errors.Is(att.Err, delivery.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", att.Err)
	}
	if att.StatusCode != 0 {
		t.Fatalf("status = %d, want 0", att.StatusCode)
	}
}

func TestSenderTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	att := delivery.NewSender(nil, 20*time.Millisecond, "").Send(context.Background(), delivery.Request{URL: srv.URL, Body: []byte(`{}`), Attempt: 1})

	if att.Outcome != delivery.OutcomeNetworkError {
		t.Fatalf("outcome = %v, want network_error", att.Outcome)
	}
}

func TestSenderTruncatesDiagnostics(t *testing.T) {
	long := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(long))
	}))
	defer srv.Close()

	att := delivery.NewSender(nil, time.Second, "").Send(context.Background(), delivery.Request{URL: srv.URL, Body: []byte(`{}`), Attempt: 1})

	if len(att.Response) > 256 {
		t.Fatalf("response kept %d bytes, want <= 256", len(att.Response))
	}
	if len(att.Err.Error()) > 400 {
		t.Fatalf("error message too long: %d bytes", len(att.Err.Error()))
	}
}

func TestSenderInvalidURL(t *testing.T) {
	att := delivery.NewSender(nil, time.Second, "").Send(context.Background(), delivery.Request{URL: "://bad", Attempt: 1})

	if att.Outcome != delivery.OutcomeNetworkError || att.Err == nil {
		t.Fatalf("expected network error for invalid URL, got %v", att.Outcome)
	}
}

func TestSenderLargeResponseBody(t *testing.T) {
	big := `{"items":["` + strings.Repeat("x", 2<<20) + `"],"ok":true}`
	tests := []struct {
		name    string
		body    string
		success bool
	}{
		{"large json", big, true},
		{"large non-json", strings.Repeat("<html>", 400_000), false},
		{"large json with trailing garbage", big + ` {"second":1}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			att := delivery.NewSender(nil, 10*time.Second, "").Send(context.Background(), delivery.Request{
				URL:  srv.URL,
				Body: []byte(`{}`),
			})
			if att.Succeeded() != tt.success {
				t.Fatalf("succeeded = %v, want %v (err %v)", att.Succeeded(), tt.success, att.Err)
			}
			if !tt.success && !errors.Is(att.Err, delivery.ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", att.Err)
			}
			if len(att.Response) > 300 {
				t.Fatalf("diagnostic not truncated: %d bytes", len(att.Response))
			}
		})
	}
}
