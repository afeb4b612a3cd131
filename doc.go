// Package courier signs commit-metadata payloads and delivers them to an
// ingestion endpoint with bounded retries.
//
// Courier is a library. The caller collects the payload; courier stamps it
// with the job duration in minutes, serializes it once, signs it with
// HMAC-SHA256 and POSTs it until the endpoint answers with a 2xx JSON body
// or the attempt budget runs out.
//
// Key features:
//   - X-Hub-Signature-256 signing compatible with GitHub-style verifiers
//   - Exponential backoff (1s, 2s, 4s, ...) with a configurable budget
//   - Optional JSON Schema validation before any network call
//   - Dead letter queue with memory and Redis stores, plus replay
//   - Prometheus metrics and OpenTelemetry spans per delivery
//
// Quick start:
//
//	c, err := courier.New(
//	    courier.WithEndpoint("https://ingest.example.com/v1/commits"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = c.Deliver(ctx, payload.Payload{
//	    Repo:    "courier",
//	    Owner:   "xraph",
//	    Commits: commits,
//	}, secret, jobStart)
package courier
