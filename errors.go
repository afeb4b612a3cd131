package courier

import "errors"

// Sentinel errors returned by Client operations.
var (
	// ErrSecretRequired is returned when a delivery is attempted without a
	// signing secret.
	ErrSecretRequired = errors.New("courier: secret is required")

	// ErrInvalidEndpoint is returned when the ingestion URL is not an
	// absolute http or https URL.
	ErrInvalidEndpoint = errors.New("courier: invalid endpoint")

	// ErrInvalidMaxAttempts is returned when the attempt budget is below 1.
	ErrInvalidMaxAttempts = errors.New("courier: max attempts must be at least 1")

	// ErrInvalidDelay is returned when a delay or timeout is negative.
	ErrInvalidDelay = errors.New("courier: delays and timeouts must not be negative")

	// ErrNoDLQ is returned by DLQ operations when no store is configured.
	ErrNoDLQ = errors.New("courier: dead letter queue is not configured")

	// ErrAlreadyReplayed is returned when replaying an entry that was
	// already redelivered.
	ErrAlreadyReplayed = errors.New("courier: dlq entry already replayed")
)
