// Package signature provides HMAC-SHA256 payload signing and verification.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HeaderName is the request header carrying the payload signature.
const HeaderName = "X-Hub-Signature-256"

// Prefix is prepended to every hex digest produced by Sign.
const Prefix = "sha256="

// Signer computes HMAC-SHA256 signatures for serialized payloads.
type Signer struct{}

// NewSigner returns a new Signer.
func NewSigner() *Signer {
	return &Signer{}
}

// Sign generates the HMAC-SHA256 signature for the given payload.
// Returns a signature in the format "sha256=<hex>".
func (s *Signer) Sign(payload []byte, secret string) string {
	return Sign(payload, secret)
}

// Sign generates the HMAC-SHA256 signature for the given payload.
// The digest covers the exact bytes passed in, so callers must sign the same
// slice they transmit. Returns a signature in the format "sha256=<hex>".
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return Prefix + hex.EncodeToString(mac.Sum(nil))
}
