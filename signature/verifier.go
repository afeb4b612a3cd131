package signature

import "crypto/hmac"

// Verify checks whether the given signature matches the expected HMAC-SHA256
// signature for the payload and secret.
func (s *Signer) Verify(payload []byte, secret, sig string) bool {
	return Verify(payload, secret, sig)
}

// Verify checks whether the given signature matches the expected HMAC-SHA256
// signature for the payload and secret.
func Verify(payload []byte, secret, sig string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}
