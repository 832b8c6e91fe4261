// Package signature verifies the HMAC signatures GitHub attaches to webhook
// deliveries in the X-Hub-Signature-256 header.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Header is the HTTP header that carries the signature.
const Header = "X-Hub-Signature-256"

const prefix = "sha256="

// Sign returns the X-Hub-Signature-256 header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)

	return prefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether claimedSignature is the signature of rawBody
// computed with secret.
// rawBody must be the unmodified request body as received, a re-encoded
// JSON document does not produce the same digest.
func Verify(secret, rawBody []byte, claimedSignature string) bool {
	if claimedSignature == "" {
		return false
	}

	expected := Sign(secret, rawBody)
	// subtle.ConstantTimeCompare returns 0 for different lengths too, the
	// explicit check keeps the compare on equal-length input only.
	if len(claimedSignature) != len(expected) {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(expected), []byte(claimedSignature)) == 1
}
