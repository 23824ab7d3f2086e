package hook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"github.com/dukerupert/bifrost/internal/domain"
)

// SignatureHeader carries the authority's payload signature.
const SignatureHeader = "X-Bolt-Hmac-Sha256"

// Authenticator verifies that a delivery originated from the authority.
type Authenticator interface {
	// Verify checks the signature over the raw payload bytes.
	Verify(payload []byte, signature string) error
}

// HMACAuthenticator verifies deliveries with the shared signing secret.
type HMACAuthenticator struct {
	secret []byte
}

// NewHMACAuthenticator creates an authenticator for the given signing secret.
func NewHMACAuthenticator(secret string) *HMACAuthenticator {
	return &HMACAuthenticator{secret: []byte(secret)}
}

// Verify computes base64(hmac-sha256(payload)) and compares it to the header
// value in constant time.
func (a *HMACAuthenticator) Verify(payload []byte, signature string) error {
	if signature == "" {
		return domain.Unauthorized("hook.verify", "missing signature header")
	}
	if len(a.secret) == 0 {
		return domain.Unauthorized("hook.verify", "signing secret not configured")
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return domain.Unauthorized("hook.verify", "invalid signature")
	}
	return nil
}
