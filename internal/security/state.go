package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// StateSigner binds an OAuth state value to a nonce kept in a cookie.
// The state sent to the provider is "nonce.hmac(nonce)", so the callback needs no server-side storage.
type StateSigner struct {
	secret []byte
}

// NewStateSigner creates a signer keyed by secret
func NewStateSigner(secret string) *StateSigner {
	return &StateSigner{secret: []byte(secret)}
}

// Sign returns the state parameter for nonce
func (s *StateSigner) Sign(nonce string) (string, error) {
	if nonce == "" {
		return "", fmt.Errorf("nonce is required")
	}
	return nonce + "." + s.mac(nonce), nil
}

// Verify reports whether state was produced by Sign for the given nonce
func (s *StateSigner) Verify(nonce, state string) bool {
	if nonce == "" || state == "" {
		return false
	}
	gotNonce, sig, ok := strings.Cut(state, ".")
	if !ok || gotNonce != nonce {
		return false
	}
	return hmac.Equal([]byte(s.mac(nonce)), []byte(sig))
}

func (s *StateSigner) mac(nonce string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}
