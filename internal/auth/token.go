// Package auth implements the shared-secret check applied to protected
// endpoints.
package auth

import "crypto/subtle"

// TokenAuthenticator compares a presented token with the configured secret.
// The secret is fixed at construction and safe for concurrent use.
type TokenAuthenticator struct {
	secret []byte
}

// NewTokenAuthenticator returns an authenticator for secret.
func NewTokenAuthenticator(secret string) *TokenAuthenticator {
	return &TokenAuthenticator{secret: []byte(secret)}
}

// Authenticate reports whether presented exactly matches the secret. An
// absent or empty token never matches.
func (a *TokenAuthenticator) Authenticate(presented string) bool {
	if presented == "" || len(a.secret) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), a.secret) == 1
}
