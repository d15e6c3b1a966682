// Package auth provides API key verification helpers.
package auth

import (
	"crypto/hmac"
	"os"
)

// Verifier validates the X-API-KEY request header.
// Modes: dev (no key configured, every request passes) and key.
type Verifier struct {
	Mode string
	key  []byte
}

// New builds a Verifier for the given shared key. An empty key selects
// dev mode, matching the no-validation behavior used for local runs.
func New(key string) *Verifier {
	if key == "" {
		return &Verifier{Mode: "dev"}
	}
	return &Verifier{Mode: "key", key: []byte(key)}
}

func NewVerifierFromEnv() *Verifier {
	return New(os.Getenv("API_KEY"))
}

// Allow reports whether the provided header value is acceptable.
func (v *Verifier) Allow(provided string) bool {
	if v.Mode == "dev" {
		return true
	}
	return hmac.Equal(v.key, []byte(provided))
}
