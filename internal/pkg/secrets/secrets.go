// Package secrets generates, hashes and masks API key secrets.
//
// Hashing is a keyed HMAC-SHA256 over an operator-held secret rather than a
// slow password hash: key secrets are high-entropy random tokens, so lookup
// speed matters more than brute-force resistance, while the keying stops
// anyone who reads the hash column from forging valid hashes.
package secrets

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
)

const (
	secretBytes = 16 // 32 hex chars

	maskKeep      = 5
	maskTail      = 4
	maskMinLength = maskKeep + maskTail + 1
)

type Codec struct {
	hashKey []byte
	prefix  string
}

func NewCodec(hashSecret, prefix string) *Codec {
	if prefix == "" {
		prefix = "sk"
	}
	return &Codec{hashKey: []byte(hashSecret), prefix: prefix}
}

// Generate produces a new plaintext key secret, e.g. "sk-3f2a...".
// The plaintext is returned to the caller exactly once at creation time
// and is never persisted.
func (c *Codec) Generate() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return c.prefix + "-" + hex.EncodeToString(buf), nil
}

// Hash returns the hex HMAC-SHA256 of the secret under the codec key.
// Deterministic, so it doubles as the lookup index for key resolution.
func (c *Codec) Hash(secret string) string {
	mac := hmac.New(sha256.New, c.hashKey)
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Mask returns a display-safe preview: the first 5 and last 4 characters
// around a redaction marker. Secrets of 9 characters or fewer are returned
// unchanged: too short to leak meaningfully, and slicing would overlap.
func Mask(secret string) string {
	if len(secret) < maskMinLength {
		return secret
	}
	return secret[:maskKeep] + "****" + secret[len(secret)-maskTail:]
}
