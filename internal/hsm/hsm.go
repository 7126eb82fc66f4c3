// Package hsm stands in for the PKCS#11 hardware layer. Fingerprints and
// signatures are mock values with the right shapes; swapping in a real HSM
// keeps the same surface.
package hsm

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// fingerprintLen is the hex length of a key fingerprint.
const fingerprintLen = 40

// GenerateFingerprint returns a new key fingerprint. In production this value
// comes back from the HSM after key generation.
func GenerateFingerprint() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read entropy: %w", err)
	}
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])[:fingerprintLen], nil
}

// Sign produces a mock signature over data bound to the key's fingerprint.
func Sign(data []byte, fingerprint string) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte(fingerprint))
	return hex.EncodeToString(h.Sum(nil))
}

// Verify checks a signature produced by Sign.
func Verify(data []byte, fingerprint, signature string) bool {
	expected := Sign(data, fingerprint)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}
