// Package sha256 provides the SHA-256 digest helpers used for archive
// content addressing and stable identifier derivation.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher implements pipeline digest needs using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	return Hex(data), nil
}

// Hex returns the hex-encoded SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
