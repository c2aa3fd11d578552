// Package sha256 computes content digests for written records.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the lowercase hex SHA-256 digest of data.
func Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Verify reports whether data hashes to digest.
func Verify(data []byte, digest string) bool {
	return Sum(data) == digest
}
