// Package crypto provides the L0 primitives the rest of Modulr is built on:
// key generation, signing, hashing, and the symmetric/asymmetric envelopes
// used for keystore encryption and peer-to-peer secrets.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// HashConcat hashes the concatenation of every part with no separator,
// matching the "H(a ‖ b ‖ c)" notation used throughout the protocol.
func HashConcat(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// HashConcatHex is HashConcat, hex-encoded.
func HashConcatHex(parts ...[]byte) string {
	return hex.EncodeToString(HashConcat(parts...))
}

// ZeroHash is the canonical all-zero 64-char hash, used as the genesis
// block's prev_hash and as skip_hash when a leader never produced a block.
const ZeroHash = "0000000000000000000000000000000000000000000000000000000000000000"

// IsZeroHash reports whether h is the canonical all-zero hash.
func IsZeroHash(h string) bool {
	if len(h) != 64 {
		return false
	}
	for _, c := range h {
		if c != '0' {
			return false
		}
	}
	return true
}
