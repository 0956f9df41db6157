package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveKey derives a 32-byte key from secret using HKDF-SHA256 with the
// given salt and info, e.g. a symmetric key for SealAESGCM/OpenAESGCM
// from a shared secret. epoch.DeriveLeaderSequence does not use it; it
// reads its own HKDF stream directly.
func DeriveKey(secret, salt, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
