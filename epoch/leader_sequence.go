package epoch

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveLeaderSequence computes the epoch's leader sequence as a keyed
// Fisher-Yates shuffle of pool (already sorted by the caller for
// determinism), driven by an HKDF-SHA256 keystream expanded from
// (epochHash, networkID, epochSeed). This is the canonical PRF mapping
// spec.md leaves to the implementer.
func DeriveLeaderSequence(epochHash, networkID string, epochSeed []byte, pool []string) ([]string, error) {
	if len(pool) == 0 {
		return nil, nil
	}

	secret := append([]byte(epochHash), []byte(networkID)...)
	kdf := hkdf.New(sha256.New, secret, epochSeed, []byte("modulr-leader-sequence"))

	shuffled := append([]string(nil), pool...)
	for i := len(shuffled) - 1; i > 0; i-- {
		j, err := randomIndex(kdf, i+1)
		if err != nil {
			return nil, fmt.Errorf("epoch: derive leader sequence: %w", err)
		}
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled, nil
}

// randomIndex draws a uniform value in [0, n) from the HKDF keystream
// using rejection sampling against a 4-byte big-endian draw, avoiding
// modulo bias.
func randomIndex(r io.Reader, n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("n must be positive")
	}
	limit := uint32(n)
	ceiling := (^uint32(0) / limit) * limit
	for {
		var buf [4]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, err
		}
		v := binary.BigEndian.Uint32(buf[:])
		if v < ceiling {
			return int(v % limit), nil
		}
	}
}
