package crypto

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// BoxPublicKey and BoxPrivateKey are X25519 keys used only for asymmetric
// encryption. They are deliberately a separate keypair from the ed25519
// identity key: there is no safe, review-friendly way to reuse a signing
// key for encryption, so a node that needs to receive encrypted payloads
// (e.g. a delayed transaction batch addressed to a specific validator)
// generates and publishes a box key alongside its identity key.
type (
	BoxPublicKey  = [32]byte
	BoxPrivateKey = [32]byte
)

// GenerateBoxKeyPair generates a new X25519 keypair for SealBox/OpenBox.
func GenerateBoxKeyPair() (BoxPrivateKey, BoxPublicKey, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return BoxPrivateKey{}, BoxPublicKey{}, err
	}
	return *priv, *pub, nil
}

// SealBox encrypts plaintext to recipient using an anonymous sealed box:
// an ephemeral X25519 keypair is generated per call and its public half is
// prepended to the ciphertext, so the recipient needs only their own
// private key to decrypt.
func SealBox(recipient BoxPublicKey, plaintext []byte) ([]byte, error) {
	return box.SealAnonymous(nil, plaintext, &recipient, rand.Reader)
}

// OpenBox reverses SealBox.
func OpenBox(priv BoxPrivateKey, ciphertext []byte) ([]byte, error) {
	var pub BoxPublicKey
	curve25519.ScalarBaseMult(&pub, &priv)
	out, ok := box.OpenAnonymous(nil, ciphertext, &pub, &priv)
	if !ok {
		return nil, fmt.Errorf("box: decryption failed")
	}
	return out, nil
}
