// Package wallet manages a single node's identity key: the ed25519
// key pair a partner or validator uses to sign blocks, votes, and the
// transactions it submits about itself. Modulr has no account-transfer
// transactions and no multi-key wallets, so this package is narrower
// than a general-purpose chain wallet: it is identity management, not
// a transaction builder.
package wallet

import "github.com/undchain/modulr/crypto"

// Identity holds a node's key pair.
type Identity struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New wraps an existing private key as an Identity.
func New(priv crypto.PrivateKey) *Identity {
	return &Identity{priv: priv, pub: priv.Public()}
}

// Generate creates an Identity with a freshly generated key pair.
func Generate() (*Identity, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// Load decrypts the identity keystore at path using password.
func Load(path, password string) (*Identity, error) {
	priv, err := crypto.LoadKeystore(path, password)
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// Save encrypts the identity's private key and writes it to path.
func (id *Identity) Save(path, password string) error {
	return crypto.SaveKeystore(path, password, id.priv)
}

// PrivKey returns the raw private key (handle with care).
func (id *Identity) PrivKey() crypto.PrivateKey {
	return id.priv
}

// PubKeyHex returns the hex-encoded ed25519 public key, the identifier
// used as pool member, quorum member, and partner address throughout
// the protocol.
func (id *Identity) PubKeyHex() string {
	return id.pub.Hex()
}

// Address returns the short human-readable address derived from the
// public key.
func (id *Identity) Address() string {
	return id.pub.Address()
}
