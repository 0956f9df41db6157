package crypto

// Handler bundles the package's key, keystore, signing, encryption and
// key-derivation operations behind one interface for callers that want a single
// capability object. The consensus, network and wallet packages call the
// free functions directly and do not take a Handler.
type Handler interface {
	GenerateKeys() (PrivateKey, PublicKey, error)
	SerializePublicKey(pub PublicKey) string
	SaveKeys(path, password string, priv PrivateKey) error
	LoadPrivateKey(path, password string) (PrivateKey, error)
	LoadPublicKey(hexKey string) (PublicKey, error)
	Sign(priv PrivateKey, data []byte) string
	Verify(pub PublicKey, data []byte, sigHex string) error
	SymmetricEncrypt(key, plaintext []byte) ([]byte, error)
	SymmetricDecrypt(key, ciphertext []byte) ([]byte, error)
	GenerateBoxKeys() (BoxPrivateKey, BoxPublicKey, error)
	AsymmetricEncrypt(recipient BoxPublicKey, plaintext []byte) ([]byte, error)
	AsymmetricDecrypt(priv BoxPrivateKey, ciphertext []byte) ([]byte, error)
	DeriveSymmetricKey(secret, salt, info []byte) ([]byte, error)
}

// Ed25519Handler is the package's concrete Handler. It is a thin
// adapter: the heavy lifting lives in keys.go, signature.go,
// symmetric.go and box.go so those pieces stay independently testable.
type Ed25519Handler struct{}

// NewHandler returns the standard ed25519/AES-GCM/X25519 Handler.
func NewHandler() Handler { return Ed25519Handler{} }

func (Ed25519Handler) GenerateKeys() (PrivateKey, PublicKey, error) { return GenerateKeyPair() }

func (Ed25519Handler) SerializePublicKey(pub PublicKey) string { return pub.Hex() }

func (Ed25519Handler) SaveKeys(path, password string, priv PrivateKey) error {
	return SaveKeystore(path, password, priv)
}

func (Ed25519Handler) LoadPrivateKey(path, password string) (PrivateKey, error) {
	return LoadKeystore(path, password)
}

func (Ed25519Handler) LoadPublicKey(hexKey string) (PublicKey, error) {
	return PubKeyFromHex(hexKey)
}

func (Ed25519Handler) Sign(priv PrivateKey, data []byte) string { return Sign(priv, data) }

func (Ed25519Handler) Verify(pub PublicKey, data []byte, sigHex string) error {
	return Verify(pub, data, sigHex)
}

func (Ed25519Handler) SymmetricEncrypt(key, plaintext []byte) ([]byte, error) {
	return SealAESGCM(key, plaintext)
}

func (Ed25519Handler) SymmetricDecrypt(key, ciphertext []byte) ([]byte, error) {
	return OpenAESGCM(key, ciphertext)
}

func (Ed25519Handler) GenerateBoxKeys() (BoxPrivateKey, BoxPublicKey, error) {
	return GenerateBoxKeyPair()
}

func (Ed25519Handler) AsymmetricEncrypt(recipient BoxPublicKey, plaintext []byte) ([]byte, error) {
	return SealBox(recipient, plaintext)
}

func (Ed25519Handler) AsymmetricDecrypt(priv BoxPrivateKey, ciphertext []byte) ([]byte, error) {
	return OpenBox(priv, ciphertext)
}

func (Ed25519Handler) DeriveSymmetricKey(secret, salt, info []byte) ([]byte, error) {
	return DeriveKey(secret, salt, info)
}
