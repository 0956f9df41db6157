package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"

	"golang.org/x/crypto/pbkdf2"
)

type keystoreFile struct {
	PubKey     string `json:"pub_key"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	CipherText string `json:"cipher_text"`
}

// SaveKeystore encrypts priv with password and writes it to path as JSON.
// Key derivation is PBKDF2-HMAC-SHA256 over (password, salt); the plaintext
// is sealed with AES-256-GCM via SealAESGCM.
func SaveKeystore(path, password string, priv PrivateKey) error {
	salt, err := randomBytes(16)
	if err != nil {
		return err
	}
	key := pbkdf2Key(password, salt)

	sealed, err := SealAESGCM(key, priv)
	if err != nil {
		return err
	}
	// SealAESGCM prefixes the nonce; split it back out for storage parity
	// with the teacher keystore's explicit nonce field.
	nonceSize := 12
	if len(sealed) < nonceSize {
		return errors.New("sealed keystore payload too short")
	}
	nonce := sealed[:nonceSize]
	cipherText := sealed[nonceSize:]

	ks := keystoreFile{
		PubKey:     priv.Public().Hex(),
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		CipherText: hex.EncodeToString(cipherText),
	}
	data, err := json.MarshalIndent(ks, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// LoadKeystore decrypts the keystore at path using password.
func LoadKeystore(path, password string) (PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ks keystoreFile
	if err := json.Unmarshal(data, &ks); err != nil {
		return nil, err
	}
	salt, err := hex.DecodeString(ks.Salt)
	if err != nil {
		return nil, err
	}
	nonce, err := hex.DecodeString(ks.Nonce)
	if err != nil {
		return nil, err
	}
	cipherText, err := hex.DecodeString(ks.CipherText)
	if err != nil {
		return nil, err
	}

	key := pbkdf2Key(password, salt)
	priv, err := OpenAESGCM(key, append(nonce, cipherText...))
	if err != nil {
		return nil, errors.New("wrong password or corrupted keystore")
	}
	return PrivateKey(priv), nil
}

func pbkdf2Key(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, 210_000, 32, sha256.New)
}
