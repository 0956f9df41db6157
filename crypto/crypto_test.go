package crypto

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyGenAndAddress(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Len(t, pub.Hex(), 64)
	require.Len(t, pub.Address(), 40)
	require.Equal(t, pub.Hex(), priv.Public().Hex())
}

func TestSignVerify(t *testing.T) {
	priv, pub, err := GenerateKeyPair()
	require.NoError(t, err)

	data := []byte("epoch:3|leader:abc")
	sig := Sign(priv, data)
	require.NoError(t, Verify(pub, data, sig))
	require.Error(t, Verify(pub, []byte("tampered"), sig))
}

func TestHashConcatMatchesSeparateHash(t *testing.T) {
	a, b := []byte("left"), []byte("right")
	require.Equal(t, HashConcat(a, b), HashBytes(append(append([]byte{}, a...), b...)))
}

func TestZeroHash(t *testing.T) {
	require.True(t, IsZeroHash(ZeroHash))
	require.False(t, IsZeroHash("deadbeef"))
	require.Len(t, ZeroHash, 64)
}

func TestKeystoreRoundTrip(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "node.keystore")
	require.NoError(t, SaveKeystore(path, "correct horse", priv))

	loaded, err := LoadKeystore(path, "correct horse")
	require.NoError(t, err)
	require.Equal(t, priv.Hex(), loaded.Hex())

	_, err = LoadKeystore(path, "wrong password")
	require.Error(t, err)
}

func TestKeystoreFilePermissions(t *testing.T) {
	priv, _, err := GenerateKeyPair()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "node.keystore")
	require.NoError(t, SaveKeystore(path, "pw", priv))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSymmetricSealOpenRoundTrip(t *testing.T) {
	key, err := DeriveKey([]byte("shared-secret"), []byte("salt"), []byte("modulr-test"))
	require.NoError(t, err)

	plaintext := []byte("job_id=17;result=accepted")
	sealed, err := SealAESGCM(key, plaintext)
	require.NoError(t, err)

	opened, err := OpenAESGCM(key, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestBoxSealOpenRoundTrip(t *testing.T) {
	priv, pub, err := GenerateBoxKeyPair()
	require.NoError(t, err)

	plaintext := []byte("delayed tx batch payload")
	sealed, err := SealBox(pub, plaintext)
	require.NoError(t, err)

	opened, err := OpenBox(priv, sealed)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestHandlerRoundTrip(t *testing.T) {
	h := NewHandler()
	priv, pub, err := h.GenerateKeys()
	require.NoError(t, err)

	sig := h.Sign(priv, []byte("payload"))
	require.NoError(t, h.Verify(pub, []byte("payload"), sig))

	key, err := h.DeriveSymmetricKey([]byte("secret"), []byte("salt"), []byte("info"))
	require.NoError(t, err)
	sealed, err := h.SymmetricEncrypt(key, []byte("msg"))
	require.NoError(t, err)
	opened, err := h.SymmetricDecrypt(key, sealed)
	require.NoError(t, err)
	require.Equal(t, []byte("msg"), opened)
}
