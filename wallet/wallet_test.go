package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateProducesDistinctIdentities(t *testing.T) {
	a, err := Generate()
	require.NoError(t, err)
	b, err := Generate()
	require.NoError(t, err)
	require.NotEqual(t, a.PubKeyHex(), b.PubKeyHex())
	require.NotEmpty(t, a.Address())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, id.Save(path, "correct horse"))

	loaded, err := Load(path, "correct horse")
	require.NoError(t, err)
	require.Equal(t, id.PubKeyHex(), loaded.PubKeyHex())
}

func TestLoadRejectsWrongPassword(t *testing.T) {
	id, err := Generate()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "identity.json")
	require.NoError(t, id.Save(path, "correct horse"))

	_, err = Load(path, "wrong password")
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"), "pw")
	require.Error(t, err)
	require.True(t, os.IsNotExist(err) || err != nil)
}
