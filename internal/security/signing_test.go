package security

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	sig := SignData(priv, []byte("payload"))
	ok, err := VerifySignature(pub, []byte("payload"), sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifySignatureFromHex(hex.EncodeToString(pub), []byte("tampered"), sig)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifySignature(pub, []byte("payload"), "not-hex")
	assert.Error(t, err)
}

func TestSaveAndLoadKeyPair(t *testing.T) {
	pub, priv, err := GenerateKeyPair()
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "keys")
	pubPath, privPath, err := SaveKeyPairTo(dir, pub, priv)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, PublicKeyFile), pubPath)

	info, err := os.Stat(privPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loadedPriv, err := LoadPrivateKey(privPath)
	require.NoError(t, err)
	assert.Equal(t, priv, loadedPriv)

	loadedPub, err := LoadPublicKey(pubPath)
	require.NoError(t, err)
	assert.Equal(t, pub, loadedPub)
}

func TestLoadKeyRejectsWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.key")
	require.NoError(t, os.WriteFile(path, []byte("abcd\n"), 0o600))

	_, err := LoadPrivateKey(path)
	assert.ErrorIs(t, err, errKeySize)
	_, err = LoadPublicKey(path)
	assert.ErrorIs(t, err, errKeySize)
}
