package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCredentialEncryptor_EmptyKey(t *testing.T) {
	_, err := NewCredentialEncryptor("")
	assert.Error(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewCredentialEncryptor("test-key-for-credentials")
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("sk-live-abc123")
	require.NoError(t, err)
	assert.NotEqual(t, "sk-live-abc123", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-abc123", plaintext)
}

func TestEncrypt_UniqueNonce(t *testing.T) {
	enc, err := NewCredentialEncryptor("test-key-for-credentials")
	require.NoError(t, err)

	a, err := enc.Encrypt("same-input")
	require.NoError(t, err)
	b, err := enc.Encrypt("same-input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestEncryptDecrypt_EmptyPassthrough(t *testing.T) {
	enc, err := NewCredentialEncryptor("test-key-for-credentials")
	require.NoError(t, err)

	out, err := enc.Encrypt("")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = enc.Decrypt("")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	enc1, err := NewCredentialEncryptor("first-key")
	require.NoError(t, err)
	enc2, err := NewCredentialEncryptor("second-key")
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	assert.Error(t, err)
}

func TestDecrypt_InvalidInputs(t *testing.T) {
	enc, err := NewCredentialEncryptor("test-key-for-credentials")
	require.NoError(t, err)

	_, err = enc.Decrypt("not-base64!!!")
	assert.Error(t, err)

	_, err = enc.Decrypt("c2hvcnQ=") // valid base64, shorter than a nonce
	assert.Error(t, err)
}

func TestTokenHelpers(t *testing.T) {
	enc, err := NewCredentialEncryptor("test-key-for-credentials")
	require.NoError(t, err)

	tagged, err := enc.EncryptToken("sk-live-abc123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tagged, EncryptedPrefix))

	resolved, err := enc.DecryptToken(tagged)
	require.NoError(t, err)
	assert.Equal(t, "sk-live-abc123", resolved)

	// plaintext tokens pass through untouched
	resolved, err = enc.DecryptToken("plain-token")
	require.NoError(t, err)
	assert.Equal(t, "plain-token", resolved)
}
