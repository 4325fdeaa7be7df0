// Package crypto provides AES-256-GCM encryption and decryption for
// sensitive configuration data such as backend API tokens.
//
// The package uses AES-256-GCM (Galois/Counter Mode) which provides both
// confidentiality and authenticity. Each encryption operation uses a unique
// random nonce, so encrypting the same plaintext twice produces different
// ciphertexts.
//
// Backend credentials in the chains file may be stored encrypted with the
// "enc:" prefix; DecryptToken resolves them at load time.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"model-router/internal/common/errors"
)

// EncryptedPrefix marks a credential value as encrypted at rest
const EncryptedPrefix = "enc:"

// CredentialEncryptor handles encryption and decryption of sensitive
// configuration data using AES-256-GCM. It is safe for concurrent use.
type CredentialEncryptor struct {
	key []byte // 32-byte AES-256 key
}

// NewCredentialEncryptor creates an encryptor from the provided key string.
//
// The key is processed with PBKDF2 key derivation so any non-empty input
// yields a proper 32-byte AES-256 key. The key should come from the
// environment and never be hardcoded.
func NewCredentialEncryptor(key string) (*CredentialEncryptor, error) {
	if key == "" {
		return nil, errors.ValidationError("encryption key cannot be empty")
	}

	salt := []byte("model-router-salt") // static salt for deterministic derivation
	derivedKey := pbkdf2.Key([]byte(key), salt, 10000, 32, sha256.New)

	return &CredentialEncryptor{key: derivedKey}, nil
}

// Encrypt encrypts a plaintext string and returns the result base64-encoded.
// The random nonce is prepended to the ciphertext before encoding. Empty
// input passes through unchanged.
func (e *CredentialEncryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.InternalError("failed to create nonce", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. GCM authenticates the ciphertext, so a wrong
// key or tampered value fails with an error. Empty input passes through
// unchanged.
func (e *CredentialEncryptor) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", errors.InternalError("failed to decode ciphertext", err)
	}

	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", errors.InternalError("failed to create cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errors.InternalError("failed to create GCM", err)
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", errors.ValidationError("ciphertext too short")
	}

	nonce, ciphertextBytes := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertextBytes, nil)
	if err != nil {
		return "", errors.InternalError("failed to decrypt", err)
	}

	return string(plaintext), nil
}

// EncryptToken encrypts a credential and tags it with the "enc:" prefix
// for storage in the chains file.
func (e *CredentialEncryptor) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	encrypted, err := e.Encrypt(token)
	if err != nil {
		return "", err
	}
	return EncryptedPrefix + encrypted, nil
}

// DecryptToken resolves a credential value from the chains file. Values
// with the "enc:" prefix are decrypted; everything else is returned as-is
// so plaintext tokens keep working in development setups.
func (e *CredentialEncryptor) DecryptToken(token string) (string, error) {
	if !strings.HasPrefix(token, EncryptedPrefix) {
		return token, nil
	}
	return e.Decrypt(strings.TrimPrefix(token, EncryptedPrefix))
}
