// Package vault provides authenticated encryption for connector
// credentials at rest. Blobs are opaque base64 strings handed to an
// external store by the caller; this package never persists anything.
package vault

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/goccy/go-json"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/junctionhq/junction/pkg/connector/core"
	cerrors "github.com/junctionhq/junction/pkg/errors"
)

// keySize is the ChaCha20-Poly1305 key length.
const keySize = chacha20poly1305.KeySize

// deriveKey pads or truncates the caller-supplied key material to the
// cipher's key length. This is not a key-derivation function: callers must
// supply sufficiently random key material.
func deriveKey(material string) []byte {
	key := make([]byte, keySize)
	copy(key, material)
	return key
}

// EncryptCredentials serializes and encrypts credentials with
// ChaCha20-Poly1305 under a fresh random nonce. The result is
// base64(nonce || ciphertext).
func EncryptCredentials(creds *core.Credentials, key string) (string, error) {
	if creds == nil {
		return "", cerrors.New(cerrors.CategoryData, "credentials are required")
	}

	plaintext, err := json.Marshal(creds)
	if err != nil {
		return "", cerrors.Wrap(err, cerrors.CategoryData, "failed to serialize credentials")
	}

	aead, err := chacha20poly1305.New(deriveKey(key))
	if err != nil {
		return "", cerrors.Wrap(err, cerrors.CategoryUnknown, "failed to initialize cipher")
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", cerrors.Wrap(err, cerrors.CategoryUnknown, "failed to generate nonce")
	}

	sealed := aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptCredentials decrypts a blob produced by EncryptCredentials. It
// fails closed: bad base64, truncated input, an authentication-tag
// mismatch (wrong key or tampered data), and malformed JSON all return an
// error.
func DecryptCredentials(blob string, key string) (*core.Credentials, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryData, "credential blob is not valid base64")
	}

	aead, err := chacha20poly1305.New(deriveKey(key))
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryUnknown, "failed to initialize cipher")
	}

	if len(raw) < aead.NonceSize() {
		return nil, cerrors.New(cerrors.CategoryData, "credential blob is truncated")
	}

	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryAuth, "credential decryption failed")
	}

	var creds core.Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return nil, cerrors.Wrap(err, cerrors.CategoryData, "decrypted credentials are malformed")
	}

	return &creds, nil
}
