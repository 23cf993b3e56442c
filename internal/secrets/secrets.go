// Package secrets encrypts credentials at rest with AES-256-GCM. The cipher
// key comes from VAANI_ENCRYPTION_KEY: either 32 raw bytes or 64 hex
// characters.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

const keySize = 32

// ErrInvalidCiphertext is returned when a sealed value cannot be
// authenticated or is structurally malformed.
var ErrInvalidCiphertext = errors.New("secrets: invalid ciphertext")

// Box seals and opens secrets with a fixed symmetric key.
type Box struct {
	aead cipher.AEAD
}

// New builds a Box from the configured key material.
func New(key string) (*Box, error) {
	raw, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("secrets: init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: init gcm: %w", err)
	}
	return &Box{aead: aead}, nil
}

func decodeKey(key string) ([]byte, error) {
	switch len(key) {
	case keySize:
		return []byte(key), nil
	case 2 * keySize:
		raw, err := hex.DecodeString(key)
		if err != nil {
			return nil, fmt.Errorf("secrets: decode hex key: %w", err)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("secrets: key must be %d raw bytes or %d hex characters, got %d",
			keySize, 2*keySize, len(key))
	}
}

// Seal encrypts plaintext and returns a base64 string carrying nonce and
// ciphertext. Each call produces a fresh nonce.
func (b *Box) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (b *Box) Open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	ns := b.aead.NonceSize()
	if len(raw) < ns {
		return "", ErrInvalidCiphertext
	}
	plain, err := b.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	return string(plain), nil
}
