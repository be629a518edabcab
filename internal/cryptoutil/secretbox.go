// Package cryptoutil encrypts Credential payloads at rest (spec §3
// Credentials: "encrypted at rest with a symmetric key derived from a
// process-wide secret") using NaCl secretbox from golang.org/x/crypto.
package cryptoutil

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

// KeySize is the secretbox key size in bytes.
const KeySize = 32

// Box encrypts/decrypts Credential payloads with a fixed 32-byte key derived
// from the process secret (config.EncryptionKeyB64).
type Box struct {
	key [KeySize]byte
}

// NewBox builds a Box from a 32-byte key.
func NewBox(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cryptoutil: key must be %d bytes, got %d", KeySize, len(key))
	}
	b := &Box{}
	copy(b.key[:], key)
	return b, nil
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (b *Box) Seal(plaintext []byte) (string, error) {
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("cryptoutil: generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &b.key)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (b *Box) Open(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: decode: %w", err)
	}
	if len(raw) < 24 {
		return nil, fmt.Errorf("cryptoutil: ciphertext too short")
	}
	var nonce [24]byte
	copy(nonce[:], raw[:24])
	plaintext, ok := secretbox.Open(nil, raw[24:], &nonce, &b.key)
	if !ok {
		return nil, fmt.Errorf("cryptoutil: decryption failed")
	}
	return plaintext, nil
}
