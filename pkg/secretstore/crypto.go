// Package secretstore provides authenticated encryption of individual
// field values and a platform-native master-key provider.
//
// Grounded line-for-line on original_source's
// crates/mcpmux-storage/src/crypto.rs: AES-256-GCM, 12-byte random nonce
// per value, ciphertext = hex(nonce || ct || tag). The Rust original uses
// the `ring` crate; no pack example ships a Go AEAD convenience wrapper, so
// this uses stdlib crypto/aes + crypto/cipher directly (see DESIGN.md's
// standard-library justifications).
package secretstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/mcpmux/mcpmux/pkg/apperr"
)

// KeySize is the required master key length (256 bits).
const KeySize = 32

const nonceSize = 12

// FieldEncryptor encrypts and decrypts individual field values with a
// fixed master key.
type FieldEncryptor struct {
	aead cipher.AEAD
}

// NewFieldEncryptor builds an encryptor from a 32-byte master key.
func NewFieldEncryptor(masterKey [KeySize]byte) (*FieldEncryptor, error) {
	block, err := aes.NewCipher(masterKey[:])
	if err != nil {
		return nil, fmt.Errorf("secretstore: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretstore: create GCM: %w", err)
	}
	return &FieldEncryptor{aead: aead}, nil
}

// Encrypt returns hex(nonce || ciphertext || tag) for plaintext.
func (e *FieldEncryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretstore: generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), nil)
	out := append(nonce, sealed...)
	return hex.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Decryption with the wrong key, or corrupted
// input, fails with apperr.DecryptionFailed.
func (e *FieldEncryptor) Decrypt(ciphertextHex string) (string, error) {
	raw, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", apperr.New(apperr.DecryptionFailed, "invalid hex encoding", err)
	}
	if len(raw) < nonceSize+e.aead.Overhead() {
		return "", apperr.New(apperr.DecryptionFailed, "ciphertext too short", nil)
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", apperr.New(apperr.DecryptionFailed, "decryption failed: wrong key or corrupted data", err)
	}
	return string(plaintext), nil
}

// GenerateMasterKey returns a new random 32-byte key.
func GenerateMasterKey() ([KeySize]byte, error) {
	var key [KeySize]byte
	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return key, fmt.Errorf("secretstore: generate master key: %w", err)
	}
	return key, nil
}
