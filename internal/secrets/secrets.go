// Package secrets seals small values such as API credentials at rest.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	KeySize = 32
	// DerivationRounds is the PBKDF2 iteration count for passphrase keys.
	DerivationRounds = 210000
)

var (
	newGCM     = cipher.NewGCM
	randReader io.Reader = rand.Reader

	ErrKeyRequired  = errors.New("VAULT_KEY or VAULT_PASSPHRASE is required")
	ErrKeyMalformed = errors.New("VAULT_KEY must be 32 bytes or base64-encoded 32 bytes")
	ErrSealed       = errors.New("invalid sealed secret")
)

// ParseKey accepts a raw 32 byte key or its base64 form.
func ParseKey(raw string) ([]byte, error) {
	switch {
	case raw == "":
		return nil, ErrKeyRequired
	case len(raw) == KeySize:
		return []byte(raw), nil
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(decoded) != KeySize {
		return nil, ErrKeyMalformed
	}
	return decoded, nil
}

// DeriveKey stretches a passphrase into a cipher key. The salt should be
// stable per installation so existing ciphertexts stay readable.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrKeyRequired
	}
	return pbkdf2.Key([]byte(passphrase), salt, DerivationRounds, KeySize, sha256.New), nil
}

// Box seals and opens values bound to a purpose label. A value sealed for one
// purpose does not open under another.
type Box struct {
	aead    cipher.AEAD
	purpose []byte
}

func NewBox(key []byte, purpose string) (*Box, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := newGCM(block)
	if err != nil {
		return nil, err
	}
	return &Box{aead: aead, purpose: []byte(purpose)}, nil
}

// Seal returns base64(nonce || ciphertext).
func (b *Box) Seal(plaintext string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(randReader, nonce); err != nil {
		return "", err
	}
	sealed := b.aead.Seal(nonce, nonce, []byte(plaintext), b.purpose)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (b *Box) Open(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	size := b.aead.NonceSize()
	if len(data) < size {
		return "", ErrSealed
	}
	plain, err := b.aead.Open(nil, data[:size], data[size:], b.purpose)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Hint exposes only the last four characters of a secret.
func Hint(secret string) string {
	runes := []rune(secret)
	if len(runes) <= 4 {
		return "****"
	}
	return "****" + string(runes[len(runes)-4:])
}

// ResolveKey prefers an explicit key and falls back to deriving one from
// passphrase.
func ResolveKey(rawKey, passphrase, salt string) ([]byte, error) {
	if rawKey != "" {
		return ParseKey(rawKey)
	}
	return DeriveKey(passphrase, []byte(salt))
}
