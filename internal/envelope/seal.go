package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/telhawk-systems/userrelay/internal/secret"
)

// NewKey returns a fresh random 32-byte key.
func NewKey() (secret.Bytes, error) {
	return random(KeySize)
}

// NewIV returns a fresh random 12-byte nonce. A nonce must never be reused
// with the same key.
func NewIV() (secret.Bytes, error) {
	return random(IVSize)
}

func random(n int) (secret.Bytes, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return secret.Bytes{}, fmt.Errorf("read random bytes: %w", err)
	}
	return secret.NewBytes(b), nil
}

// Seal encrypts plaintext under AES-256-GCM and returns the hex envelope the
// upstream producer would emit, with the tag split from the ciphertext.
func Seal(plaintext []byte, key, iv secret.Bytes) (Envelope, error) {
	if key.Len() != KeySize {
		return Envelope{}, &DecodeError{Field: FieldKey, Reason: ReasonInvalidLength, Got: key.Len(), Want: KeySize}
	}
	if iv.Len() != IVSize {
		return Envelope{}, &DecodeError{Field: FieldIV, Reason: ReasonInvalidLength, Got: iv.Len(), Want: IVSize}
	}

	block, err := aes.NewCipher(key.Reveal())
	if err != nil {
		return Envelope{}, fmt.Errorf("cipher init failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return Envelope{}, fmt.Errorf("GCM init failed: %w", err)
	}

	sealed := gcm.Seal(nil, iv.Reveal(), plaintext, nil)
	split := len(sealed) - gcm.Overhead()

	return Envelope{
		Ciphertext: secret.NewString(hex.EncodeToString(sealed[:split])),
		Key:        secret.NewString(hex.EncodeToString(key.Reveal())),
		IV:         secret.NewString(hex.EncodeToString(iv.Reveal())),
		AuthTag:    secret.NewString(hex.EncodeToString(sealed[split:])),
	}, nil
}
