// Package decrypt opens AES-256-GCM envelopes. The authentication tag is
// verified before any plaintext leaves this package.
package decrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/telhawk-systems/userrelay/internal/envelope"
	"github.com/telhawk-systems/userrelay/internal/secret"
)

// Kind classifies a decryption failure.
type Kind string

const (
	KindAuthenticationFailed Kind = "authentication_failed"
	KindCryptoFailure        Kind = "crypto_failure"
)

var (
	ErrAuthenticationFailed = errors.New("message authentication failed")
	ErrCryptoFailure        = errors.New("cryptographic failure")
)

// Error is returned by Open. Err carries the primitive's message for
// server-side diagnostics and must not be shown to end users.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "decrypt: " + string(e.Kind)
	}
	return fmt.Sprintf("decrypt: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrAuthenticationFailed:
		return e.Kind == KindAuthenticationFailed
	case ErrCryptoFailure:
		return e.Kind == KindCryptoFailure
	}
	return false
}

// Open decrypts d.Ciphertext with d.Key and d.IV and verifies d.AuthTag.
// The returned plaintext is valid UTF-8.
func Open(d *envelope.Decoded) (secret.Bytes, error) {
	if d == nil {
		return secret.Bytes{}, &Error{Kind: KindCryptoFailure, Err: errors.New("nil envelope")}
	}

	block, err := aes.NewCipher(d.Key.Reveal())
	if err != nil {
		return secret.Bytes{}, &Error{Kind: KindCryptoFailure, Err: fmt.Errorf("cipher init failed: %w", err)}
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return secret.Bytes{}, &Error{Kind: KindCryptoFailure, Err: fmt.Errorf("GCM init failed: %w", err)}
	}
	if d.IV.Len() != gcm.NonceSize() || d.AuthTag.Len() != gcm.Overhead() {
		return secret.Bytes{}, &Error{Kind: KindCryptoFailure, Err: errors.New("nonce or tag size mismatch")}
	}

	// GCM expects the tag appended to the ciphertext.
	sealed := make([]byte, 0, d.Ciphertext.Len()+d.AuthTag.Len())
	sealed = append(sealed, d.Ciphertext.Reveal()...)
	sealed = append(sealed, d.AuthTag.Reveal()...)

	plaintext, err := gcm.Open(nil, d.IV.Reveal(), sealed, nil)
	secret.Zero(sealed)
	if err != nil {
		return secret.Bytes{}, &Error{Kind: KindAuthenticationFailed, Err: err}
	}

	if !utf8.Valid(plaintext) {
		secret.Zero(plaintext)
		return secret.Bytes{}, &Error{Kind: KindCryptoFailure, Err: errors.New("plaintext is not valid UTF-8")}
	}

	return secret.NewBytes(plaintext), nil
}
