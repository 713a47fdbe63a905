package envelope

import (
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/telhawk-systems/userrelay/internal/secret"
)

// SaltSize is the length of the salt accepted by DeriveKey.
const SaltSize = 16

// Argon2id parameters for passphrase-derived keys.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// NewSalt returns a fresh random salt for DeriveKey.
func NewSalt() ([]byte, error) {
	s, err := random(SaltSize)
	if err != nil {
		return nil, err
	}
	return s.Reveal(), nil
}

// DeriveKey stretches a passphrase into a 32-byte AES key with Argon2id.
// Only operator tooling uses it; the relay receives raw keys.
func DeriveKey(passphrase string, salt []byte) (secret.Bytes, error) {
	if passphrase == "" {
		return secret.Bytes{}, fmt.Errorf("empty passphrase")
	}
	if len(salt) != SaltSize {
		return secret.Bytes{}, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return secret.NewBytes(argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)), nil
}
