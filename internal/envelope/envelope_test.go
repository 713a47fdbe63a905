package envelope

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/userrelay/internal/secret"
)

func validEnvelope() Envelope {
	return Envelope{
		Ciphertext: secret.NewString("a1b2c3"),
		Key:        secret.NewString(strings.Repeat("11", KeySize)),
		IV:         secret.NewString(strings.Repeat("22", IVSize)),
		AuthTag:    secret.NewString(strings.Repeat("33", TagSize)),
	}
}

func TestDecode_Valid(t *testing.T) {
	d, err := Decode(validEnvelope())
	require.NoError(t, err)

	assert.Equal(t, []byte{0xa1, 0xb2, 0xc3}, d.Ciphertext.Reveal())
	assert.Equal(t, KeySize, d.Key.Len())
	assert.Equal(t, IVSize, d.IV.Len())
	assert.Equal(t, TagSize, d.AuthTag.Len())
}

func TestDecode_UppercaseHex(t *testing.T) {
	env := validEnvelope()
	env.Ciphertext = secret.NewString("A1B2C3")

	d, err := Decode(env)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa1, 0xb2, 0xc3}, d.Ciphertext.Reveal())
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Envelope)
		wantField string
		wantWhy   Reason
	}{
		{
			name:      "missing ciphertext",
			mutate:    func(e *Envelope) { e.Ciphertext = secret.String{} },
			wantField: FieldCiphertext,
			wantWhy:   ReasonMissing,
		},
		{
			name:      "non-hex iv",
			mutate:    func(e *Envelope) { e.IV = secret.NewString(strings.Repeat("zz", IVSize)) },
			wantField: FieldIV,
			wantWhy:   ReasonInvalidHex,
		},
		{
			name:      "odd-length auth tag",
			mutate:    func(e *Envelope) { e.AuthTag = secret.NewString("abc") },
			wantField: FieldAuthTag,
			wantWhy:   ReasonOddLength,
		},
		{
			name:      "short key",
			mutate:    func(e *Envelope) { e.Key = secret.NewString(strings.Repeat("11", 16)) },
			wantField: FieldKey,
			wantWhy:   ReasonInvalidLength,
		},
		{
			name:      "long iv",
			mutate:    func(e *Envelope) { e.IV = secret.NewString(strings.Repeat("22", 16)) },
			wantField: FieldIV,
			wantWhy:   ReasonInvalidLength,
		},
		{
			name:      "short auth tag",
			mutate:    func(e *Envelope) { e.AuthTag = secret.NewString(strings.Repeat("33", 12)) },
			wantField: FieldAuthTag,
			wantWhy:   ReasonInvalidLength,
		},
		{
			name: "first failing field wins",
			mutate: func(e *Envelope) {
				e.Key = secret.NewString("zz")
				e.AuthTag = secret.String{}
			},
			wantField: FieldKey,
			wantWhy:   ReasonInvalidHex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := validEnvelope()
			tt.mutate(&env)

			d, err := Decode(env)
			require.Error(t, err)
			assert.Nil(t, d)
			assert.True(t, errors.Is(err, ErrDecode))

			var de *DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, tt.wantField, de.Field)
			assert.Equal(t, tt.wantWhy, de.Reason)
		})
	}
}

func TestDecodeError_InvalidLengthMessage(t *testing.T) {
	env := validEnvelope()
	env.Key = secret.NewString(strings.Repeat("11", 31))

	_, err := Decode(env)
	require.Error(t, err)
	assert.Equal(t, "envelope field encription_key: invalid_length (got 31 bytes, want 32)", err.Error())
}

func TestDecodeError_DoesNotLeakValue(t *testing.T) {
	env := validEnvelope()
	env.IV = secret.NewString("not-hex-at-all!")

	_, err := Decode(env)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "not-hex")
}

func TestEnvelope_WithKey(t *testing.T) {
	env := validEnvelope()
	override := secret.NewString(strings.Repeat("44", KeySize))

	replaced := env.WithKey(override)
	assert.Equal(t, override.Reveal(), replaced.Key.Reveal())
	assert.Equal(t, strings.Repeat("11", KeySize), env.Key.Reveal(), "original is unchanged")
}

func TestEnvelope_Export(t *testing.T) {
	out := validEnvelope().Export()
	assert.Equal(t, "a1b2c3", out[FieldCiphertext])
	assert.Len(t, out, 4)
	_, err := hex.DecodeString(out[FieldAuthTag])
	assert.NoError(t, err)
}

func TestDecoded_Wipe(t *testing.T) {
	d, err := Decode(validEnvelope())
	require.NoError(t, err)

	key := d.Key.Reveal()
	d.Wipe()
	assert.Equal(t, make([]byte, KeySize), key)

	var nilDecoded *Decoded
	nilDecoded.Wipe()
}
