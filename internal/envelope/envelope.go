// Package envelope decodes the hex-encoded AES-256-GCM envelope delivered by
// the upstream source into binary buffers of the expected sizes.
package envelope

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/telhawk-systems/userrelay/internal/secret"
)

// Sizes in bytes after hex decoding.
const (
	KeySize = 32
	IVSize  = 12
	TagSize = 16
)

// Field names as they appear on the wire.
const (
	FieldCiphertext = "encrypted"
	FieldKey        = "encription_key"
	FieldIV         = "iv"
	FieldAuthTag    = "authTag"
)

// Reason describes why a field failed to decode.
type Reason string

const (
	ReasonMissing       Reason = "missing"
	ReasonInvalidHex    Reason = "invalid_hex"
	ReasonOddLength     Reason = "odd_length"
	ReasonInvalidLength Reason = "invalid_length"
)

// ErrDecode matches every *DecodeError with errors.Is.
var ErrDecode = errors.New("envelope decode failed")

// DecodeError identifies the envelope field that could not be decoded.
type DecodeError struct {
	Field  string
	Reason Reason
	// Got and Want are set for ReasonInvalidLength.
	Got  int
	Want int
}

func (e *DecodeError) Error() string {
	if e.Reason == ReasonInvalidLength {
		return fmt.Sprintf("envelope field %s: %s (got %d bytes, want %d)", e.Field, e.Reason, e.Got, e.Want)
	}
	return fmt.Sprintf("envelope field %s: %s", e.Field, e.Reason)
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// Envelope is the wire form of one encrypted payload. The json tags follow
// the upstream producer, including its spelling of the key field.
type Envelope struct {
	Ciphertext secret.String `json:"encrypted"`
	Key        secret.String `json:"encription_key"`
	IV         secret.String `json:"iv"`
	AuthTag    secret.String `json:"authTag"`
}

// WithKey returns a copy of e using the given hex key.
func (e Envelope) WithKey(hexKey secret.String) Envelope {
	e.Key = hexKey
	return e
}

// Export returns the wire fields as plain strings. It exists for tooling
// that must hand an envelope to another party; servers never call it.
func (e Envelope) Export() map[string]string {
	return map[string]string{
		FieldCiphertext: e.Ciphertext.Reveal(),
		FieldKey:        e.Key.Reveal(),
		FieldIV:         e.IV.Reveal(),
		FieldAuthTag:    e.AuthTag.Reveal(),
	}
}

// Decoded holds the binary envelope, validated for length.
type Decoded struct {
	Ciphertext secret.Bytes
	Key        secret.Bytes
	IV         secret.Bytes
	AuthTag    secret.Bytes
}

// Wipe zeroes every buffer.
func (d *Decoded) Wipe() {
	if d == nil {
		return
	}
	d.Ciphertext.Wipe()
	d.Key.Wipe()
	d.IV.Wipe()
	d.AuthTag.Wipe()
}

// Decode converts all four fields from hex and checks the fixed sizes.
// Fields are checked in the order ciphertext, key, iv, authTag and the first
// failure is returned.
func Decode(env Envelope) (*Decoded, error) {
	ct, err := decodeField(FieldCiphertext, env.Ciphertext)
	if err != nil {
		return nil, err
	}
	key, err := decodeField(FieldKey, env.Key)
	if err != nil {
		return nil, err
	}
	iv, err := decodeField(FieldIV, env.IV)
	if err != nil {
		return nil, err
	}
	tag, err := decodeField(FieldAuthTag, env.AuthTag)
	if err != nil {
		return nil, err
	}

	d := &Decoded{
		Ciphertext: secret.NewBytes(ct),
		Key:        secret.NewBytes(key),
		IV:         secret.NewBytes(iv),
		AuthTag:    secret.NewBytes(tag),
	}

	for _, check := range []struct {
		field string
		got   int
		want  int
	}{
		{FieldKey, len(key), KeySize},
		{FieldIV, len(iv), IVSize},
		{FieldAuthTag, len(tag), TagSize},
	} {
		if check.got != check.want {
			d.Wipe()
			return nil, &DecodeError{Field: check.field, Reason: ReasonInvalidLength, Got: check.got, Want: check.want}
		}
	}

	return d, nil
}

func decodeField(field string, value secret.String) ([]byte, error) {
	if value.IsZero() {
		return nil, &DecodeError{Field: field, Reason: ReasonMissing}
	}
	b, err := hex.DecodeString(value.Reveal())
	if err != nil {
		var invalid hex.InvalidByteError
		if errors.As(err, &invalid) {
			return nil, &DecodeError{Field: field, Reason: ReasonInvalidHex}
		}
		if errors.Is(err, hex.ErrLength) {
			return nil, &DecodeError{Field: field, Reason: ReasonOddLength}
		}
		return nil, &DecodeError{Field: field, Reason: ReasonInvalidHex}
	}
	return b, nil
}
