// Package secret provides wrapper types for sensitive material (key bytes,
// nonces, decrypted payloads). The wrapped value can only be read through
// Reveal; every formatting, logging and serialization path renders a
// placeholder instead of the contents.
package secret

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
)

// Redacted is the placeholder rendered in place of sensitive values.
const Redacted = "[REDACTED]"

// Bytes holds sensitive binary material.
type Bytes struct {
	b []byte
}

// NewBytes wraps b. The caller must not retain b.
func NewBytes(b []byte) Bytes {
	return Bytes{b: b}
}

// Reveal returns the underlying bytes.
func (s Bytes) Reveal() []byte {
	return s.b
}

// Len returns the length of the wrapped value. It is safe to log.
func (s Bytes) Len() int {
	return len(s.b)
}

// IsZero reports whether nothing is wrapped.
func (s Bytes) IsZero() bool {
	return len(s.b) == 0
}

// Wipe overwrites the wrapped bytes with zeros.
func (s Bytes) Wipe() {
	Zero(s.b)
}

func (s Bytes) String() string   { return Redacted }
func (s Bytes) GoString() string { return Redacted }

// Format renders the placeholder for every verb, including %x and %q.
func (s Bytes) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(Redacted))
}

// LogValue implements slog.LogValuer.
func (s Bytes) LogValue() slog.Value {
	return slog.StringValue(Redacted)
}

func (s Bytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

func (s Bytes) MarshalText() ([]byte, error) {
	return []byte(Redacted), nil
}

// String holds sensitive text such as a hex-encoded key. Unlike Bytes it can
// be decoded from JSON, so wire structs can carry it directly.
type String struct {
	s string
}

// NewString wraps s.
func NewString(s string) String {
	return String{s: s}
}

// Reveal returns the underlying text.
func (s String) Reveal() string {
	return s.s
}

// Len returns the length of the wrapped text.
func (s String) Len() int {
	return len(s.s)
}

// IsZero reports whether the wrapped text is empty.
func (s String) IsZero() bool {
	return s.s == ""
}

func (s String) String() string   { return Redacted }
func (s String) GoString() string { return Redacted }

func (s String) Format(f fmt.State, _ rune) {
	_, _ = f.Write([]byte(Redacted))
}

func (s String) LogValue() slog.Value {
	return slog.StringValue(Redacted)
}

func (s String) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

func (s String) MarshalText() ([]byte, error) {
	return []byte(Redacted), nil
}

// UnmarshalText accepts the raw wire value.
func (s *String) UnmarshalText(text []byte) error {
	s.s = string(text)
	return nil
}

// Zero overwrites b with zeros in a constant-time friendly way.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	zero := make([]byte, len(b))
	subtle.ConstantTimeCopy(1, b, zero)
}
