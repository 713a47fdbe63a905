// Package payload parses decrypted plaintext into a JSON document.
package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/telhawk-systems/userrelay/internal/secret"
)

// ErrMalformedPayload matches every *ParseError with errors.Is.
var ErrMalformedPayload = errors.New("malformed payload")

// ParseError reports plaintext that is not a JSON object or array.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMalformedPayload, e.Reason)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedPayload
}

// Document is a validated JSON object or array. Its contents are treated as
// sensitive: only MarshalJSON, used to forward it, exposes them.
type Document struct {
	raw     secret.Bytes
	records int
}

// Parse validates plaintext as a single JSON object or array.
// On failure no Document is returned.
func Parse(plaintext secret.Bytes) (*Document, error) {
	raw := bytes.TrimSpace(plaintext.Reveal())
	if len(raw) == 0 {
		return nil, &ParseError{Reason: "empty document"}
	}
	if raw[0] != '{' && raw[0] != '[' {
		return nil, &ParseError{Reason: "document must be a JSON object or array"}
	}

	var value any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&value); err != nil {
		return nil, &ParseError{Reason: "invalid JSON syntax"}
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, &ParseError{Reason: "trailing data after document"}
	}

	// Copy so the caller may wipe its plaintext buffer independently.
	owned := make([]byte, len(raw))
	copy(owned, raw)

	return &Document{
		raw:     secret.NewBytes(owned),
		records: countRecords(value),
	}, nil
}

// countRecords reports the number of user records: the length of a top-level
// array, the length of a "users" array inside an object, or 1.
func countRecords(value any) int {
	switch v := value.(type) {
	case []any:
		return len(v)
	case map[string]any:
		if users, ok := v["users"].([]any); ok {
			return len(users)
		}
		return 1
	default:
		return 0
	}
}

// Size returns the length of the document in bytes.
func (d *Document) Size() int {
	return d.raw.Len()
}

// Records returns the number of records in the document.
func (d *Document) Records() int {
	return d.records
}

// Summary describes the document without revealing its contents.
func (d *Document) Summary() string {
	return fmt.Sprintf("%d records, %d bytes", d.records, d.raw.Len())
}

// Wipe zeroes the document's buffer. The document must not be used afterwards.
func (d *Document) Wipe() {
	d.raw.Wipe()
}

// MarshalJSON emits the document verbatim.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.raw.Reveal(), nil
}

func (d *Document) String() string {
	return d.Summary()
}

func (d *Document) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("records", d.records),
		slog.Int("bytes", d.raw.Len()),
	)
}
