package payload

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/userrelay/internal/secret"
)

func TestParse_Valid(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantRecords int
	}{
		{"array", `[{"id":1}]`, 1},
		{"empty array", `[]`, 0},
		{"users object", `{"users":[{"id":1},{"id":2},{"id":3}]}`, 3},
		{"plain object", `{"id":1,"name":"a"}`, 1},
		{"surrounding whitespace", "  \n[{\"id\":1},{\"id\":2}]\n", 2},
		{"large numbers", `[{"id":12345678901234567890}]`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse(secret.NewBytes([]byte(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.wantRecords, doc.Records())
			assert.Equal(t, len(bytes.TrimSpace([]byte(tt.input))), doc.Size())
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	inputs := []string{
		"not-json",
		"",
		"   ",
		`"just a string"`,
		`42`,
		`true`,
		`{"id":1`,
		`[{"id":1}] trailing`,
		`{"a":1}{"b":2}`,
	}

	for _, in := range inputs {
		t.Run(fmt.Sprintf("%q", in), func(t *testing.T) {
			doc, err := Parse(secret.NewBytes([]byte(in)))
			require.Error(t, err)
			assert.Nil(t, doc)
			assert.True(t, errors.Is(err, ErrMalformedPayload))

			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestDocument_MarshalJSONForwardsVerbatim(t *testing.T) {
	doc, err := Parse(secret.NewBytes([]byte(`[{"id":1}]`)))
	require.NoError(t, err)

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1}]`, string(out))
}

func TestDocument_OwnsItsBuffer(t *testing.T) {
	plaintext := secret.NewBytes([]byte(`{"users":[{"id":7}]}`))
	doc, err := Parse(plaintext)
	require.NoError(t, err)

	plaintext.Wipe()

	out, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"users":[{"id":7}]}`, string(out))
}

func TestDocument_NeverLogsContents(t *testing.T) {
	doc, err := Parse(secret.NewBytes([]byte(`[{"email":"a@example.com"}]`)))
	require.NoError(t, err)

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("parsed", slog.Any("document", doc))

	assert.NotContains(t, buf.String(), "example.com")
	assert.Contains(t, buf.String(), `"records":1`)
	assert.NotContains(t, fmt.Sprint(doc), "example.com")
	assert.Equal(t, "1 records, 27 bytes", doc.Summary())
}

func TestDocument_Wipe(t *testing.T) {
	doc, err := Parse(secret.NewBytes([]byte(`[1]`)))
	require.NoError(t, err)

	doc.Wipe()
	out, _ := doc.MarshalJSON()
	assert.Equal(t, []byte{0, 0, 0}, out)
}
