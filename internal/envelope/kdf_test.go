package envelope

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	salt := bytes.Repeat([]byte{7}, SaltSize)

	k1, err := DeriveKey("correct horse", salt)
	require.NoError(t, err)
	k2, err := DeriveKey("correct horse", salt)
	require.NoError(t, err)
	k3, err := DeriveKey("battery staple", salt)
	require.NoError(t, err)

	assert.Equal(t, KeySize, k1.Len())
	assert.Equal(t, k1.Reveal(), k2.Reveal())
	assert.NotEqual(t, k1.Reveal(), k3.Reveal())
}

func TestDeriveKey_Errors(t *testing.T) {
	_, err := DeriveKey("", make([]byte, SaltSize))
	assert.Error(t, err)

	_, err = DeriveKey("pass", make([]byte, 8))
	assert.Error(t, err)
}

func TestDeriveKey_SealsAndDecodes(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	key, err := DeriveKey("pass", salt)
	require.NoError(t, err)
	iv, _ := NewIV()

	env, err := Seal([]byte(`[]`), key, iv)
	require.NoError(t, err)
	_, err = Decode(env)
	assert.NoError(t, err)
}
