package auth

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	assert.Len(t, k1, 64)
	assert.NotEqual(t, k1, k2)
	_, err = hex.DecodeString(k1)
	assert.NoError(t, err)
}

func TestHashToken(t *testing.T) {
	h := HashToken("token")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashToken("token"))
	assert.NotEqual(t, h, HashToken("other"))
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "sk-ab...wxyz0", MaskKey("sk-abcdefghijklmnopqrstuvwxyz0"))
	assert.Equal(t, "...", MaskKey("short"))
	assert.Equal(t, "...", MaskKey("0123456789"))
	assert.Equal(t, "01234...6789a", MaskKey("0123456789a"))
}
