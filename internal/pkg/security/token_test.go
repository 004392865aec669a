package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	hash, err := HashToken(token)
	require.NoError(t, err)

	v, err := NewVerifier(hash)
	require.NoError(t, err)
	assert.True(t, v.Enabled())
	assert.NoError(t, v.Check(token))
	assert.NoError(t, v.Check(token)) // cached
	assert.ErrorIs(t, v.Check("nope"), ErrInvalidToken)
}

func TestVerifier_Disabled(t *testing.T) {
	v, err := NewVerifier("")
	require.NoError(t, err)
	assert.False(t, v.Enabled())
	assert.NoError(t, v.Check(""))

	_, err = NewVerifier("not-a-hash")
	assert.Error(t, err)

	_, err = HashToken("")
	assert.Error(t, err)
}
