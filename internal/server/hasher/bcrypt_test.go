package hasher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcrypt_HashVerify(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.True(t, h.Verify("correct horse", hash))
	assert.False(t, h.Verify("wrong", hash))
	assert.False(t, h.Verify("correct horse", ""))
	assert.False(t, h.Verify("correct horse", "not-a-hash"))
}

func TestBcrypt_NeedsRehash(t *testing.T) {
	low, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	high, err := NewBcrypt(bcrypt.MinCost + 1)
	require.NoError(t, err)

	hash, err := low.Hash("pw")
	require.NoError(t, err)

	assert.False(t, low.NeedsRehash(hash))
	assert.True(t, high.NeedsRehash(hash))
	assert.True(t, low.NeedsRehash("garbage"))
}

func TestNewBcrypt_ClampsCost(t *testing.T) {
	h, err := NewBcrypt(0)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, h.Cost())
}

func TestBcrypt_Dummy(t *testing.T) {
	h, err := NewBcrypt(bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotPanics(t, func() { h.Dummy("anything") })
}
