package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReferencer(t *testing.T) {
	r, err := NewReferencer("", "")
	require.NoError(t, err)
	assert.Equal(t, ModePlain, r.Mode())

	r, err = NewReferencer(ModeSealed, "secret")
	require.NoError(t, err)
	assert.Equal(t, ModeSealed, r.Mode())

	_, err = NewReferencer(ModeSealed, "")
	assert.Error(t, err)

	_, err = NewReferencer("rot13", "x")
	assert.Error(t, err)
}

func TestPlainReferencer(t *testing.T) {
	ref, sealed, err := PlainReferencer{}.Reference("abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", ref)
	assert.Nil(t, sealed)

	got, err := PlainReferencer{}.Recover(ref, sealed)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)
}

func TestSealedReferencer(t *testing.T) {
	r := NewSealedReferencer([]byte("deployment-secret"))

	ref, sealed, err := r.Reference("abc123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "0x"))
	assert.Len(t, ref, 66)
	assert.NotContains(t, ref, "abc123")

	again, _, err := r.Reference("abc123")
	require.NoError(t, err)
	assert.Equal(t, ref, again, "reference must be stable for one deployment")

	got, err := r.Recover(ref, sealed)
	require.NoError(t, err)
	assert.Equal(t, "abc123", got)

	t.Run("other secret yields other reference", func(t *testing.T) {
		other, _, err := NewSealedReferencer([]byte("other")).Reference("abc123")
		require.NoError(t, err)
		assert.NotEqual(t, ref, other)
	})

	t.Run("mismatched reference", func(t *testing.T) {
		_, err := r.Recover("0xdeadbeef", sealed)
		assert.Error(t, err)
	})
}
