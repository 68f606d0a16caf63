package vault

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New(Config{MasterKey: "test-master-key", Salt: []byte("test-salt")})
	require.NoError(t, err)
	return v
}

func TestNew(t *testing.T) {
	t.Run("missing master key", func(t *testing.T) {
		_, err := New(Config{Salt: []byte("salt")})
		assert.Error(t, err)
	})

	t.Run("missing salt", func(t *testing.T) {
		_, err := New(Config{MasterKey: "key"})
		assert.Error(t, err)
	})
}

func TestVault_EncryptDecrypt(t *testing.T) {
	v := newTestVault(t)

	ciphertext, err := v.Encrypt("acct_1NxT2Q")
	require.NoError(t, err)
	assert.NotEqual(t, "acct_1NxT2Q", ciphertext)

	plaintext, legacy, err := v.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "acct_1NxT2Q", plaintext)
	assert.False(t, legacy)
}

func TestVault_EncryptUsesFreshNonce(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt("sk_test_123")
	require.NoError(t, err)
	second, err := v.Encrypt("sk_test_123")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVault_DecryptLegacyPlaintext(t *testing.T) {
	v := newTestVault(t)

	t.Run("not base64", func(t *testing.T) {
		plaintext, legacy, err := v.Decrypt("acct_legacy_value")
		require.NoError(t, err)
		assert.Equal(t, "acct_legacy_value", plaintext)
		assert.True(t, legacy)
	})

	t.Run("base64 shorter than nonce and tag", func(t *testing.T) {
		plaintext, legacy, err := v.Decrypt("YWNjdDEyMw==")
		require.NoError(t, err)
		assert.Equal(t, "YWNjdDEyMw==", plaintext)
		assert.True(t, legacy)
	})

	t.Run("empty value", func(t *testing.T) {
		plaintext, legacy, err := v.Decrypt("")
		require.NoError(t, err)
		assert.Empty(t, plaintext)
		assert.False(t, legacy)
	})
}

func TestVault_DecryptRejectsForeignCiphertext(t *testing.T) {
	v := newTestVault(t)

	t.Run("sealed under another key", func(t *testing.T) {
		other, err := New(Config{MasterKey: "other-key", Salt: []byte("test-salt")})
		require.NoError(t, err)
		ciphertext, err := other.Encrypt("acct_1")
		require.NoError(t, err)

		plaintext, legacy, err := v.Decrypt(ciphertext)
		assert.ErrorIs(t, err, ErrUndecryptable)
		assert.Empty(t, plaintext)
		assert.False(t, legacy)
	})

	t.Run("corrupted ciphertext", func(t *testing.T) {
		plaintext, legacy, err := v.Decrypt("YWNjdF9sZWdhY3lfdmFsdWVfcGFkZGluZ19wYWRkaW5n")
		assert.ErrorIs(t, err, ErrUndecryptable)
		assert.Empty(t, plaintext)
		assert.False(t, legacy)
	})
}

func TestVault_BlindIndex(t *testing.T) {
	v := newTestVault(t)

	assert.Equal(t, v.BlindIndex("acct_1"), v.BlindIndex("acct_1"))
	assert.NotEqual(t, v.BlindIndex("acct_1"), v.BlindIndex("acct_2"))
	assert.Len(t, v.BlindIndex("acct_1"), 64)
}
