package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialEncryptor(t *testing.T) {
	enc, err := NewCredentialEncryptor("operator-secret")
	require.NoError(t, err)

	sealed, err := EncryptString(enc, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hunter2")

	plain, err := DecryptString(enc, sealed)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", plain)

	other, err := NewCredentialEncryptor("another-secret")
	require.NoError(t, err)
	_, err = DecryptString(other, sealed)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestCredentialEncryptorRequiresSecret(t *testing.T) {
	_, err := NewCredentialEncryptor("")
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
