package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/notifier/pkg/security"
)

func TestEncryptSecretRoundTrip(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, encryptSecret("credential-key", strings.NewReader("p@ss word\r\n"), &out))

	sealed := strings.TrimSpace(out.String())
	assert.NotContains(t, sealed, "p@ss")

	enc, err := security.NewCredentialEncryptor("credential-key")
	require.NoError(t, err)
	plain, err := security.DecryptString(enc, sealed)
	require.NoError(t, err)
	assert.Equal(t, "p@ss word", plain)
}

func TestEncryptSecretRejectsEmptyInput(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, encryptSecret("credential-key", strings.NewReader("\n"), &out))
	assert.Empty(t, out.String())

	assert.Error(t, encryptSecret("", strings.NewReader("secret"), &out))
}
