package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSigningKey(t *testing.T) {
	key, err := DeriveSigningKey("shared-secret", "mobifi")
	require.NoError(t, err)
	assert.Len(t, key, Argon2KeyLen)

	// деривация детерминирована
	again, err := DeriveSigningKey("shared-secret", "mobifi")
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestDeriveSigningKeyIndependence(t *testing.T) {
	a, err := DeriveSigningKey("shared-secret", "org-a")
	require.NoError(t, err)
	b, err := DeriveSigningKey("shared-secret", "org-b")
	require.NoError(t, err)

	// same secret, different org -> different keys
	assert.NotEqual(t, a, b)

	c, err := DeriveSigningKey("other-secret", "org-a")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDeriveSigningKeyValidation(t *testing.T) {
	_, err := DeriveSigningKey("", "org-a")
	require.Error(t, err)

	_, err = DeriveSigningKey("secret", "")
	require.Error(t, err)
}
