package secretstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	enc, err := NewFieldEncryptor(key)
	require.NoError(t, err)

	plaintext := "my-secret-token-12345"
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, decrypted)
}

func TestEncryptNonceIsRandom(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	enc, err := NewFieldEncryptor(key)
	require.NoError(t, err)

	c1, err := enc.Encrypt("same-data")
	require.NoError(t, err)
	c2, err := enc.Encrypt("same-data")
	require.NoError(t, err)

	require.NotEqual(t, c1, c2)

	d1, err := enc.Decrypt(c1)
	require.NoError(t, err)
	d2, err := enc.Decrypt(c2)
	require.NoError(t, err)
	require.Equal(t, "same-data", d1)
	require.Equal(t, "same-data", d2)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key1, err := GenerateMasterKey()
	require.NoError(t, err)
	key2, err := GenerateMasterKey()
	require.NoError(t, err)

	enc1, err := NewFieldEncryptor(key1)
	require.NoError(t, err)
	enc2, err := NewFieldEncryptor(key2)
	require.NoError(t, err)

	ciphertext, err := enc1.Encrypt("secret")
	require.NoError(t, err)

	_, err = enc2.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestDecryptCorruptedInputFails(t *testing.T) {
	key, err := GenerateMasterKey()
	require.NoError(t, err)
	enc, err := NewFieldEncryptor(key)
	require.NoError(t, err)

	_, err = enc.Decrypt("not-hex-at-all-zz")
	require.Error(t, err)

	_, err = enc.Decrypt("deadbeef")
	require.Error(t, err)
}
