package crypto

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestHashPassword_KnownAnswer(t *testing.T) {
	e := NewEngine()
	assert.Equal(t,
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		e.HashPassword([]byte("abc")))
}

func TestVerifyPassword(t *testing.T) {
	e := NewEngine()
	hash := e.HashPassword([]byte("Sn0wman!"))

	assert.True(t, e.VerifyPassword([]byte("Sn0wman!"), hash))
	assert.False(t, e.VerifyPassword([]byte("sn0wman!"), hash))
	assert.False(t, e.VerifyPassword([]byte("Sn0wman!"), models.Unset))
}

func TestDeriveKey(t *testing.T) {
	e := NewEngine()
	salt := []byte("0123456789abcdef")

	for _, f := range []models.AESFlavor{models.AES128, models.AES192, models.AES256} {
		k1, err := e.DeriveKey([]byte("pw"), salt, f)
		require.NoError(t, err)
		k2, err := e.DeriveKey([]byte("pw"), salt, f)
		require.NoError(t, err)

		assert.Len(t, k1, f.KeyLen())
		assert.Equal(t, k1, k2, "derivation must be deterministic")
	}

	_, err := e.DeriveKey([]byte("pw"), salt, models.AESFlavor(100))
	require.ErrorIs(t, err, common.ErrConfigurationInvalid)

	_, err = e.DeriveKey([]byte("pw"), nil, models.AES128)
	require.ErrorIs(t, err, common.ErrCryptoFailure)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	e := NewEngine()
	secret := []byte("Sn0wman!")

	for _, f := range []models.AESFlavor{models.AES128, models.AES192, models.AES256} {
		for _, plain := range [][]byte{[]byte(""), []byte("octocat"), bytes.Repeat([]byte("x"), 16), []byte("p@ss w0rd ünïcode")} {
			sealed, err := e.Encrypt(secret, plain, f)
			require.NoError(t, err)

			assert.True(t, e.Authenticate(secret, sealed.Salt, f, sealed.KeyHash))

			got, err := e.Decrypt(secret, sealed.Ciphertext(), sealed.Salt, sealed.IV, f)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		}
	}
}

func TestSeal_SharesSaltAndKey(t *testing.T) {
	e := NewEngine()
	secret := []byte("master")

	sealed, err := e.Seal(secret, models.AES256, []byte("alice"), []byte("hunter2"))
	require.NoError(t, err)
	require.Len(t, sealed.Ciphertexts, 2)

	user, err := e.Decrypt(secret, sealed.Ciphertexts[0], sealed.Salt, sealed.IV, models.AES256)
	require.NoError(t, err)
	pass, err := e.Decrypt(secret, sealed.Ciphertexts[1], sealed.Salt, sealed.IV, models.AES256)
	require.NoError(t, err)

	assert.Equal(t, "alice", string(user))
	assert.Equal(t, "hunter2", string(pass))
}

func TestEncrypt_FreshSaltAndIV(t *testing.T) {
	e := NewEngine()
	a, err := e.Encrypt([]byte("k"), []byte("same"), models.AES128)
	require.NoError(t, err)
	b, err := e.Encrypt([]byte("k"), []byte("same"), models.AES128)
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext(), b.Ciphertext())
	assert.NotEqual(t, a.KeyHash, b.KeyHash)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	e := NewEngine()
	sealed, err := e.Encrypt([]byte("right"), []byte("data"), models.AES192)
	require.NoError(t, err)

	assert.False(t, e.Authenticate([]byte("wrong"), sealed.Salt, models.AES192, sealed.KeyHash))
	assert.False(t, e.Authenticate([]byte("right"), sealed.Salt, models.AES256, sealed.KeyHash))
	assert.False(t, e.Authenticate([]byte("right"), "%%%not-base64", models.AES192, sealed.KeyHash))
}

func TestDecrypt_WrongSecretNeverYieldsPlaintext(t *testing.T) {
	e := NewEngine()
	sealed, err := e.Encrypt([]byte("right"), []byte("top secret value"), models.AES128)
	require.NoError(t, err)

	got, err := e.Decrypt([]byte("wrong"), sealed.Ciphertext(), sealed.Salt, sealed.IV, models.AES128)
	if err != nil {
		assert.ErrorIs(t, err, common.ErrCryptoFailure)
		assert.Nil(t, got)
		return
	}
	assert.NotEqual(t, "top secret value", string(got))
}

func TestDecrypt_MalformedInput(t *testing.T) {
	e := NewEngine()
	sealed, err := e.Encrypt([]byte("k"), []byte("data"), models.AES128)
	require.NoError(t, err)

	tests := []struct {
		name         string
		ct, salt, iv string
	}{
		{name: "bad ciphertext encoding", ct: "***", salt: sealed.Salt, iv: sealed.IV},
		{name: "bad salt encoding", ct: sealed.Ciphertext(), salt: "***", iv: sealed.IV},
		{name: "short iv", ct: sealed.Ciphertext(), salt: sealed.Salt, iv: "AAAA"},
		{name: "not a block multiple", ct: "AAAA", salt: sealed.Salt, iv: sealed.IV},
		{name: "empty ciphertext", ct: "", salt: sealed.Salt, iv: sealed.IV},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Decrypt([]byte("k"), tt.ct, tt.salt, tt.iv, models.AES128)
			require.ErrorIs(t, err, common.ErrCryptoFailure)
		})
	}
}

func TestSeal_RandomFailure(t *testing.T) {
	e := NewEngine(WithRandom(failingReader{}))

	sealed, err := e.Seal([]byte("k"), models.AES128, []byte("data"))
	require.ErrorIs(t, err, common.ErrCryptoFailure)
	assert.Nil(t, sealed)
}

func TestPKCS7(t *testing.T) {
	padded := pkcs7Pad([]byte("abc"), 16)
	require.Len(t, padded, 16)
	assert.Equal(t, byte(13), padded[15])

	out, err := pkcs7Unpad(padded, 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), out)

	full := pkcs7Pad(bytes.Repeat([]byte("a"), 16), 16)
	assert.Len(t, full, 32)

	bad := append([]byte{}, padded...)
	bad[14] = 1
	_, err = pkcs7Unpad(bad, 16)
	require.Error(t, err)

	zero := make([]byte, 16)
	_, err = pkcs7Unpad(zero, 16)
	require.Error(t, err)
}
