// Package crypto implements the vault's cipher engine: master password
// hashing, per-entry PBKDF2 key derivation, AES-CBC encryption and key-hash
// verification. The engine is stateless; every call takes the secret it needs.
package crypto

import "github.com/loganmanery/vaultkeeper/pkg/models"

const (
	// SaltSize and IVSize are the per-entry random sizes in bytes
	SaltSize = 16
	IVSize   = 16

	// Iterations is the PBKDF2-HMAC-SHA256 work factor
	Iterations = 65536
)

// CipherEngine defines the cryptographic operations used by the vault
type CipherEngine interface {
	// HashPassword returns the hex SHA-256 of secret
	HashPassword(secret []byte) string

	// VerifyPassword compares secret with a stored hex hash in constant time
	VerifyPassword(secret []byte, hash string) bool

	// DeriveKey derives a flavor-sized key from secret and salt
	DeriveKey(secret, salt []byte, flavor models.AESFlavor) ([]byte, error)

	// KeyHash returns the hex SHA-256 of the raw key bytes
	KeyHash(key []byte) string

	// Encrypt seals one plaintext under a fresh salt and IV
	Encrypt(secret, plaintext []byte, flavor models.AESFlavor) (*Sealed, error)

	// Seal encrypts several fields under one fresh salt, key and IV
	Seal(secret []byte, flavor models.AESFlavor, fields ...[]byte) (*Sealed, error)

	// Decrypt opens a base64 ciphertext. Every failure is ErrCryptoFailure.
	Decrypt(secret []byte, ciphertext, salt, iv string, flavor models.AESFlavor) ([]byte, error)

	// Authenticate reports whether secret re-derives the key behind targetHash
	Authenticate(secret []byte, salt string, flavor models.AESFlavor, targetHash string) bool
}

// Sealed is the output of an encryption: base64 ciphertexts, salt and IV,
// plus the hex hash of the derived key.
type Sealed struct {
	Ciphertexts []string
	Salt        string
	IV          string
	KeyHash     string
}

// Ciphertext returns the first ciphertext, or "" when there is none
func (s *Sealed) Ciphertext() string {
	if s == nil || len(s.Ciphertexts) == 0 {
		return ""
	}
	return s.Ciphertexts[0]
}
