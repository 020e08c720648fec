package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/pbkdf2"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

// HashPassword returns the hex SHA-256 of secret
func (e *Engine) HashPassword(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:])
}

// VerifyPassword hashes secret and compares it with hash in constant time
func (e *Engine) VerifyPassword(secret []byte, hash string) bool {
	got := e.HashPassword(secret)
	return subtle.ConstantTimeCompare([]byte(got), []byte(hash)) == 1
}

// DeriveKey runs PBKDF2-HMAC-SHA256 over secret and salt
func (e *Engine) DeriveKey(secret, salt []byte, flavor models.AESFlavor) ([]byte, error) {
	if !flavor.Valid() {
		return nil, fmt.Errorf("derive key with %v: %w", flavor, common.ErrConfigurationInvalid)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("derive key with empty salt: %w", common.ErrCryptoFailure)
	}
	return pbkdf2.Key(secret, salt, e.iterations, flavor.KeyLen(), sha256.New), nil
}

// KeyHash returns the hex SHA-256 of key
func (e *Engine) KeyHash(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:])
}

// Authenticate derives a key from secret and the stored salt and compares
// its hash with targetHash. Any decoding problem yields false.
func (e *Engine) Authenticate(secret []byte, salt string, flavor models.AESFlavor, targetHash string) bool {
	rawSalt, err := decode(salt)
	if err != nil {
		return false
	}
	key, err := e.DeriveKey(secret, rawSalt, flavor)
	if err != nil {
		return false
	}
	defer common.Wipe(key)

	got := e.KeyHash(key)
	return subtle.ConstantTimeCompare([]byte(got), []byte(targetHash)) == 1
}
