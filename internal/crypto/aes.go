package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

// Engine implements CipherEngine with PBKDF2 and AES-CBC
type Engine struct {
	random     io.Reader
	iterations int
}

// Option customizes an Engine
type Option func(*Engine)

// WithRandom replaces the source of salts and IVs
func WithRandom(r io.Reader) Option {
	return func(e *Engine) { e.random = r }
}

// NewEngine creates the default cipher engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{random: rand.Reader, iterations: Iterations}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encrypt seals a single plaintext under a fresh salt and IV
func (e *Engine) Encrypt(secret, plaintext []byte, flavor models.AESFlavor) (*Sealed, error) {
	return e.Seal(secret, flavor, plaintext)
}

// Seal encrypts every field under one fresh salt, key and IV shared by all
// fields. On any failure nothing is returned.
func (e *Engine) Seal(secret []byte, flavor models.AESFlavor, fields ...[]byte) (*Sealed, error) {
	salt, err := e.randomBytes(SaltSize)
	if err != nil {
		return nil, err
	}
	iv, err := e.randomBytes(IVSize)
	if err != nil {
		return nil, err
	}

	key, err := e.DeriveKey(secret, salt, flavor)
	if err != nil {
		return nil, err
	}
	defer common.Wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", common.ErrCryptoFailure)
	}

	sealed := &Sealed{
		Ciphertexts: make([]string, 0, len(fields)),
		Salt:        encode(salt),
		IV:          encode(iv),
		KeyHash:     e.KeyHash(key),
	}
	for _, field := range fields {
		padded := pkcs7Pad(field, aes.BlockSize)
		out := make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
		common.Wipe(padded)
		sealed.Ciphertexts = append(sealed.Ciphertexts, encode(out))
	}

	return sealed, nil
}

// Decrypt opens a ciphertext produced by Seal. Decoding, block-size and
// padding problems all surface as ErrCryptoFailure.
func (e *Engine) Decrypt(secret []byte, ciphertext, salt, iv string, flavor models.AESFlavor) ([]byte, error) {
	rawSalt, err := decode(salt)
	if err != nil {
		return nil, common.ErrCryptoFailure
	}
	rawIV, err := decode(iv)
	if err != nil || len(rawIV) != aes.BlockSize {
		return nil, common.ErrCryptoFailure
	}
	data, err := decode(ciphertext)
	if err != nil || len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, common.ErrCryptoFailure
	}

	key, err := e.DeriveKey(secret, rawSalt, flavor)
	if err != nil {
		return nil, common.ErrCryptoFailure
	}
	defer common.Wipe(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, common.ErrCryptoFailure
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, rawIV).CryptBlocks(plain, data)

	out, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		common.Wipe(plain)
		return nil, common.ErrCryptoFailure
	}
	return out, nil
}

func (e *Engine) randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(e.random, b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", common.ErrCryptoFailure)
	}
	return b, nil
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
