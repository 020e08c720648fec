package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/awnumar/memguard"
)

// Unset is stored in string metadata that has not been assigned yet
const Unset = "unset"

// Metadata keys persisted by the vault
const (
	MetaSetupComplete             = "setup_complete"
	MetaMasterPasswordHash        = "master_password_hash"
	MetaAESFlavor                 = "aes_flavor"
	MetaCredentialDisplayDuration = "credential_display_duration"
	MetaIdleSessionTimeout        = "idle_session_timeout"
	MetaFailedLoginAttempts       = "failed_login_attempts"
)

// AESFlavor is the AES key size in bits
type AESFlavor int

// Supported AES key sizes
const (
	AES128 AESFlavor = 128
	AES192 AESFlavor = 192
	AES256 AESFlavor = 256
)

// KeyLen returns the key length in bytes
func (f AESFlavor) KeyLen() int {
	return int(f) / 8
}

// Valid reports whether f is one of the supported key sizes
func (f AESFlavor) Valid() bool {
	return f == AES128 || f == AES192 || f == AES256
}

func (f AESFlavor) String() string {
	return fmt.Sprintf("AES-%d", int(f))
}

// ParseAESFlavor accepts "128", "AES-128", "aes128" and the like
func ParseAESFlavor(s string) (AESFlavor, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimPrefix(v, "AES")
	v = strings.TrimPrefix(v, "-")
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid AES flavor %q", s)
	}
	f := AESFlavor(n)
	if !f.Valid() {
		return 0, fmt.Errorf("unsupported AES flavor %q", s)
	}
	return f, nil
}

// NormalizeAccountName trims and uppercases an account name
func NormalizeAccountName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// AccountEntry is a stored account row. Username and password are only
// present in encrypted form.
type AccountEntry struct {
	AccountName        string
	AssociatedEmail    *string
	CiphertextUsername string
	CiphertextPassword string
	Salt               string
	IV                 string
	SecretKeyHash      string
	UpdatedAt          time.Time
}

// Credentials holds decrypted account secrets
type Credentials struct {
	AccountName string
	Username    []byte
	Password    []byte
	Email       string
}

// Wipe zeroes the decrypted secrets
func (c *Credentials) Wipe() {
	if c == nil {
		return
	}
	memguard.WipeBytes(c.Username)
	memguard.WipeBytes(c.Password)
	c.Username = nil
	c.Password = nil
}
