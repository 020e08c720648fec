// Package storage persists vault accounts and metadata. It performs no
// cryptography: every secret column arrives already encrypted.
package storage

import (
	"context"

	"github.com/loganmanery/vaultkeeper/pkg/models"
)

// VaultStore defines the durable operations the vault needs
type VaultStore interface {
	// CreateVault applies migrations and seeds metadata defaults. Idempotent.
	CreateVault(ctx context.Context) error

	// Close closes the storage connection
	Close() error

	// AddAccount inserts a new entry, ErrDuplicateAccount on collision
	AddAccount(ctx context.Context, entry *models.AccountEntry) error

	// GetAccount retrieves one entry by exact name
	GetAccount(ctx context.Context, name string) (*models.AccountEntry, error)

	// FindAccountsContaining returns entries whose name contains keyword
	FindAccountsContaining(ctx context.Context, keyword string) ([]*models.AccountEntry, error)

	// ListAccounts returns every entry ordered by name
	ListAccounts(ctx context.Context) ([]*models.AccountEntry, error)

	// ListAccountNames returns every account name ordered by name
	ListAccountNames(ctx context.Context) ([]string, error)

	// UpdateAccount replaces the stored columns of an existing entry
	UpdateAccount(ctx context.Context, name string, entry *models.AccountEntry) error

	// DeleteAccount removes an entry
	DeleteAccount(ctx context.Context, name string) error

	// ReplaceAccounts rewrites the given entries and the master hash atomically
	ReplaceAccounts(ctx context.Context, entries []*models.AccountEntry, masterHash string) error

	// GetMetadata reads a metadata value. A missing key panics.
	GetMetadata(ctx context.Context, key string) (string, error)
	GetIntMetadata(ctx context.Context, key string) (int, error)
	GetBoolMetadata(ctx context.Context, key string) (bool, error)

	// SetMetadata writes a metadata value. A missing key panics.
	SetMetadata(ctx context.Context, key, value string) error
	SetIntMetadata(ctx context.Context, key string, value int) error
	SetBoolMetadata(ctx context.Context, key string, value bool) error

	// SetMetadataValues writes several metadata values in one transaction
	SetMetadataValues(ctx context.Context, values map[string]string) error

	// Purge deletes every account and metadata row and re-seeds the defaults
	Purge(ctx context.Context) error
}

// Defaults are the metadata values seeded into a fresh vault
type Defaults struct {
	CredentialDisplayDuration int
	IdleSessionTimeout        int
}

// DefaultSettings mirrors the built-in session durations in seconds
var DefaultSettings = Defaults{
	CredentialDisplayDuration: 30,
	IdleSessionTimeout:        600,
}
