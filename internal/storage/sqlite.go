package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/loganmanery/vaultkeeper/internal/common"
	"github.com/loganmanery/vaultkeeper/pkg/models"
)

const accountColumns = `account_name, associated_email, ciphertext_username, ciphertext_password, salt, iv, secret_key_hash, updated_at`

// SQLiteStorage implements VaultStore using SQLite
type SQLiteStorage struct {
	db       *sql.DB
	defaults Defaults
}

// Open opens (creating if needed) the vault database at path. Any failure
// to reach the file is reported as ErrStorageUnavailable.
func Open(ctx context.Context, path string, defaults Defaults) (*SQLiteStorage, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w: %w", common.ErrStorageUnavailable, err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w: %w", common.ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to reach database: %w: %w", common.ErrStorageUnavailable, err)
	}

	return NewSQLiteStorage(db, defaults), nil
}

// NewSQLiteStorage wraps an already opened database handle
func NewSQLiteStorage(db *sql.DB, defaults Defaults) *SQLiteStorage {
	return &SQLiteStorage{db: db, defaults: defaults}
}

// CreateVault applies the schema and seeds any missing metadata
func (s *SQLiteStorage) CreateVault(ctx context.Context) error {
	if err := runMigrations(s.db); err != nil {
		return fmt.Errorf("failed to create vault: %w: %w", common.ErrStorageUnavailable, err)
	}
	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		return s.seedDefaults(ctx, tx)
	})
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) defaultMetadata() map[string]string {
	return map[string]string{
		models.MetaSetupComplete:             "false",
		models.MetaMasterPasswordHash:        models.Unset,
		models.MetaAESFlavor:                 models.Unset,
		models.MetaCredentialDisplayDuration: strconv.Itoa(s.defaults.CredentialDisplayDuration),
		models.MetaIdleSessionTimeout:        strconv.Itoa(s.defaults.IdleSessionTimeout),
		models.MetaFailedLoginAttempts:       "0",
	}
}

func (s *SQLiteStorage) seedDefaults(ctx context.Context, tx DBTX) error {
	for key, value := range s.defaultMetadata() {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO vault_metadata (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to seed metadata[%s]: %w", key, err)
		}
	}
	return nil
}

// AddAccount inserts a new account entry
func (s *SQLiteStorage) AddAccount(ctx context.Context, entry *models.AccountEntry) error {
	name := models.NormalizeAccountName(entry.AccountName)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (account_name, associated_email, ciphertext_username, ciphertext_password, salt, iv, secret_key_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, name, nullString(entry.AssociatedEmail), entry.CiphertextUsername, entry.CiphertextPassword,
		entry.Salt, entry.IV, entry.SecretKeyHash)
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("failed to add account[%s]: %w", name, common.ErrDuplicateAccount)
		}
		return fmt.Errorf("failed to add account[%s]: %w", name, err)
	}
	return nil
}

// GetAccount retrieves an account entry by name
func (s *SQLiteStorage) GetAccount(ctx context.Context, name string) (*models.AccountEntry, error) {
	name = models.NormalizeAccountName(name)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_name = ?`, name)

	entry, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to get account[%s]: %w", name, common.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("failed to get account[%s]: %w", name, err)
	}
	return entry, nil
}

// FindAccountsContaining performs a case-insensitive substring search on names
func (s *SQLiteStorage) FindAccountsContaining(ctx context.Context, keyword string) ([]*models.AccountEntry, error) {
	pattern := "%" + escapeLike(models.NormalizeAccountName(keyword)) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_name LIKE ? ESCAPE '\' ORDER BY account_name`, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to search accounts: %w", err)
	}
	return collectAccounts(rows)
}

// ListAccounts returns every entry
func (s *SQLiteStorage) ListAccounts(ctx context.Context) ([]*models.AccountEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY account_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return collectAccounts(rows)
}

// ListAccountNames returns the names of all stored accounts
func (s *SQLiteStorage) ListAccountNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_name FROM accounts ORDER BY account_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list account names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan account name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list account names: %w", err)
	}
	return names, nil
}

// UpdateAccount replaces every stored column of an existing entry in one statement
func (s *SQLiteStorage) UpdateAccount(ctx context.Context, name string, entry *models.AccountEntry) error {
	name = models.NormalizeAccountName(name)
	err := updateAccount(ctx, s.db, name, entry)
	if err != nil {
		return fmt.Errorf("failed to update account[%s]: %w", name, err)
	}
	return nil
}

// DeleteAccount removes an entry
func (s *SQLiteStorage) DeleteAccount(ctx context.Context, name string) error {
	name = models.NormalizeAccountName(name)
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE account_name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete account[%s]: %w", name, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("failed to delete account[%s]: %w", name, err)
	}
	return nil
}

// ReplaceAccounts rewrites the given entries and the master password hash
// in one transaction
func (s *SQLiteStorage) ReplaceAccounts(ctx context.Context, entries []*models.AccountEntry, masterHash string) error {
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		for _, entry := range entries {
			if err := updateAccount(ctx, tx, models.NormalizeAccountName(entry.AccountName), entry); err != nil {
				return fmt.Errorf("account[%s]: %w", entry.AccountName, err)
			}
		}
		return setMetadata(ctx, tx, models.MetaMasterPasswordHash, masterHash)
	})
	if err != nil {
		return fmt.Errorf("failed to replace accounts: %w", err)
	}
	return nil
}

// GetMetadata reads a metadata value. Asking for a key that was never
// seeded is a programming error and panics.
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM vault_metadata WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			panic(fmt.Sprintf("storage: metadata key %q does not exist", key))
		}
		return "", fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

// GetIntMetadata reads an integer metadata value
func (s *SQLiteStorage) GetIntMetadata(ctx context.Context, key string) (int, error) {
	value, err := s.GetMetadata(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse metadata[%s]: %w", key, err)
	}
	return n, nil
}

// GetBoolMetadata reads a boolean metadata value
func (s *SQLiteStorage) GetBoolMetadata(ctx context.Context, key string) (bool, error) {
	value, err := s.GetMetadata(ctx, key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("failed to parse metadata[%s]: %w", key, err)
	}
	return b, nil
}

// SetMetadata overwrites an existing metadata value
func (s *SQLiteStorage) SetMetadata(ctx context.Context, key, value string) error {
	return setMetadata(ctx, s.db, key, value)
}

// SetIntMetadata overwrites an integer metadata value
func (s *SQLiteStorage) SetIntMetadata(ctx context.Context, key string, value int) error {
	return s.SetMetadata(ctx, key, strconv.Itoa(value))
}

// SetBoolMetadata overwrites a boolean metadata value
func (s *SQLiteStorage) SetBoolMetadata(ctx context.Context, key string, value bool) error {
	return s.SetMetadata(ctx, key, strconv.FormatBool(value))
}

// SetMetadataValues writes all values or none
func (s *SQLiteStorage) SetMetadataValues(ctx context.Context, values map[string]string) error {
	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		for key, value := range values {
			if err := setMetadata(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Purge wipes the vault back to its pre-setup state
func (s *SQLiteStorage) Purge(ctx context.Context) error {
	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM vault_metadata`); err != nil {
			return err
		}
		return s.seedDefaults(ctx, tx)
	})
	if err != nil {
		return fmt.Errorf("failed to purge vault: %w", err)
	}
	return nil
}

func setMetadata(ctx context.Context, db DBTX, key, value string) error {
	res, err := db.ExecContext(ctx, `UPDATE vault_metadata SET value = ? WHERE key = ?`, value, key)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	if n == 0 {
		panic(fmt.Sprintf("storage: metadata key %q does not exist", key))
	}
	return nil
}

func updateAccount(ctx context.Context, db DBTX, name string, entry *models.AccountEntry) error {
	res, err := db.ExecContext(ctx, `
		UPDATE accounts
		SET associated_email = ?, ciphertext_username = ?, ciphertext_password = ?,
		    salt = ?, iv = ?, secret_key_hash = ?, updated_at = CURRENT_TIMESTAMP
		WHERE account_name = ?
	`, nullString(entry.AssociatedEmail), entry.CiphertextUsername, entry.CiphertextPassword,
		entry.Salt, entry.IV, entry.SecretKeyHash, name)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrAccountNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.AccountEntry, error) {
	var entry models.AccountEntry
	var email sql.NullString
	var updatedAt sql.NullTime

	err := row.Scan(&entry.AccountName, &email, &entry.CiphertextUsername, &entry.CiphertextPassword,
		&entry.Salt, &entry.IV, &entry.SecretKeyHash, &updatedAt)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		entry.AssociatedEmail = &email.String
	}
	if updatedAt.Valid {
		entry.UpdatedAt = updatedAt.Time
	}
	return &entry, nil
}

func collectAccounts(rows *sql.Rows) ([]*models.AccountEntry, error) {
	defer rows.Close()

	entries := []*models.AccountEntry{}
	for rows.Next() {
		entry, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	return entries, nil
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
