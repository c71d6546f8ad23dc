package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
)

// SQLiteStore implements AccountStore using SQLite. Each PutAccount adds a
// snapshot row keyed by account id and as-of time.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- One row per account snapshot; as_of is unix nanoseconds
	CREATE TABLE IF NOT EXISTS accounts (
		account_id TEXT NOT NULL,
		as_of INTEGER NOT NULL,
		cash TEXT NOT NULL,
		maintenance_margin TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (account_id, as_of)
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_as_of ON accounts(as_of);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// PutAccount writes a snapshot of account. Writing the same (id, asOf) twice
// replaces the earlier snapshot.
func (s *SQLiteStore) PutAccount(ctx context.Context, account *models.Account, asOf *time.Time) error {
	if account == nil || account.ID == "" {
		return apperrors.NewValidationError("account_id", "", "account id is required")
	}
	at := s.now()
	if asOf != nil {
		at = *asOf
	}

	payload, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to encode account: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO accounts (account_id, as_of, cash, maintenance_margin, payload)
		VALUES (?, ?, ?, ?, ?)
	`, account.ID, at.UnixNano(), account.Cash.String(), account.MaintenanceMargin.String(), string(payload))
	if err != nil {
		return apperrors.NewDataError("account", account.ID, "failed to save account", fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}
	return nil
}

// GetAccount returns the latest snapshot at or before asOf.
func (s *SQLiteStore) GetAccount(ctx context.Context, id string, asOf *time.Time) (*models.Account, error) {
	query := "SELECT payload FROM accounts WHERE account_id = ?"
	args := []interface{}{id}
	if asOf != nil {
		query += " AND as_of <= ?"
		args = append(args, asOf.UnixNano())
	}
	query += " ORDER BY as_of DESC LIMIT 1"

	var payload string
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, apperrors.NewDataError("account", id, "failed to load account", fmt.Errorf("%w: %v", apperrors.ErrDatabaseError, err))
	}

	var account models.Account
	if err := json.Unmarshal([]byte(payload), &account); err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", id, err)
	}
	if account.Positions == nil {
		account.Positions = make([]models.Position, 0)
	}
	if account.Ledger == nil {
		account.Ledger = make([]models.LedgerEntry, 0)
	}
	return &account, nil
}

// AccountIDs lists accounts that have a snapshot at or before asOf.
func (s *SQLiteStore) AccountIDs(ctx context.Context, asOf *time.Time) ([]string, error) {
	query := "SELECT DISTINCT account_id FROM accounts"
	args := []interface{}{}
	if asOf != nil {
		query += " WHERE as_of <= ?"
		args = append(args, asOf.UnixNano())
	}
	query += " ORDER BY account_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return ids, nil
}
