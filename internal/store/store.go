// Package store persists account snapshots.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
)

// AccountStore persists point-in-time account snapshots. A nil asOf means
// "now" when writing and "latest" when reading.
type AccountStore interface {
	GetAccount(ctx context.Context, id string, asOf *time.Time) (*models.Account, error)
	PutAccount(ctx context.Context, account *models.Account, asOf *time.Time) error
	AccountIDs(ctx context.Context, asOf *time.Time) ([]string, error)
	Close() error
}

func notFound(id string) error {
	return apperrors.NewDataError("account", id, "account not found", apperrors.ErrAccountNotFound)
}

type snapshot struct {
	asOf    time.Time
	account *models.Account
}

// MemoryStore is an in-process AccountStore, used by tests and the CLI when
// no database path is configured.
type MemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string][]snapshot
	now       func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]snapshot),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// PutAccount stores a deep copy of account.
func (s *MemoryStore) PutAccount(ctx context.Context, account *models.Account, asOf *time.Time) error {
	if account == nil || account.ID == "" {
		return apperrors.NewValidationError("account_id", "", "account id is required")
	}
	at := s.now()
	if asOf != nil {
		at = *asOf
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := append(s.snapshots[account.ID], snapshot{asOf: at, account: account.Clone()})
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].asOf.Before(snaps[j].asOf) })
	s.snapshots[account.ID] = snaps
	return nil
}

// GetAccount returns a copy of the latest snapshot at or before asOf.
func (s *MemoryStore) GetAccount(ctx context.Context, id string, asOf *time.Time) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := latest(s.snapshots[id], asOf)
	if !ok {
		return nil, notFound(id)
	}
	return snap.account.Clone(), nil
}

// AccountIDs lists accounts that have a snapshot at or before asOf.
func (s *MemoryStore) AccountIDs(ctx context.Context, asOf *time.Time) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, snaps := range s.snapshots {
		if _, ok := latest(snaps, asOf); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error {
	return nil
}

func latest(snaps []snapshot, asOf *time.Time) (snapshot, bool) {
	for i := len(snaps) - 1; i >= 0; i-- {
		if asOf == nil || !snaps[i].asOf.After(*asOf) {
			return snaps[i], true
		}
	}
	return snapshot{}, false
}

var (
	_ AccountStore = (*MemoryStore)(nil)
	_ AccountStore = (*SQLiteStore)(nil)
)
