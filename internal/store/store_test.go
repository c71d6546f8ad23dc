package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
)

func newSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "paperbroker.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func forEachStore(t *testing.T, fn func(t *testing.T, s AccountStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLite(t)) })
}

func at(minute int) *time.Time {
	ts := time.Date(2024, 1, 10, 15, minute, 0, 0, time.UTC)
	return &ts
}

func TestAccountStore_Snapshots(t *testing.T) {
	forEachStore(t, func(t *testing.T, s AccountStore) {
		ctx := context.Background()

		acct := models.NewAccount("alice", decimal.NewFromInt(1000))
		if err := s.PutAccount(ctx, acct, at(0)); err != nil {
			t.Fatalf("PutAccount: %v", err)
		}

		acct.Cash = decimal.NewFromInt(900)
		acct.Positions = append(acct.Positions, models.Position{
			Instrument: models.MustParseInstrument("SPY240119P00400000"),
			Quantity:   -1,
			CostBasis:  decimal.RequireFromString("-3.2"),
			QuoteAtOpen: &models.Quote{
				Instrument: models.MustParseInstrument("SPY240119P00400000"),
				Price:      decimal.NewNullDecimal(decimal.RequireFromString("3.2")),
			},
		})
		acct.Ledger = append(acct.Ledger, models.LedgerEntry{
			Timestamp: *at(10),
			AccountID: "alice",
			OrderID:   "T-1",
			Symbol:    "SPY240119P00400000",
			Side:      models.SellToOpen,
			Quantity:  -1,
			CashDelta: decimal.NewFromInt(320),
		})
		if err := s.PutAccount(ctx, acct, at(10)); err != nil {
			t.Fatalf("PutAccount: %v", err)
		}

		// Mutating after the write must not leak into the store.
		acct.Cash = decimal.Zero

		got, err := s.GetAccount(ctx, "alice", nil)
		if err != nil {
			t.Fatalf("GetAccount(latest): %v", err)
		}
		if !got.Cash.Equal(decimal.NewFromInt(900)) || len(got.Positions) != 1 || len(got.Ledger) != 1 {
			t.Fatalf("latest = cash %s, %d positions, %d entries", got.Cash, len(got.Positions), len(got.Ledger))
		}
		p := got.Positions[0]
		if p.Instrument.Kind != models.KindPut || p.Quantity != -1 || !p.CostBasis.Equal(decimal.RequireFromString("-3.2")) {
			t.Errorf("position = %+v", p)
		}
		if p.QuoteAtOpen == nil || !p.QuoteAtOpen.Price.Decimal.Equal(decimal.RequireFromString("3.2")) {
			t.Errorf("quote at open = %+v", p.QuoteAtOpen)
		}
		if e := got.Ledger[0]; !e.Timestamp.Equal(*at(10)) || e.RealizedPnL.Valid {
			t.Errorf("ledger entry = %+v", e)
		}

		earlier, err := s.GetAccount(ctx, "alice", at(5))
		if err != nil {
			t.Fatalf("GetAccount(as of): %v", err)
		}
		if !earlier.Cash.Equal(decimal.NewFromInt(1000)) || len(earlier.Positions) != 0 {
			t.Errorf("as-of snapshot = cash %s, %d positions", earlier.Cash, len(earlier.Positions))
		}
		if earlier.Positions == nil || earlier.Ledger == nil {
			t.Error("empty collections should not be nil")
		}

		before := time.Date(2024, 1, 10, 14, 0, 0, 0, time.UTC)
		_, err = s.GetAccount(ctx, "alice", &before)
		if !apperrors.IsData(err) || !errors.Is(err, apperrors.ErrAccountNotFound) {
			t.Errorf("expected account not found before the first snapshot, got %v", err)
		}
		if _, err := s.GetAccount(ctx, "bob", nil); !errors.Is(err, apperrors.ErrAccountNotFound) {
			t.Errorf("unknown account: %v", err)
		}
	})
}

func TestAccountStore_AccountIDs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s AccountStore) {
		ctx := context.Background()
		if err := s.PutAccount(ctx, models.NewAccount("zed", decimal.Zero), at(0)); err != nil {
			t.Fatalf("PutAccount: %v", err)
		}
		if err := s.PutAccount(ctx, models.NewAccount("amy", decimal.Zero), at(20)); err != nil {
			t.Fatalf("PutAccount: %v", err)
		}
		if err := s.PutAccount(ctx, models.NewAccount("zed", decimal.Zero), at(30)); err != nil {
			t.Fatalf("PutAccount: %v", err)
		}

		ids, err := s.AccountIDs(ctx, nil)
		if err != nil {
			t.Fatalf("AccountIDs: %v", err)
		}
		if len(ids) != 2 || ids[0] != "amy" || ids[1] != "zed" {
			t.Errorf("AccountIDs = %v", ids)
		}

		ids, err = s.AccountIDs(ctx, at(10))
		if err != nil {
			t.Fatalf("AccountIDs: %v", err)
		}
		if len(ids) != 1 || ids[0] != "zed" {
			t.Errorf("AccountIDs(as of) = %v", ids)
		}
	})
}

func TestAccountStore_ReplaceSameInstant(t *testing.T) {
	forEachStore(t, func(t *testing.T, s AccountStore) {
		ctx := context.Background()
		if err := s.PutAccount(ctx, models.NewAccount("alice", decimal.NewFromInt(1)), at(0)); err != nil {
			t.Fatalf("PutAccount: %v", err)
		}
		if err := s.PutAccount(ctx, models.NewAccount("alice", decimal.NewFromInt(2)), at(0)); err != nil {
			t.Fatalf("PutAccount: %v", err)
		}

		got, err := s.GetAccount(ctx, "alice", at(0))
		if err != nil {
			t.Fatalf("GetAccount: %v", err)
		}
		if !got.Cash.Equal(decimal.NewFromInt(2)) {
			t.Errorf("cash = %s, want the later write", got.Cash)
		}
	})
}

func TestAccountStore_Validation(t *testing.T) {
	forEachStore(t, func(t *testing.T, s AccountStore) {
		if err := s.PutAccount(context.Background(), models.NewAccount("", decimal.Zero), nil); !apperrors.IsValidation(err) {
			t.Errorf("expected validation error, got %v", err)
		}
		if err := s.PutAccount(context.Background(), nil, nil); !apperrors.IsValidation(err) {
			t.Errorf("expected validation error for nil, got %v", err)
		}
	})
}
