// Package ledger holds the append-only audit trail of executed legs and its
// flat export formats.
package ledger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/parquet-go/parquet-go"

	"paperbroker/internal/models"
)

// Record appends e to the account ledger. Entries are never modified once
// recorded.
func Record(account *models.Account, e models.LedgerEntry) {
	account.Ledger = append(account.Ledger, e)
}

// Entries returns a copy of the account ledger in execution order.
func Entries(account *models.Account) []models.LedgerEntry {
	out := make([]models.LedgerEntry, len(account.Ledger))
	copy(out, account.Ledger)
	return out
}

// ForOrder returns the entries produced by one order.
func ForOrder(account *models.Account, orderID string) []models.LedgerEntry {
	var out []models.LedgerEntry
	for _, e := range account.Ledger {
		if e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out
}

// csvRow is the flat CSV layout. Field order is the column order.
type csvRow struct {
	Timestamp         string `csv:"timestamp"`
	AccountID         string `csv:"account_id"`
	OrderID           string `csv:"order_id"`
	Symbol            string `csv:"symbol"`
	Kind              string `csv:"kind"`
	UnderlyingSymbol  string `csv:"underlying_symbol"`
	Side              string `csv:"side"`
	Quantity          int64  `csv:"quantity"`
	Multiplier        int64  `csv:"multiplier"`
	FillPrice         string `csv:"fill_price"`
	CashDelta         string `csv:"cash_delta"`
	RealizedPnL       string `csv:"realized_pnl"`
	PositionQtyBefore int64  `csv:"position_qty_before"`
	PositionQtyAfter  int64  `csv:"position_qty_after"`
}

// ParquetRow is the Parquet layout of a ledger entry.
type ParquetRow struct {
	Timestamp         int64   `parquet:"timestamp,timestamp(millisecond)"`
	AccountID         string  `parquet:"account_id"`
	OrderID           string  `parquet:"order_id"`
	Symbol            string  `parquet:"symbol"`
	Kind              string  `parquet:"kind"`
	UnderlyingSymbol  string  `parquet:"underlying_symbol"`
	Side              string  `parquet:"side"`
	Quantity          int64   `parquet:"quantity"`
	Multiplier        int64   `parquet:"multiplier"`
	FillPrice         string  `parquet:"fill_price"`
	CashDelta         string  `parquet:"cash_delta"`
	RealizedPnL       *string `parquet:"realized_pnl,optional"`
	PositionQtyBefore int64   `parquet:"position_qty_before"`
	PositionQtyAfter  int64   `parquet:"position_qty_after"`
}

func toCSV(entries []models.LedgerEntry) []*csvRow {
	rows := make([]*csvRow, 0, len(entries))
	for _, e := range entries {
		pnl := ""
		if e.RealizedPnL.Valid {
			pnl = e.RealizedPnL.Decimal.String()
		}
		rows = append(rows, &csvRow{
			Timestamp:         e.Timestamp.UTC().Format(time.RFC3339Nano),
			AccountID:         e.AccountID,
			OrderID:           e.OrderID,
			Symbol:            e.Symbol,
			Kind:              string(e.Kind),
			UnderlyingSymbol:  e.UnderlyingSymbol,
			Side:              string(e.Side),
			Quantity:          e.Quantity,
			Multiplier:        e.Multiplier,
			FillPrice:         e.FillPrice.String(),
			CashDelta:         e.CashDelta.String(),
			RealizedPnL:       pnl,
			PositionQtyBefore: e.PositionQtyBefore,
			PositionQtyAfter:  e.PositionQtyAfter,
		})
	}
	return rows
}

// ToParquet converts entries to Parquet rows.
func ToParquet(entries []models.LedgerEntry) []ParquetRow {
	rows := make([]ParquetRow, 0, len(entries))
	for _, e := range entries {
		var pnl *string
		if e.RealizedPnL.Valid {
			s := e.RealizedPnL.Decimal.String()
			pnl = &s
		}
		rows = append(rows, ParquetRow{
			Timestamp:         e.Timestamp.UnixMilli(),
			AccountID:         e.AccountID,
			OrderID:           e.OrderID,
			Symbol:            e.Symbol,
			Kind:              string(e.Kind),
			UnderlyingSymbol:  e.UnderlyingSymbol,
			Side:              string(e.Side),
			Quantity:          e.Quantity,
			Multiplier:        e.Multiplier,
			FillPrice:         e.FillPrice.String(),
			CashDelta:         e.CashDelta.String(),
			RealizedPnL:       pnl,
			PositionQtyBefore: e.PositionQtyBefore,
			PositionQtyAfter:  e.PositionQtyAfter,
		})
	}
	return rows
}

// WriteCSV writes entries as CSV with a header row, even when there are no
// entries.
func WriteCSV(w io.Writer, entries []models.LedgerEntry) error {
	rows := toCSV(entries)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("failed to write ledger csv: %w", err)
	}
	return nil
}

// ExportCSV writes entries to a CSV file at path, creating parent
// directories as needed.
func ExportCSV(path string, entries []models.LedgerEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create ledger file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, entries); err != nil {
		return err
	}
	return f.Close()
}

// ExportParquet writes entries to a Parquet file at path.
func ExportParquet(path string, entries []models.LedgerEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}
	if err := parquet.WriteFile(path, ToParquet(entries)); err != nil {
		return fmt.Errorf("failed to write ledger parquet: %w", err)
	}
	return nil
}

// ReadParquet reads a ledger Parquet file written by ExportParquet.
func ReadParquet(path string) ([]ParquetRow, error) {
	rows, err := parquet.ReadFile[ParquetRow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger parquet: %w", err)
	}
	return rows, nil
}
