package ledger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/models"
)

const csvHeader = "timestamp,account_id,order_id,symbol,kind,underlying_symbol,side,quantity,multiplier,fill_price,cash_delta,realized_pnl,position_qty_before,position_qty_after"

func sampleEntries() []models.LedgerEntry {
	ts := time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	return []models.LedgerEntry{
		{
			Timestamp:         ts,
			AccountID:         "acct",
			OrderID:           "T-1",
			Symbol:            "AAPL",
			Kind:              models.KindEquity,
			Side:              models.BuyToOpen,
			Quantity:          10,
			Multiplier:        1,
			FillPrice:         decimal.RequireFromString("50"),
			CashDelta:         decimal.RequireFromString("-500"),
			PositionQtyBefore: 0,
			PositionQtyAfter:  10,
		},
		{
			Timestamp:         ts.Add(time.Minute),
			AccountID:         "acct",
			OrderID:           "T-2",
			Symbol:            "SPY240119P00400000",
			Kind:              models.KindPut,
			UnderlyingSymbol:  "SPY",
			Side:              models.SellToOpen,
			Quantity:          -1,
			Multiplier:        100,
			FillPrice:         decimal.RequireFromString("3.2"),
			CashDelta:         decimal.RequireFromString("320"),
			RealizedPnL:       decimal.NewNullDecimal(decimal.RequireFromString("12.5")),
			PositionQtyBefore: 0,
			PositionQtyAfter:  -1,
		},
	}
}

func TestRecordAndQuery(t *testing.T) {
	account := models.NewAccount("acct", decimal.Zero)
	for _, e := range sampleEntries() {
		Record(account, e)
	}

	entries := Entries(account)
	if len(entries) != 2 {
		t.Fatalf("Entries = %d", len(entries))
	}
	entries[0].Quantity = 999
	if account.Ledger[0].Quantity != 10 {
		t.Error("Entries should return a copy")
	}

	if got := ForOrder(account, "T-2"); len(got) != 1 || got[0].Symbol != "SPY240119P00400000" {
		t.Errorf("ForOrder(T-2) = %+v", got)
	}
	if got := ForOrder(account, "nope"); len(got) != 0 {
		t.Errorf("ForOrder(nope) = %+v", got)
	}
}

func TestWriteCSV(t *testing.T) {
	t.Run("header only when empty", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, nil); err != nil {
			t.Fatalf("WriteCSV: %v", err)
		}
		if got := strings.TrimSpace(buf.String()); got != csvHeader {
			t.Errorf("got %q", got)
		}
	})

	t.Run("one row per entry", func(t *testing.T) {
		var buf bytes.Buffer
		if err := WriteCSV(&buf, sampleEntries()); err != nil {
			t.Fatalf("WriteCSV: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		want := []string{
			csvHeader,
			"2024-01-10T15:00:00Z,acct,T-1,AAPL,equity,,bto,10,1,50,-500,,0,10",
			"2024-01-10T15:01:00Z,acct,T-2,SPY240119P00400000,put,SPY,sto,-1,100,3.2,320,12.5,0,-1",
		}
		if len(lines) != len(want) {
			t.Fatalf("got %d lines: %q", len(lines), lines)
		}
		for i := range want {
			if lines[i] != want[i] {
				t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
			}
		}
	})
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "acct.csv")
	if err := ExportCSV(path, sampleEntries()); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), csvHeader) {
		t.Errorf("file does not start with the header: %q", data)
	}
}

func TestExportParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "acct.parquet")
	entries := sampleEntries()
	if err := ExportParquet(path, entries); err != nil {
		t.Fatalf("ExportParquet: %v", err)
	}

	rows, err := ReadParquet(path)
	if err != nil {
		t.Fatalf("ReadParquet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}

	first, second := rows[0], rows[1]
	if first.Timestamp != entries[0].Timestamp.UnixMilli() || first.Symbol != "AAPL" || first.CashDelta != "-500" {
		t.Errorf("first row = %+v", first)
	}
	if first.RealizedPnL != nil {
		t.Errorf("first row realized_pnl = %q, want null", *first.RealizedPnL)
	}
	if second.Kind != "put" || second.Quantity != -1 || second.Multiplier != 100 || second.UnderlyingSymbol != "SPY" {
		t.Errorf("second row = %+v", second)
	}
	if second.RealizedPnL == nil || *second.RealizedPnL != "12.5" {
		t.Errorf("second row realized_pnl = %v", second.RealizedPnL)
	}
}
