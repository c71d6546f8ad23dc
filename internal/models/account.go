package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is an open holding inside one account. Quantity is signed:
// positive for long, negative for short.
type Position struct {
	Instrument  Instrument      `json:"instrument"`
	Quantity    int64           `json:"quantity"`
	CostBasis   decimal.Decimal `json:"cost_basis"`
	QuoteAtOpen *Quote          `json:"quote_at_open,omitempty"`
}

// IsLong reports whether the position is long.
func (p Position) IsLong() bool {
	return p.Quantity > 0
}

// IsShort reports whether the position is short.
func (p Position) IsShort() bool {
	return p.Quantity < 0
}

// LedgerEntry is an immutable record of one executed leg.
type LedgerEntry struct {
	Timestamp         time.Time           `json:"timestamp"`
	AccountID         string              `json:"account_id"`
	OrderID           string              `json:"order_id"`
	Symbol            string              `json:"symbol"`
	Kind              InstrumentKind      `json:"kind"`
	UnderlyingSymbol  string              `json:"underlying_symbol,omitempty"`
	Side              OrderType           `json:"side"`
	Quantity          int64               `json:"quantity"`
	Multiplier        int64               `json:"multiplier"`
	FillPrice         decimal.Decimal     `json:"fill_price"`
	CashDelta         decimal.Decimal     `json:"cash_delta"`
	RealizedPnL       decimal.NullDecimal `json:"realized_pnl"`
	PositionQtyBefore int64               `json:"position_qty_before"`
	PositionQtyAfter  int64               `json:"position_qty_after"`
}

// Account is a simulated brokerage account. Positions and Ledger are only
// written by the execution engine.
type Account struct {
	ID                string          `json:"account_id"`
	Cash              decimal.Decimal `json:"cash"`
	Positions         []Position      `json:"positions"`
	Ledger            []LedgerEntry   `json:"ledger"`
	MaintenanceMargin decimal.Decimal `json:"maintenance_margin"`
}

// NewAccount creates an account with starting cash and no positions.
func NewAccount(id string, cash decimal.Decimal) *Account {
	return &Account{
		ID:        id,
		Cash:      cash,
		Positions: make([]Position, 0),
		Ledger:    make([]LedgerEntry, 0),
	}
}

// NetQuantity sums the signed quantity of every position on inst.
func (a *Account) NetQuantity(inst Instrument) int64 {
	var total int64
	for _, p := range a.Positions {
		if p.Instrument.Equal(inst) {
			total += p.Quantity
		}
	}
	return total
}

// Clone returns a deep copy suitable for snapshot/restore around a fill.
func (a *Account) Clone() *Account {
	c := *a
	c.Positions = make([]Position, len(a.Positions))
	copy(c.Positions, a.Positions)
	c.Ledger = make([]LedgerEntry, len(a.Ledger))
	copy(c.Ledger, a.Ledger)
	return &c
}

// BuyingPower is cash less the reserved maintenance margin.
func (a *Account) BuyingPower() decimal.Decimal {
	return a.Cash.Sub(a.MaintenanceMargin)
}
