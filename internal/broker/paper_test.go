package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
	"paperbroker/internal/quotes"
	"paperbroker/internal/store"
)

type fixture struct {
	broker *PaperBroker
	quotes *quotes.MemorySource
	store  *store.MemoryStore
	orders *models.SequenceGenerator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src := quotes.NewMemorySource(quotes.MemorySourceConfig{})
	st := store.NewMemoryStore()
	b, err := NewPaperBroker(PaperBrokerConfig{
		Store:  st,
		Quotes: src,
		IDs:    models.NewSequenceGenerator("G"),
	})
	if err != nil {
		t.Fatalf("NewPaperBroker: %v", err)
	}
	if _, err := b.CreateAccount(context.Background(), "acct", decimal.NewFromInt(10000)); err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	return &fixture{broker: b, quotes: src, store: st, orders: models.NewSequenceGenerator("O")}
}

func (f *fixture) quote(symbol, price string) {
	f.quotes.Put(quotes.NewQuote(quotes.QuoteParams{
		Instrument: models.MustParseInstrument(symbol),
		Price:      decimal.NewNullDecimal(decimal.RequireFromString(price)),
	}, nil))
}

func (f *fixture) order(t *testing.T, opts models.OrderOptions, legs ...models.Leg) *models.Order {
	t.Helper()
	price := opts.Price
	opts.Price = decimal.NullDecimal{}
	o, err := models.NewOrder(f.orders, opts)
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	for _, l := range legs {
		if err := o.AddLeg(l); err != nil {
			t.Fatalf("AddLeg: %v", err)
		}
	}
	if price.Valid {
		o.SetPrice(price.Decimal)
	}
	return o
}

func mkLeg(t *testing.T, orderType models.OrderType, symbol string, qty int64) models.Leg {
	t.Helper()
	l, err := models.NewLeg(models.MustParseInstrument(symbol), qty, orderType, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("NewLeg: %v", err)
	}
	return l
}

func limitAt(price string) models.OrderOptions {
	return models.OrderOptions{
		Condition: models.ConditionLimit,
		Price:     decimal.NewNullDecimal(decimal.RequireFromString(price)),
	}
}

func (f *fixture) account(t *testing.T) *models.Account {
	t.Helper()
	a, err := f.broker.Account(context.Background(), "acct")
	if err != nil {
		t.Fatalf("Account: %v", err)
	}
	return a
}

func TestNewPaperBroker_RequiresQuotes(t *testing.T) {
	if _, err := NewPaperBroker(PaperBrokerConfig{}); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCreateAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.broker.CreateAccount(ctx, "acct", decimal.Zero); !apperrors.IsValidation(err) {
		t.Errorf("duplicate account: %v", err)
	}
	if _, err := f.broker.CreateAccount(ctx, "poor", decimal.NewFromInt(-1)); !apperrors.IsValidation(err) {
		t.Errorf("negative cash: %v", err)
	}
	a, err := f.broker.CreateAccount(ctx, "", decimal.NewFromInt(5))
	if err != nil || a.ID != "G-1" {
		t.Errorf("generated account = %+v, %v", a, err)
	}
	if _, err := f.broker.Account(ctx, "missing"); !errors.Is(err, apperrors.ErrAccountNotFound) {
		t.Errorf("missing account: %v", err)
	}
}

func TestPlaceOrder_MarketFills(t *testing.T) {
	f := newFixture(t)
	f.quote("AAPL", "50")

	order := f.order(t, models.OrderOptions{}, mkLeg(t, models.BuyToOpen, "AAPL", 10))
	result, err := f.broker.PlaceOrder(context.Background(), "acct", order)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if result.Status != models.StatusFilled || result.Fills != 1 || result.OrderID != "O-1" {
		t.Errorf("result = %+v", result)
	}

	a := f.account(t)
	if !a.Cash.Equal(decimal.NewFromInt(9500)) || len(a.Positions) != 1 || len(a.Ledger) != 1 {
		t.Errorf("account = cash %s, %d positions, %d entries", a.Cash, len(a.Positions), len(a.Ledger))
	}
	if len(f.broker.OpenOrders("acct")) != 0 {
		t.Error("filled orders should not stay on the book")
	}
}

func TestPlaceOrder_RestingLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quote("AAPL", "10.50")

	order := f.order(t, limitAt("10.00"), mkLeg(t, models.BuyToOpen, "AAPL", 1))
	result, err := f.broker.PlaceOrder(ctx, "acct", order)
	if err != nil || result.Status != models.StatusOpen {
		t.Fatalf("PlaceOrder = %+v, %v", result, err)
	}
	if open := f.broker.OpenOrders("acct"); len(open) != 1 || open[0] != order {
		t.Fatalf("OpenOrders = %v", open)
	}

	results, err := f.broker.Evaluate(ctx, "acct")
	if err != nil || len(results) != 1 || results[0].Status != models.StatusOpen {
		t.Fatalf("Evaluate above the limit = %+v, %v", results, err)
	}

	f.quote("AAPL", "9.90")
	results, err = f.broker.Evaluate(ctx, "acct")
	if err != nil || len(results) != 1 || results[0].Status != models.StatusFilled {
		t.Fatalf("Evaluate below the limit = %+v, %v", results, err)
	}
	if !f.account(t).Cash.Equal(decimal.RequireFromString("9990.10")) {
		t.Errorf("cash = %s", f.account(t).Cash)
	}
	if len(f.broker.OpenOrders("acct")) != 0 {
		t.Error("filled order still on the book")
	}
}

func TestPlaceOrder_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.quote("AAPL", "10")
	f.quote("MSFT", "20")

	order := f.order(t, models.OrderOptions{},
		mkLeg(t, models.BuyToOpen, "AAPL", 1),
		mkLeg(t, models.SellToClose, "MSFT", 1),
	)
	_, err := f.broker.PlaceOrder(context.Background(), "acct", order)
	if !errors.Is(err, apperrors.ErrInsufficientQuantity) {
		t.Fatalf("expected ErrInsufficientQuantity, got %v", err)
	}

	a := f.account(t)
	if !a.Cash.Equal(decimal.NewFromInt(10000)) || len(a.Positions) != 0 || len(a.Ledger) != 0 {
		t.Errorf("failed order leaked into the account: cash %s, %d positions, %d entries", a.Cash, len(a.Positions), len(a.Ledger))
	}
	if len(f.broker.OpenOrders("acct")) != 0 {
		t.Error("failed order should not be booked")
	}
}

func TestPlaceOrder_MarginFailureDiscardsFill(t *testing.T) {
	f := newFixture(t)
	f.quote("XYZ240119P00100000", "2.00")

	order := f.order(t, models.OrderOptions{}, mkLeg(t, models.SellToOpen, "XYZ240119P00100000", 1))
	_, err := f.broker.PlaceOrder(context.Background(), "acct", order)
	if !errors.Is(err, apperrors.ErrQuoteNotFound) {
		t.Fatalf("expected missing underlying quote, got %v", err)
	}
	if order.Status() != models.StatusOpen {
		t.Errorf("status = %s, want open", order.Status())
	}
	a := f.account(t)
	if !a.Cash.Equal(decimal.NewFromInt(10000)) || len(a.Positions) != 0 || len(a.Ledger) != 0 {
		t.Errorf("account changed: cash %s, %d positions, %d entries", a.Cash, len(a.Positions), len(a.Ledger))
	}
}

func TestPlaceOCO(t *testing.T) {
	f := newFixture(t)
	f.quote("AAPL", "10")
	f.quote("MSFT", "20")

	first := f.order(t, models.OrderOptions{}, mkLeg(t, models.BuyToOpen, "AAPL", 1))
	second := f.order(t, models.OrderOptions{}, mkLeg(t, models.BuyToOpen, "MSFT", 1))

	result, err := f.broker.PlaceOCO(context.Background(), "acct", first, second)
	if err != nil {
		t.Fatalf("PlaceOCO: %v", err)
	}
	if !result.Resolved || len(result.Orders) != 2 {
		t.Fatalf("result = %+v", result)
	}
	if result.Orders[0].Status != models.StatusFilled || result.Orders[0].Fills != 1 || result.Orders[1].Status != models.StatusCanceled {
		t.Errorf("orders = %+v", result.Orders)
	}
	if a := f.account(t); len(a.Ledger) != 1 || !a.Cash.Equal(decimal.NewFromInt(9990)) {
		t.Errorf("account = cash %s, %d entries", a.Cash, len(a.Ledger))
	}
	if len(f.broker.OpenOrders("acct")) != 0 {
		t.Error("resolved group still on the book")
	}

	if _, err := f.broker.PlaceOCO(context.Background(), "acct", first); !errors.Is(err, apperrors.ErrInvalidOrder) {
		t.Errorf("single-order group: %v", err)
	}
}

func TestCancelOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quote("AAPL", "10")

	resting := f.order(t, limitAt("5"), mkLeg(t, models.BuyToOpen, "AAPL", 1))
	if _, err := f.broker.PlaceOrder(ctx, "acct", resting); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	a := f.order(t, limitAt("5"), mkLeg(t, models.BuyToOpen, "AAPL", 2))
	b := f.order(t, limitAt("6"), mkLeg(t, models.BuyToOpen, "AAPL", 3))
	group, err := f.broker.PlaceOCO(ctx, "acct", a, b)
	if err != nil || group.Resolved {
		t.Fatalf("PlaceOCO = %+v, %v", group, err)
	}
	if n := len(f.broker.OpenOrders("acct")); n != 3 {
		t.Fatalf("OpenOrders = %d, want 3", n)
	}

	if err := f.broker.CancelOrder(ctx, "acct", resting.ID); err != nil {
		t.Fatalf("CancelOrder(order): %v", err)
	}
	if resting.Status() != models.StatusCanceled {
		t.Errorf("status = %s", resting.Status())
	}
	if err := f.broker.CancelOrder(ctx, "acct", resting.ID); !errors.Is(err, apperrors.ErrOrderNotFound) {
		t.Errorf("second cancel: %v", err)
	}

	if err := f.broker.CancelOrder(ctx, "acct", group.GroupID); err != nil {
		t.Fatalf("CancelOrder(group): %v", err)
	}
	if a.Status() != models.StatusCanceled || b.Status() != models.StatusCanceled {
		t.Errorf("siblings = %s, %s", a.Status(), b.Status())
	}
	if n := len(f.broker.OpenOrders("acct")); n != 0 {
		t.Errorf("OpenOrders = %d after cancel", n)
	}
}

func TestCancelOrder_Sibling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quote("AAPL", "10")

	a := f.order(t, limitAt("5"), mkLeg(t, models.BuyToOpen, "AAPL", 1))
	b := f.order(t, limitAt("12"), mkLeg(t, models.BuyToOpen, "AAPL", 2))
	if _, err := f.broker.PlaceOCO(ctx, "acct", a, b); err != nil {
		t.Fatalf("PlaceOCO: %v", err)
	}
	if err := f.broker.CancelOrder(ctx, "acct", a.ID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if open := f.broker.OpenOrders("acct"); len(open) != 1 || open[0] != b {
		t.Errorf("OpenOrders = %v", open)
	}

	f.quote("AAPL", "5.50")
	results, err := f.broker.Evaluate(ctx, "acct")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if b.Status() != models.StatusFilled || len(results) != 2 {
		t.Errorf("status %s, results %+v", b.Status(), results)
	}
}

func TestRefreshMargin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.quote("XYZ", "105")
	f.quote("XYZ240119P00100000", "2.00")

	order := f.order(t, models.OrderOptions{}, mkLeg(t, models.SellToOpen, "XYZ240119P00100000", 1))
	if _, err := f.broker.PlaceOrder(ctx, "acct", order); err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if m := f.account(t).MaintenanceMargin; !m.Equal(decimal.NewFromInt(1800)) {
		t.Fatalf("margin after fill = %s, want 1800", m)
	}

	f.quote("XYZ", "110")
	m, err := f.broker.RefreshMargin(ctx, "acct")
	if err != nil {
		t.Fatalf("RefreshMargin: %v", err)
	}
	if !m.Equal(decimal.NewFromInt(1400)) || !f.account(t).MaintenanceMargin.Equal(m) {
		t.Errorf("refreshed margin = %s, stored %s", m, f.account(t).MaintenanceMargin)
	}
}
