package trading

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/models"
	"paperbroker/internal/quotes"
)

var quoteTime = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)

func newSource() *quotes.MemorySource {
	return quotes.NewMemorySource(quotes.MemorySourceConfig{})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// putQuote stores a priced quote for symbol and returns its instrument.
func putQuote(src *quotes.MemorySource, symbol, price string) models.Instrument {
	inst := models.MustParseInstrument(symbol)
	src.Put(models.Quote{
		Instrument: inst,
		AsOf:       quoteTime,
		Price:      decimal.NewNullDecimal(dec(price)),
	})
	return inst
}

func position(symbol string, qty int64) models.Position {
	return models.Position{Instrument: models.MustParseInstrument(symbol), Quantity: qty}
}

func marketOrder(legs ...func(*models.Order) error) *models.Order {
	o, err := models.NewOrder(models.NewSequenceGenerator("T"), models.OrderOptions{})
	if err != nil {
		panic(err)
	}
	for _, add := range legs {
		if err := add(o); err != nil {
			panic(err)
		}
	}
	return o
}

// conditionalOrder adds legs and then sets the aggregate trigger price.
func conditionalOrder(t *testing.T, cond models.Condition, price string, legs ...func(*models.Order) error) *models.Order {
	t.Helper()
	o, err := models.NewOrder(models.NewSequenceGenerator("T"), models.OrderOptions{Condition: cond})
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	for _, add := range legs {
		if err := add(o); err != nil {
			t.Fatalf("adding leg: %v", err)
		}
	}
	o.SetPrice(dec(price))
	return o
}

func leg(t models.OrderType, symbol string, qty int64) func(*models.Order) error {
	return func(o *models.Order) error {
		return o.Add(models.MustParseInstrument(symbol), qty, t, decimal.NullDecimal{})
	}
}
