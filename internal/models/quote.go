package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Greeks holds option sensitivities. Each value is independently optional.
type Greeks struct {
	Delta *float64 `json:"delta,omitempty"`
	IV    *float64 `json:"iv,omitempty"`
	Gamma *float64 `json:"gamma,omitempty"`
	Vega  *float64 `json:"vega,omitempty"`
	Theta *float64 `json:"theta,omitempty"`
	Rho   *float64 `json:"rho,omitempty"`
}

// Complete reports whether every greek is present.
func (g Greeks) Complete() bool {
	return g.Delta != nil && g.IV != nil && g.Gamma != nil && g.Vega != nil && g.Theta != nil && g.Rho != nil
}

// Quote is a priced, point-in-time observation of an instrument. Quotes are
// snapshots: build them with quotes.NewQuote and never mutate them.
type Quote struct {
	Instrument Instrument          `json:"instrument"`
	AsOf       time.Time           `json:"as_of"`
	Bid        decimal.Decimal     `json:"bid"`
	Ask        decimal.Decimal     `json:"ask"`
	BidSize    int64               `json:"bid_size"`
	AskSize    int64               `json:"ask_size"`
	Price      decimal.NullDecimal `json:"price"`

	// Option-only fields.
	UnderlyingPrice  decimal.NullDecimal `json:"underlying_price"`
	Strike           decimal.Decimal     `json:"strike"`
	DaysToExpiration int                 `json:"days_to_expiration"`
	Intrinsic        decimal.NullDecimal `json:"intrinsic"`
	Greeks           Greeks              `json:"greeks"`
}

// IsPriceable reports whether the quote carries a price.
func (q *Quote) IsPriceable() bool {
	return q != nil && q.Price.Valid
}

// HasGreeks reports whether implied volatility is known.
func (q *Quote) HasGreeks() bool {
	return q.Greeks.IV != nil
}

// IntrinsicValue prefers the feed-supplied intrinsic value, then derives it
// from the underlying price.
func (q *Quote) IntrinsicValue() (decimal.Decimal, bool) {
	if q.Intrinsic.Valid {
		return q.Intrinsic.Decimal, true
	}
	if !q.UnderlyingPrice.Valid {
		return decimal.Zero, false
	}
	return q.Instrument.IntrinsicValue(q.UnderlyingPrice.Decimal)
}

// ExtrinsicValue is price less intrinsic value.
func (q *Quote) ExtrinsicValue() (decimal.Decimal, bool) {
	if !q.Price.Valid {
		return decimal.Zero, false
	}
	if q.Intrinsic.Valid {
		return q.Price.Decimal.Sub(q.Intrinsic.Decimal), true
	}
	if !q.UnderlyingPrice.Valid {
		return decimal.Zero, false
	}
	return q.Instrument.ExtrinsicValue(q.UnderlyingPrice.Decimal, q.Price.Decimal)
}
