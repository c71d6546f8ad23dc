// Package quotes provides quote construction, quote sources and the price
// and greeks estimators the execution engine consumes.
package quotes

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"paperbroker/internal/models"
)

// greeksScale is applied to every greek produced by an estimator.
const greeksScale = 100

// QuoteParams carries the raw observation a quote is built from.
type QuoteParams struct {
	Instrument models.Instrument
	AsOf       time.Time
	Price      decimal.NullDecimal
	Bid        decimal.Decimal
	Ask        decimal.Decimal
	BidSize    int64
	AskSize    int64

	// Option-only inputs; unset values are derived from the instrument.
	UnderlyingPrice  decimal.NullDecimal
	Strike           decimal.NullDecimal
	DaysToExpiration *int
	Intrinsic        decimal.NullDecimal
	Greeks           models.Greeks
}

// NewQuote builds an immutable quote snapshot. Price falls back to the
// bid/ask midpoint. For options, missing greeks are computed with est when
// price and underlying price are both known; est may be nil.
func NewQuote(p QuoteParams, est GreeksEstimator) models.Quote {
	q := models.Quote{
		Instrument: p.Instrument,
		AsOf:       p.AsOf,
		Bid:        p.Bid,
		Ask:        p.Ask,
		BidSize:    p.BidSize,
		AskSize:    p.AskSize,
		Price:      p.Price,
	}
	if !q.Price.Valid {
		if sum := p.Bid.Add(p.Ask); !sum.IsZero() {
			q.Price = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(2)))
		}
	}

	if !p.Instrument.IsOption() {
		return q
	}

	q.UnderlyingPrice = p.UnderlyingPrice
	q.Intrinsic = p.Intrinsic
	q.Strike = p.Instrument.Strike
	if p.Strike.Valid {
		q.Strike = p.Strike.Decimal
	}
	if p.DaysToExpiration != nil {
		q.DaysToExpiration = *p.DaysToExpiration
	} else {
		q.DaysToExpiration = p.Instrument.DaysToExpiration(p.AsOf)
	}
	q.Greeks = p.Greeks

	if est == nil || q.Greeks.Complete() || !q.Price.Valid || !q.UnderlyingPrice.Valid {
		return q
	}

	raw := est.Compute(GreeksInput{
		Kind:             p.Instrument.Kind,
		Strike:           q.Strike.InexactFloat64(),
		UnderlyingPrice:  q.UnderlyingPrice.Decimal.InexactFloat64(),
		DaysToExpiration: q.DaysToExpiration,
		Price:            q.Price.Decimal.Abs().InexactFloat64(),
	})
	q.Greeks.Delta = fillGreek(q.Greeks.Delta, raw.Delta)
	q.Greeks.IV = fillGreek(q.Greeks.IV, raw.IV)
	q.Greeks.Gamma = fillGreek(q.Greeks.Gamma, raw.Gamma)
	q.Greeks.Vega = fillGreek(q.Greeks.Vega, raw.Vega)
	q.Greeks.Theta = fillGreek(q.Greeks.Theta, raw.Theta)
	q.Greeks.Rho = fillGreek(q.Greeks.Rho, raw.Rho)
	return q
}

func fillGreek(have, computed *float64) *float64 {
	if have != nil || computed == nil || math.IsNaN(*computed) || math.IsInf(*computed, 0) {
		return have
	}
	v := *computed * greeksScale
	return &v
}
