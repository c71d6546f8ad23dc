// Package trading implements the execution and margin engine: order fills,
// position lifecycle, maintenance margin and OCO coordination.
package trading

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
	"paperbroker/internal/quotes"
)

var (
	contractSize    = decimal.NewFromInt(models.OptionMultiplier)
	nakedUnderlying = decimal.RequireFromString("0.20")
	nakedFloor      = decimal.RequireFromString("0.10")
)

// MarginCalculator computes maintenance margin from a position set.
type MarginCalculator struct {
	Classifier Classifier
}

// MaintenanceMargin computes the margin requirement with the basic
// classifier.
func MaintenanceMargin(positions []models.Position, src quotes.Source) (decimal.Decimal, error) {
	return MarginCalculator{}.MaintenanceMargin(positions, src)
}

// MaintenanceMargin groups positions into basic strategies and sums the
// per-strategy requirement. Missing quote data is fatal.
func (c MarginCalculator) MaintenanceMargin(positions []models.Position, src quotes.Source) (decimal.Decimal, error) {
	if src == nil {
		return decimal.Zero, apperrors.NewValidationError("quote_source", nil, "a quote source is required")
	}
	classifier := c.Classifier
	if classifier == nil {
		classifier = BasicClassifier{}
	}
	strategies, err := classifier.Classify(positions)
	if err != nil {
		return decimal.Zero, fmt.Errorf("classifying positions: %w", err)
	}

	total := decimal.Zero
	for _, s := range strategies {
		m, err := StrategyMargin(s, src)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(m)
	}
	return total, nil
}

// StrategyMargin returns the requirement for a single strategy.
func StrategyMargin(s Strategy, src quotes.Source) (decimal.Decimal, error) {
	switch s.Shape {
	case ShapeLongAsset, ShapeCovered, ShapeDebitSpread:
		return decimal.Zero, nil

	case ShapeShortEquity:
		price, err := priceOf(src, s.Instrument)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(abs64(s.Quantity)).Mul(price), nil

	case ShapeCreditPutSpread:
		sellPrice, err := priceOf(src, s.Sell)
		if err != nil {
			return decimal.Zero, err
		}
		buyPrice, err := priceOf(src, s.Buy)
		if err != nil {
			return decimal.Zero, err
		}
		width := s.Sell.Strike.Sub(s.Buy.Strike).Abs()
		credit := sellPrice.Abs().Sub(buyPrice.Abs()).Abs()
		return decimal.Max(width.Sub(credit), decimal.Zero).Mul(contractSize), nil

	case ShapeCreditCallSpread:
		return s.Buy.Strike.Sub(s.Sell.Strike).Mul(contractSize), nil

	case ShapeNakedShortPut, ShapeNakedShortCall:
		return nakedMargin(s, src)
	}
	return decimal.Zero, apperrors.NewStateError("maintenance_margin", s.Instrument.Symbol,
		fmt.Sprintf("no margin formula for strategy %q", s.Shape), apperrors.ErrUnknownStrategy)
}

// nakedMargin is option price plus the greater of 20% of the underlying less
// the out-of-the-money amount, or 10% of the strike (puts) / underlying
// (calls), per share.
func nakedMargin(s Strategy, src quotes.Source) (decimal.Decimal, error) {
	optionPrice, err := priceOf(src, s.Instrument)
	if err != nil {
		return decimal.Zero, err
	}
	underlying, ok := s.Instrument.UnderlyingInstrument()
	if !ok {
		return decimal.Zero, apperrors.NewStateError("maintenance_margin", s.Instrument.Symbol, "naked option without an underlying", apperrors.ErrUnknownStrategy)
	}
	underlyingPrice, err := priceOf(src, underlying)
	if err != nil {
		return decimal.Zero, err
	}
	strike := s.Instrument.Strike

	var otm, floor decimal.Decimal
	if s.Shape == ShapeNakedShortPut {
		otm = decimal.Max(decimal.Zero, underlyingPrice.Sub(strike))
		floor = nakedFloor.Mul(strike)
	} else {
		otm = decimal.Max(decimal.Zero, strike.Sub(underlyingPrice))
		floor = nakedFloor.Mul(underlyingPrice)
	}
	perShare := optionPrice.Abs().Add(decimal.Max(nakedUnderlying.Mul(underlyingPrice).Sub(otm), floor))
	contracts := decimal.NewFromInt(abs64(s.Quantity))
	return perShare.Mul(contractSize).Mul(contracts), nil
}

func priceOf(src quotes.Source, inst models.Instrument) (decimal.Decimal, error) {
	q, ok := src.Quote(inst)
	if !ok {
		return decimal.Zero, apperrors.NewDataError("quote", inst.Symbol, "missing quote for margin", apperrors.ErrQuoteNotFound)
	}
	if !q.Price.Valid {
		return decimal.Zero, apperrors.NewDataError("price", inst.Symbol, "missing price for margin", apperrors.ErrPriceUnavailable)
	}
	return q.Price.Decimal, nil
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
