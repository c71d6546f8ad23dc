package quotes

import (
	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
)

// Estimator returns an unsigned per-unit price estimate for filling quantity
// against q. A nil quote is a DataError, never a silent default.
type Estimator interface {
	Estimate(q *models.Quote, quantity int64) (decimal.Decimal, error)
}

// MidpointEstimator fills at the quote price, which is the bid/ask midpoint
// unless the feed supplied an explicit price. It is the default estimator.
type MidpointEstimator struct{}

// Estimate implements Estimator.
func (MidpointEstimator) Estimate(q *models.Quote, quantity int64) (decimal.Decimal, error) {
	if q == nil {
		return decimal.Zero, apperrors.NewDataError("quote", "", "no quote available to estimate a fill price", apperrors.ErrQuoteNotFound)
	}
	if !q.Price.Valid {
		return decimal.Zero, apperrors.NewDataError("price", q.Instrument.Symbol, "quote has no price", apperrors.ErrPriceUnavailable)
	}
	return q.Price.Decimal.Abs(), nil
}

// NaturalEstimator fills buys at the ask and sells at the bid, falling back
// to the quote price when that side of the book is empty.
type NaturalEstimator struct{}

// Estimate implements Estimator.
func (NaturalEstimator) Estimate(q *models.Quote, quantity int64) (decimal.Decimal, error) {
	if q == nil {
		return decimal.Zero, apperrors.NewDataError("quote", "", "no quote available to estimate a fill price", apperrors.ErrQuoteNotFound)
	}
	side := q.Ask
	if quantity < 0 {
		side = q.Bid
	}
	if side.IsPositive() {
		return side, nil
	}
	return MidpointEstimator{}.Estimate(q, quantity)
}

// EstimatorByName resolves a configured estimator name.
func EstimatorByName(name string) (Estimator, error) {
	switch name {
	case "", "midpoint":
		return MidpointEstimator{}, nil
	case "natural":
		return NaturalEstimator{}, nil
	}
	return nil, apperrors.NewValidationError("estimator", name, "estimator must be midpoint or natural")
}
