package trading

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/ledger"
	"paperbroker/internal/models"
	"paperbroker/internal/quotes"
)

var hundred = decimal.NewFromInt(100)

// Executor decides whether an order fills and applies fills to an account.
// It is synchronous and holds no account state between calls; callers must
// not mutate the account concurrently with Fill.
type Executor struct {
	Quotes    quotes.Source
	Estimator quotes.Estimator
	Margin    MarginCalculator
	Now       func() time.Time
}

// FillOrder evaluates order against account with the given quote source and
// price estimator. A nil estimator uses quotes.MidpointEstimator.
func FillOrder(account *models.Account, order *models.Order, src quotes.Source, est quotes.Estimator) (*models.Account, error) {
	e := &Executor{Quotes: src, Estimator: est}
	return e.Fill(account, order)
}

// Fill evaluates the order's condition and, when it is met, applies every
// leg in stored order, appends one ledger entry per leg, prunes closed
// positions and refreshes maintenance margin.
//
// A fatal error part-way through leaves earlier legs of this call applied
// and the order open; that includes a failed margin refresh.
// When the condition is not met only trailing-stop state changes.
func (e *Executor) Fill(account *models.Account, order *models.Order) (*models.Account, error) {
	if account == nil {
		return nil, apperrors.NewValidationError("account", nil, "an account is required")
	}
	if order == nil || order.LegCount() == 0 {
		return account, apperrors.WrapValidation(apperrors.ErrInvalidOrder, "legs", 0, "orders must have one or more legs")
	}
	if e.Quotes == nil {
		return account, apperrors.NewValidationError("quote_source", nil, "a quote source is required")
	}
	if !order.IsOpen() {
		return account, apperrors.NewStateError("fill", order.ID, fmt.Sprintf("order is %s", order.Status()), apperrors.ErrOrderNotOpen)
	}

	legs := order.Legs()
	priced, orderPrice, err := e.priceLegs(legs)
	if err != nil {
		return account, err
	}

	if order.Condition == models.ConditionTrailingStop {
		updateTrail(order, orderPrice)
	}
	if !Triggered(order, orderPrice) {
		return account, nil
	}

	for i, leg := range legs {
		if err := e.applyLeg(account, order, leg, priced[i]); err != nil {
			return account, err
		}
	}

	pruneClosed(account)
	margin, err := e.Margin.MaintenanceMargin(account.Positions, e.Quotes)
	if err != nil {
		return account, fmt.Errorf("refreshing maintenance margin: %w", err)
	}
	account.MaintenanceMargin = margin

	if err := order.MarkFilled(); err != nil {
		return account, err
	}
	return account, nil
}

// pricedLeg is a leg's signed per-unit estimate and the quote it came from.
type pricedLeg struct {
	price decimal.Decimal
	quote *models.Quote
}

func (e *Executor) priceLegs(legs []models.Leg) ([]pricedLeg, decimal.Decimal, error) {
	est := e.Estimator
	if est == nil {
		est = quotes.MidpointEstimator{}
	}

	priced := make([]pricedLeg, len(legs))
	orderPrice := decimal.Zero
	for i, leg := range legs {
		q := quotes.Lookup(e.Quotes, leg.Instrument)
		if q == nil {
			return nil, decimal.Zero, apperrors.NewDataError("quote", leg.Instrument.Symbol, "no quote to price leg", apperrors.ErrQuoteNotFound)
		}
		px, err := est.Estimate(q, leg.Quantity)
		if err != nil {
			return nil, decimal.Zero, fmt.Errorf("pricing %s: %w", leg.Instrument.Symbol, err)
		}
		px = px.Abs()
		if leg.Quantity < 0 {
			px = px.Neg()
		}
		priced[i] = pricedLeg{price: px, quote: q}
		orderPrice = orderPrice.Add(px.Mul(decimal.NewFromInt(abs64(leg.Quantity))))
	}
	return priced, orderPrice, nil
}

// updateTrail ratchets the best observed order price down and re-derives the
// trailing trigger from it.
func updateTrail(order *models.Order, orderPrice decimal.Decimal) {
	best := orderPrice
	if order.TrailBest.Valid && order.TrailBest.Decimal.LessThan(best) {
		best = order.TrailBest.Decimal
	}
	order.TrailBest = decimal.NewNullDecimal(best)

	amount := order.Trail.Abs()
	if order.TrailIsPercent {
		amount = best.Abs().Mul(order.Trail).Div(hundred)
	}
	order.Price = decimal.NewNullDecimal(best.Add(amount))
}

// Triggered reports whether the order's condition is met at orderPrice.
func Triggered(order *models.Order, orderPrice decimal.Decimal) bool {
	switch order.Condition {
	case models.ConditionMarket:
		return true
	case models.ConditionLimit:
		return order.Price.Valid && orderPrice.LessThanOrEqual(order.Price.Decimal)
	case models.ConditionStop, models.ConditionTrailingStop:
		return order.Price.Valid && orderPrice.GreaterThanOrEqual(order.Price.Decimal)
	}
	return false
}

func (e *Executor) applyLeg(account *models.Account, order *models.Order, leg models.Leg, p pricedLeg) error {
	cost := p.price
	if leg.Type.IsBuy() && (leg.Quantity < 0 || cost.IsNegative()) {
		return apperrors.WrapValidation(apperrors.ErrLegPolarity, "leg", leg.Instrument.Symbol, "buy legs must have positive quantity and price")
	}
	if leg.Type.IsSell() && (leg.Quantity > 0 || cost.IsPositive()) {
		return apperrors.WrapValidation(apperrors.ErrLegPolarity, "leg", leg.Instrument.Symbol, "sell legs must have negative quantity and price")
	}

	before := account.NetQuantity(leg.Instrument)
	if !leg.Type.IsOpening() {
		if err := checkClosable(account, leg); err != nil {
			return err
		}
	}

	mult := leg.Instrument.Multiplier()
	qty := decimal.NewFromInt(leg.Quantity)
	gross := cost.Mul(qty).Abs().Mul(decimal.NewFromInt(mult))
	cashDelta := gross.Neg()
	if leg.Quantity < 0 {
		cashDelta = gross
	}
	account.Cash = account.Cash.Add(cashDelta)

	if leg.Type.IsOpening() {
		snapshot := *p.quote
		account.Positions = append(account.Positions, models.Position{
			Instrument:  leg.Instrument,
			Quantity:    leg.Quantity,
			CostBasis:   cost,
			QuoteAtOpen: &snapshot,
		})
	} else {
		drainPositions(account, leg)
	}

	ts := p.quote.AsOf
	if ts.IsZero() {
		ts = e.now()
	}
	ledger.Record(account, models.LedgerEntry{
		Timestamp:         ts,
		AccountID:         account.ID,
		OrderID:           order.ID,
		Symbol:            leg.Instrument.Symbol,
		Kind:              leg.Instrument.Kind,
		UnderlyingSymbol:  leg.Instrument.Underlying,
		Side:              leg.Type,
		Quantity:          leg.Quantity,
		Multiplier:        mult,
		FillPrice:         cost.Abs(),
		CashDelta:         cashDelta,
		PositionQtyBefore: before,
		PositionQtyAfter:  account.NetQuantity(leg.Instrument),
	})
	return nil
}

// checkClosable verifies that positions opposite in sign to the leg hold at
// least the leg's magnitude.
func checkClosable(account *models.Account, leg models.Leg) error {
	var available int64
	found := false
	for _, p := range account.Positions {
		if closes(p, leg) {
			found = true
			available += abs64(p.Quantity)
		}
	}
	if !found {
		return apperrors.NewStateError(string(leg.Type), leg.Instrument.Symbol, "there are no open positions to close", apperrors.ErrInsufficientQuantity)
	}
	if available < abs64(leg.Quantity) {
		return apperrors.NewStateError(string(leg.Type), leg.Instrument.Symbol,
			fmt.Sprintf("need %d to close, %d open", abs64(leg.Quantity), available), apperrors.ErrInsufficientQuantity)
	}
	return nil
}

// drainPositions reduces closable positions in stored order until the leg's
// magnitude is consumed.
func drainPositions(account *models.Account, leg models.Leg) {
	remaining := abs64(leg.Quantity)
	for i := range account.Positions {
		if remaining == 0 {
			break
		}
		p := &account.Positions[i]
		if !closes(*p, leg) {
			continue
		}
		n := min64(remaining, abs64(p.Quantity))
		if p.Quantity > 0 {
			p.Quantity -= n
		} else {
			p.Quantity += n
		}
		remaining -= n
	}
}

func closes(p models.Position, leg models.Leg) bool {
	if !p.Instrument.Equal(leg.Instrument) || p.Quantity == 0 {
		return false
	}
	return (p.Quantity > 0) != (leg.Quantity > 0)
}

func pruneClosed(account *models.Account) {
	open := account.Positions[:0]
	for _, p := range account.Positions {
		if p.Quantity != 0 {
			open = append(open, p)
		}
	}
	account.Positions = open
}

func (e *Executor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}
