package trading

import (
	"paperbroker/internal/models"
)

// Shape is a basic strategy shape the margin engine knows how to price.
type Shape string

const (
	ShapeLongAsset        Shape = "long_asset"
	ShapeShortEquity      Shape = "short_equity"
	ShapeCovered          Shape = "covered"
	ShapeDebitSpread      Shape = "debit_spread"
	ShapeCreditPutSpread  Shape = "credit_put_spread"
	ShapeCreditCallSpread Shape = "credit_call_spread"
	ShapeNakedShortPut    Shape = "naked_short_put"
	ShapeNakedShortCall   Shape = "naked_short_call"
)

// Strategy is a group of positions priced together for margin.
//
// Single-instrument shapes use Instrument and Quantity. Spreads set Sell and
// Buy and always describe one contract pair. Covered shapes set Instrument to
// the short option and Cover to the covering position.
type Strategy struct {
	Shape      Shape
	Instrument models.Instrument
	Quantity   int64
	Sell       models.Instrument
	Buy        models.Instrument
	Cover      models.Instrument
}

// Classifier groups raw positions into basic strategies.
type Classifier interface {
	Classify(positions []models.Position) ([]Strategy, error)
}

// BasicClassifier nets positions per instrument, then pairs short calls with
// long underlying shares as covered calls, pairs remaining short options with
// long options of the same underlying, kind and expiration as vertical
// spreads, and reports everything left over on its own. Pairing follows the
// order in which instruments first appear in the position list.
type BasicClassifier struct{}

type netPosition struct {
	inst models.Instrument
	qty  int64
}

// Classify implements Classifier.
func (BasicClassifier) Classify(positions []models.Position) ([]Strategy, error) {
	nets := netPositions(positions)
	var out []Strategy

	// Covered calls: 100 long shares cover one short call.
	for _, short := range nets {
		if short.qty >= 0 || short.inst.Kind != models.KindCall {
			continue
		}
		for _, stock := range nets {
			if stock.inst.Kind != models.KindEquity || stock.inst.Symbol != short.inst.Underlying || stock.qty < models.OptionMultiplier {
				continue
			}
			contracts := min64(-short.qty, stock.qty/models.OptionMultiplier)
			out = append(out, Strategy{
				Shape:      ShapeCovered,
				Instrument: short.inst,
				Quantity:   -contracts,
				Cover:      stock.inst,
			})
			short.qty += contracts
			stock.qty -= contracts * models.OptionMultiplier
			if short.qty == 0 {
				break
			}
		}
	}

	// Vertical spreads, one strategy per contract pair.
	for _, short := range nets {
		if short.qty >= 0 || !short.inst.IsOption() {
			continue
		}
		for _, long := range nets {
			if long.qty <= 0 || !pairable(short.inst, long.inst) {
				continue
			}
			pairs := min64(-short.qty, long.qty)
			for i := int64(0); i < pairs; i++ {
				out = append(out, spread(short.inst, long.inst))
			}
			short.qty += pairs
			long.qty -= pairs
			if short.qty == 0 {
				break
			}
		}
	}

	for _, n := range nets {
		switch {
		case n.qty == 0:
		case n.qty > 0:
			out = append(out, Strategy{Shape: ShapeLongAsset, Instrument: n.inst, Quantity: n.qty})
		case n.inst.Kind == models.KindEquity:
			out = append(out, Strategy{Shape: ShapeShortEquity, Instrument: n.inst, Quantity: n.qty})
		case n.inst.Kind == models.KindPut:
			out = append(out, Strategy{Shape: ShapeNakedShortPut, Instrument: n.inst, Quantity: n.qty})
		case n.inst.Kind == models.KindCall:
			out = append(out, Strategy{Shape: ShapeNakedShortCall, Instrument: n.inst, Quantity: n.qty})
		default:
			out = append(out, Strategy{Shape: Shape("short_" + string(n.inst.Kind)), Instrument: n.inst, Quantity: n.qty})
		}
	}
	return out, nil
}

func netPositions(positions []models.Position) []*netPosition {
	index := make(map[string]*netPosition)
	var nets []*netPosition
	for _, p := range positions {
		n, ok := index[p.Instrument.Symbol]
		if !ok {
			n = &netPosition{inst: p.Instrument}
			index[p.Instrument.Symbol] = n
			nets = append(nets, n)
		}
		n.qty += p.Quantity
	}
	return nets
}

func pairable(a, b models.Instrument) bool {
	return a.Kind == b.Kind && a.Underlying == b.Underlying && a.Expiration.Equal(b.Expiration)
}

// spread labels a sold/bought vertical as credit or debit. A put spread is a
// credit when the sold strike is higher; a call spread when it is lower.
func spread(sell, buy models.Instrument) Strategy {
	s := Strategy{Shape: ShapeDebitSpread, Sell: sell, Buy: buy, Quantity: 1}
	switch sell.Kind {
	case models.KindPut:
		if sell.Strike.GreaterThan(buy.Strike) {
			s.Shape = ShapeCreditPutSpread
		}
	case models.KindCall:
		if sell.Strike.LessThan(buy.Strike) {
			s.Shape = ShapeCreditCallSpread
		}
	}
	return s
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
