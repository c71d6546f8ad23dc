package quotes

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/logging"
	"paperbroker/internal/models"
)

// Level-one services understood by OnMarketData.
const (
	ServiceEquities      = "LEVELONE_EQUITIES"
	ServiceOptions       = "LEVELONE_OPTIONS"
	ServiceFutureOptions = "LEVELONE_FUTURE_OPTIONS"
	serviceLevelOne      = "LEVELONE"
)

// MarketData is one translated message from a streaming quote feed.
type MarketData struct {
	Service   string
	Symbol    string
	Timestamp time.Time

	Bid     decimal.NullDecimal
	Ask     decimal.NullDecimal
	Last    decimal.NullDecimal
	Mark    decimal.NullDecimal
	BidSize int64
	AskSize int64

	UnderlyingPrice  decimal.NullDecimal
	Strike           decimal.NullDecimal
	Intrinsic        decimal.NullDecimal
	DaysToExpiration *int
	Greeks           models.Greeks
}

// OnMarketData is the ingestion callback for a streaming feed. Messages from
// non level-one services are ignored. The mark price wins over the last
// trade price.
func (m *MemorySource) OnMarketData(md MarketData) error {
	service := strings.ToUpper(md.Service)
	if md.Symbol == "" || service == "" {
		return apperrors.NewValidationError("market_data", md.Symbol, "service and symbol are required")
	}
	if !strings.HasPrefix(service, serviceLevelOne) {
		m.logger.Debug().Str("service", service).Str("symbol", md.Symbol).Msg("Ignoring non level-one message")
		return nil
	}

	inst, err := instrumentFor(service, md.Symbol)
	if err != nil {
		log := logging.WithSymbol(m.logger, md.Symbol)
		log.Warn().Err(err).Str("service", service).Msg("Dropping market data")
		return err
	}

	price := md.Mark
	if !price.Valid {
		price = md.Last
	}

	q := NewQuote(QuoteParams{
		Instrument:       inst,
		AsOf:             md.Timestamp,
		Price:            price,
		Bid:              md.Bid.Decimal,
		Ask:              md.Ask.Decimal,
		BidSize:          md.BidSize,
		AskSize:          md.AskSize,
		UnderlyingPrice:  md.UnderlyingPrice,
		Strike:           md.Strike,
		DaysToExpiration: md.DaysToExpiration,
		Intrinsic:        md.Intrinsic,
		Greeks:           md.Greeks,
	}, m.greeks)

	m.mu.Lock()
	switch {
	case service == ServiceEquities:
		m.putLocked(q, m.equities)
	case inst.IsOption():
		m.putLocked(q, m.options)
	default:
		m.putLocked(q, m.other)
	}
	m.mu.Unlock()
	return nil
}

func instrumentFor(service, symbol string) (models.Instrument, error) {
	switch service {
	case ServiceEquities:
		return models.NewEquity(symbol), nil
	case ServiceOptions, ServiceFutureOptions:
		inst, err := models.ParseInstrument(symbol)
		if err != nil {
			return models.Instrument{}, err
		}
		if !inst.IsOption() {
			return models.Instrument{}, apperrors.NewDataError("option", inst.Symbol, "symbol is not an option symbol", nil)
		}
		return inst, nil
	}
	return models.ParseInstrument(symbol)
}
