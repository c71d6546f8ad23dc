package quotes

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"paperbroker/internal/models"
)

// quoteRow is the on-disk CSV layout of a quote snapshot file.
type quoteRow struct {
	Symbol          string `csv:"symbol"`
	AsOf            string `csv:"as_of"`
	Bid             string `csv:"bid"`
	Ask             string `csv:"ask"`
	BidSize         int64  `csv:"bid_size"`
	AskSize         int64  `csv:"ask_size"`
	Price           string `csv:"price"`
	UnderlyingPrice string `csv:"underlying_price"`
}

// ReadCSV parses a quote snapshot file. Empty price columns are treated as
// absent; missing option greeks are computed with est.
func ReadCSV(r io.Reader, est GreeksEstimator) ([]models.Quote, error) {
	var rows []quoteRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parsing quotes: %w", err)
	}

	out := make([]models.Quote, 0, len(rows))
	for i, row := range rows {
		q, err := row.quote(est)
		if err != nil {
			return nil, fmt.Errorf("quote row %d: %w", i+1, err)
		}
		out = append(out, q)
	}
	return out, nil
}

// LoadCSVFile reads a quote snapshot file from disk into src.
func LoadCSVFile(path string, src *MemorySource, est GreeksEstimator) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening quotes file: %w", err)
	}
	defer f.Close()

	qs, err := ReadCSV(f, est)
	if err != nil {
		return 0, err
	}
	src.PutAll(qs)
	return len(qs), nil
}

func (row quoteRow) quote(est GreeksEstimator) (models.Quote, error) {
	inst, err := models.ParseInstrument(row.Symbol)
	if err != nil {
		return models.Quote{}, err
	}
	asOf, err := parseAsOf(row.AsOf)
	if err != nil {
		return models.Quote{}, err
	}
	bid, err := parseNull(row.Bid)
	if err != nil {
		return models.Quote{}, fmt.Errorf("bid: %w", err)
	}
	ask, err := parseNull(row.Ask)
	if err != nil {
		return models.Quote{}, fmt.Errorf("ask: %w", err)
	}
	price, err := parseNull(row.Price)
	if err != nil {
		return models.Quote{}, fmt.Errorf("price: %w", err)
	}
	underlying, err := parseNull(row.UnderlyingPrice)
	if err != nil {
		return models.Quote{}, fmt.Errorf("underlying_price: %w", err)
	}

	return NewQuote(QuoteParams{
		Instrument:      inst,
		AsOf:            asOf,
		Price:           price,
		Bid:             bid.Decimal,
		Ask:             ask.Decimal,
		BidSize:         row.BidSize,
		AskSize:         row.AskSize,
		UnderlyingPrice: underlying,
	}, est), nil
}

func parseNull(s string) (decimal.NullDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func parseAsOf(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
