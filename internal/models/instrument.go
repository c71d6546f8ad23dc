// Package models provides domain models for the paper brokerage.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
)

// InstrumentKind discriminates the tradable instrument variants.
type InstrumentKind string

const (
	KindEquity InstrumentKind = "equity"
	KindCall   InstrumentKind = "call"
	KindPut    InstrumentKind = "put"
)

// IsOption reports whether the kind is an option kind.
func (k InstrumentKind) IsOption() bool {
	return k == KindCall || k == KindPut
}

// Option symbol layout, read from the right:
// UNDERLYING + YYMMDD + C|P + strike*1000 padded to 8 digits.
const (
	strikeDigits    = 8
	expirationWidth = 6
	expirationFmt   = "060102"
	optionSuffixLen = strikeDigits + 1 + expirationWidth

	// Two-digit years decode into 1969..2068.
	minExpirationYear = 1969
	maxExpirationYear = 2068

	// OptionMultiplier is the contract size for standard equity options.
	OptionMultiplier = 100
)

// Instrument is a tradable symbol. Option fields are only set when Kind is
// KindCall or KindPut. Instruments are values and are never mutated after
// construction.
type Instrument struct {
	Symbol     string
	Kind       InstrumentKind
	Underlying string
	Strike     decimal.Decimal
	Expiration time.Time
}

// NormalizeSymbol uppercases a symbol and strips all whitespace.
func NormalizeSymbol(symbol string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, symbol)
}

// NewEquity creates an equity instrument.
func NewEquity(symbol string) Instrument {
	return Instrument{Symbol: NormalizeSymbol(symbol), Kind: KindEquity}
}

// NewOption builds an option instrument and encodes its symbol. The strike
// is kept to the nearest 0.001.
func NewOption(underlying string, expiration time.Time, kind InstrumentKind, strike decimal.Decimal) (Instrument, error) {
	underlying = NormalizeSymbol(underlying)
	if underlying == "" {
		return Instrument{}, apperrors.NewValidationError("underlying", underlying, "an underlying is required")
	}
	if !kind.IsOption() {
		return Instrument{}, apperrors.NewValidationError("kind", kind, "option kind must be call or put")
	}
	strike = strike.Round(3)
	if !strike.IsPositive() {
		return Instrument{}, apperrors.NewValidationError("strike", strike, "strike must be >= 0.001")
	}
	if expiration.IsZero() {
		return Instrument{}, apperrors.NewValidationError("expiration", expiration, "expiration date is required")
	}

	exp := dateOnly(expiration)
	if y := exp.Year(); y < minExpirationYear || y > maxExpirationYear {
		return Instrument{}, apperrors.NewValidationError("expiration", exp.Format("2006-01-02"),
			fmt.Sprintf("expiration year must be within %d-%d", minExpirationYear, maxExpirationYear))
	}
	milli := strike.Shift(3).IntPart()
	if milli >= 1e8 {
		return Instrument{}, apperrors.NewValidationError("strike", strike, "strike does not fit the symbol layout")
	}

	cp := "C"
	if kind == KindPut {
		cp = "P"
	}
	symbol := fmt.Sprintf("%s%s%s%0*d", underlying, exp.Format(expirationFmt), cp, strikeDigits, milli)

	return Instrument{
		Symbol:     symbol,
		Kind:       kind,
		Underlying: underlying,
		Strike:     strike,
		Expiration: exp,
	}, nil
}

// ParseInstrument decodes a symbol into an instrument. Symbols that decode
// as an option become options; everything else is an equity.
func ParseInstrument(symbol string) (Instrument, error) {
	sym := NormalizeSymbol(symbol)
	if sym == "" {
		return Instrument{}, apperrors.NewValidationError("symbol", symbol, "symbol is required")
	}
	if inst, ok := decodeOption(sym); ok {
		return inst, nil
	}
	return Instrument{Symbol: sym, Kind: KindEquity}, nil
}

// MustParseInstrument is like ParseInstrument but panics on error.
func MustParseInstrument(symbol string) Instrument {
	inst, err := ParseInstrument(symbol)
	if err != nil {
		panic(err)
	}
	return inst
}

func decodeOption(sym string) (Instrument, bool) {
	if len(sym) <= optionSuffixLen {
		return Instrument{}, false
	}
	n := len(sym)
	strikePart := sym[n-strikeDigits:]
	cp := sym[n-strikeDigits-1]
	expPart := sym[n-optionSuffixLen : n-strikeDigits-1]
	underlying := sym[:n-optionSuffixLen]

	milli, err := strconv.ParseInt(strikePart, 10, 64)
	if err != nil || milli <= 0 || strings.ContainsAny(strikePart, "+-") {
		return Instrument{}, false
	}
	var kind InstrumentKind
	switch cp {
	case 'C':
		kind = KindCall
	case 'P':
		kind = KindPut
	default:
		return Instrument{}, false
	}
	exp, err := time.Parse(expirationFmt, expPart)
	if err != nil {
		return Instrument{}, false
	}

	return Instrument{
		Symbol:     sym,
		Kind:       kind,
		Underlying: underlying,
		Strike:     decimal.New(milli, -3),
		Expiration: exp,
	}, true
}

// IsOption reports whether the instrument is a call or a put.
func (i Instrument) IsOption() bool {
	return i.Kind.IsOption()
}

// Multiplier returns the contract multiplier: 100 for options, 1 otherwise.
func (i Instrument) Multiplier() int64 {
	if i.IsOption() {
		return OptionMultiplier
	}
	return 1
}

// UnderlyingInstrument returns the equity an option is written on. For an
// equity it returns the zero Instrument and false.
func (i Instrument) UnderlyingInstrument() (Instrument, bool) {
	if !i.IsOption() {
		return Instrument{}, false
	}
	return NewEquity(i.Underlying), true
}

// Equal compares instruments by symbol, ignoring case.
func (i Instrument) Equal(other Instrument) bool {
	return strings.EqualFold(i.Symbol, other.Symbol)
}

// IntrinsicValue returns the in-the-money amount for an option at the given
// underlying price. ok is false for non-options.
func (i Instrument) IntrinsicValue(underlyingPrice decimal.Decimal) (value decimal.Decimal, ok bool) {
	switch i.Kind {
	case KindCall:
		return decimal.Max(underlyingPrice.Sub(i.Strike), decimal.Zero), true
	case KindPut:
		return decimal.Max(i.Strike.Sub(underlyingPrice), decimal.Zero), true
	}
	return decimal.Zero, false
}

// ExtrinsicValue returns |price| less the intrinsic value.
func (i Instrument) ExtrinsicValue(underlyingPrice, price decimal.Decimal) (decimal.Decimal, bool) {
	intrinsic, ok := i.IntrinsicValue(underlyingPrice)
	if !ok {
		return decimal.Zero, false
	}
	return price.Abs().Sub(intrinsic), true
}

// DaysToExpiration counts calendar days from asOf to the expiration date.
func (i Instrument) DaysToExpiration(asOf time.Time) int {
	if !i.IsOption() {
		return 0
	}
	return int(i.Expiration.Sub(dateOnly(asOf)).Hours() / 24)
}

func (i Instrument) String() string {
	return i.Symbol
}

// MarshalJSON encodes an instrument as its symbol; the symbol carries every
// other field.
func (i Instrument) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.Symbol)
}

// UnmarshalJSON decodes an instrument from its symbol.
func (i *Instrument) UnmarshalJSON(data []byte) error {
	var sym string
	if err := json.Unmarshal(data, &sym); err != nil {
		return err
	}
	inst, err := ParseInstrument(sym)
	if err != nil {
		return err
	}
	*i = inst
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
