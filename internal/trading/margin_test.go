package trading

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	apperrors "paperbroker/internal/errors"
	"paperbroker/internal/models"
)

func TestMaintenanceMargin(t *testing.T) {
	tests := []struct {
		name      string
		quotes    map[string]string
		positions []models.Position
		want      string
	}{
		{
			name:      "short equity",
			quotes:    map[string]string{"XYZ": "50.00"},
			positions: []models.Position{position("XYZ", -100)},
			want:      "5000",
		},
		{
			name:      "naked short put",
			quotes:    map[string]string{"XYZ": "105", "XYZ240119P00100000": "2.00"},
			positions: []models.Position{position("XYZ240119P00100000", -1)},
			want:      "1800",
		},
		{
			name:      "naked short call uses the underlying floor",
			quotes:    map[string]string{"XYZ": "95", "XYZ240119C00100000": "1.00"},
			positions: []models.Position{position("XYZ240119C00100000", -2)},
			want:      "3000",
		},
		{
			name:   "credit put spread",
			quotes: map[string]string{"XYZ240119P00100000": "3.00", "XYZ240119P00095000": "1.50"},
			positions: []models.Position{
				position("XYZ240119P00100000", -1),
				position("XYZ240119P00095000", 1),
			},
			want: "350",
		},
		{
			name:   "credit put spread per contract pair",
			quotes: map[string]string{"XYZ240119P00100000": "3.00", "XYZ240119P00095000": "1.50"},
			positions: []models.Position{
				position("XYZ240119P00100000", -2),
				position("XYZ240119P00095000", 2),
			},
			want: "700",
		},
		{
			name: "credit call spread",
			positions: []models.Position{
				position("XYZ240119C00100000", -1),
				position("XYZ240119C00105000", 1),
			},
			want: "500",
		},
		{
			name: "debit spread",
			positions: []models.Position{
				position("XYZ240119C00105000", -1),
				position("XYZ240119C00100000", 1),
			},
			want: "0",
		},
		{
			name: "covered call",
			positions: []models.Position{
				position("XYZ", 100),
				position("XYZ240119C00110000", -1),
			},
			want: "0",
		},
		{
			name:      "long assets",
			positions: []models.Position{position("XYZ", 10), position("XYZ240119P00095000", 3)},
			want:      "0",
		},
		{
			name:      "no positions",
			positions: nil,
			want:      "0",
		},
		{
			name:   "positions net per instrument",
			quotes: map[string]string{"XYZ": "50.00"},
			positions: []models.Position{
				position("XYZ", -100),
				position("XYZ", 40),
			},
			want: "3000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newSource()
			for sym, px := range tt.quotes {
				putQuote(src, sym, px)
			}
			got, err := MaintenanceMargin(tt.positions, src)
			if err != nil {
				t.Fatalf("MaintenanceMargin: %v", err)
			}
			if !got.Equal(dec(tt.want)) {
				t.Errorf("margin = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestMaintenanceMargin_MissingData(t *testing.T) {
	src := newSource()

	_, err := MaintenanceMargin([]models.Position{position("XYZ", -10)}, src)
	if !apperrors.IsData(err) || !errors.Is(err, apperrors.ErrQuoteNotFound) {
		t.Errorf("expected quote-not-found data error, got %v", err)
	}

	// The option is quoted but its underlying is not.
	putQuote(src, "XYZ240119P00100000", "2.00")
	_, err = MaintenanceMargin([]models.Position{position("XYZ240119P00100000", -1)}, src)
	if !errors.Is(err, apperrors.ErrQuoteNotFound) {
		t.Errorf("expected ErrQuoteNotFound for the underlying, got %v", err)
	}

	src.Put(models.Quote{Instrument: models.NewEquity("ABC")})
	_, err = MaintenanceMargin([]models.Position{position("ABC", -1)}, src)
	if !errors.Is(err, apperrors.ErrPriceUnavailable) {
		t.Errorf("expected ErrPriceUnavailable, got %v", err)
	}

	if _, err := MaintenanceMargin(nil, nil); !apperrors.IsValidation(err) {
		t.Errorf("expected validation error for a nil source, got %v", err)
	}
}

type fixedClassifier []Strategy

func (c fixedClassifier) Classify([]models.Position) ([]Strategy, error) {
	return c, nil
}

func TestMaintenanceMargin_UnknownStrategy(t *testing.T) {
	calc := MarginCalculator{Classifier: fixedClassifier{{Shape: Shape("butterfly"), Instrument: models.NewEquity("XYZ")}}}
	_, err := calc.MaintenanceMargin(nil, newSource())
	if !apperrors.IsState(err) || !errors.Is(err, apperrors.ErrUnknownStrategy) {
		t.Fatalf("expected ErrUnknownStrategy state error, got %v", err)
	}
}

func TestBasicClassifier(t *testing.T) {
	positions := []models.Position{
		position("XYZ", 150),
		position("XYZ240119C00110000", -2),
		position("XYZ240119P00100000", -1),
	}
	got, err := BasicClassifier{}.Classify(positions)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	want := []struct {
		shape Shape
		qty   int64
	}{
		{ShapeCovered, -1},
		{ShapeLongAsset, 50},
		{ShapeNakedShortCall, -1},
		{ShapeNakedShortPut, -1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d strategies: %+v", len(got), got)
	}
	for i, w := range want {
		if got[i].Shape != w.shape || got[i].Quantity != w.qty {
			t.Errorf("strategy %d = %s %d, want %s %d", i, got[i].Shape, got[i].Quantity, w.shape, w.qty)
		}
	}
	if !got[0].Cover.Equal(models.NewEquity("XYZ")) {
		t.Errorf("covered call cover = %s", got[0].Cover)
	}
}

func TestStrategyMargin_CreditClampedAtZero(t *testing.T) {
	src := newSource()
	sell := putQuote(src, "XYZ240119P00100000", "9.00")
	buy := putQuote(src, "XYZ240119P00099000", "1.00")

	m, err := StrategyMargin(Strategy{Shape: ShapeCreditPutSpread, Sell: sell, Buy: buy, Quantity: 1}, src)
	if err != nil {
		t.Fatalf("StrategyMargin: %v", err)
	}
	if !m.Equal(decimal.Zero) {
		t.Errorf("margin = %s, want 0", m)
	}
}
