package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		validation bool
		data       bool
		state      bool
		sentinel   error
	}{
		{
			name:       "bare validation matches input sentinel",
			err:        NewValidationError("quantity", 0, "must not be zero"),
			validation: true,
			sentinel:   ErrInputValidation,
		},
		{
			name:       "wrapped validation matches its sentinel",
			err:        fmt.Errorf("add leg: %w", WrapValidation(ErrDuplicateLeg, "symbol", "AAPL", "already in order")),
			validation: true,
			sentinel:   ErrDuplicateLeg,
		},
		{
			name:     "data error",
			err:      NewDataError("quote", "AAPL", "no quote", ErrQuoteNotFound),
			data:     true,
			sentinel: ErrQuoteNotFound,
		},
		{
			name:     "state error",
			err:      NewStateError("close", "AAPL", "not enough open", ErrInsufficientQuantity),
			state:    true,
			sentinel: ErrInsufficientQuantity,
		},
		{
			name:     "order error keeps the cause",
			err:      NewOrderError("O-1", "AAPL", "fill", "engine failed", NewStateError("close", "AAPL", "short", ErrInsufficientQuantity)),
			state:    true,
			sentinel: ErrInsufficientQuantity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidation(tt.err); got != tt.validation {
				t.Errorf("IsValidation = %v, want %v", got, tt.validation)
			}
			if got := IsData(tt.err); got != tt.data {
				t.Errorf("IsData = %v, want %v", got, tt.data)
			}
			if got := IsState(tt.err); got != tt.state {
				t.Errorf("IsState = %v, want %v", got, tt.state)
			}
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("error %q does not match %v", tt.err, tt.sentinel)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	err := NewDataError("quote", "SPY", "missing", nil)
	if got, want := err.Error(), "data error [quote] SPY: missing"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	var oe *OrderError
	wrapped := fmt.Errorf("broker: %w", NewOrderError("O-7", "SPY", "place", "rejected", errors.New("boom")))
	if !As(wrapped, &oe) {
		t.Fatal("As did not find OrderError")
	}
	if oe.OrderID != "O-7" {
		t.Errorf("OrderID = %q", oe.OrderID)
	}
	if got, want := oe.Error(), "order error [O-7] place SPY: rejected: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
