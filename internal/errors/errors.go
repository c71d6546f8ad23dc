// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInputValidation      = errors.New("input validation failed")
	ErrInvalidOrder         = errors.New("invalid order")
	ErrDuplicateLeg         = errors.New("duplicate instrument in order")
	ErrLegPolarity          = errors.New("leg sign does not match order type")
	ErrInvalidTrail         = errors.New("invalid trailing stop configuration")
	ErrQuoteNotFound        = errors.New("quote not found")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrInsufficientQuantity = errors.New("insufficient open quantity")
	ErrUnknownStrategy      = errors.New("unrecognized strategy shape")
	ErrOrderNotOpen         = errors.New("order is not open")
	ErrAccountNotFound      = errors.New("account not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDatabaseError        = errors.New("database error")
)

// ValidationError represents a validation error. It is always fatal and
// never retried.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err == nil {
		return ErrInputValidation
	}
	return e.Err
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// WrapValidation creates a ValidationError that matches the given sentinel.
func WrapValidation(sentinel error, field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     sentinel,
	}
}

// DataError represents a data-related error, typically a missing quote or
// price where one is required.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// StateError represents an operation that the current account or order
// state cannot satisfy.
type StateError struct {
	Operation string
	Symbol    string
	Message   string
	Err       error
}

func (e *StateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("state error [%s] %s: %s: %v", e.Operation, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("state error [%s] %s: %s", e.Operation, e.Symbol, e.Message)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// NewStateError creates a new StateError.
func NewStateError(operation, symbol, message string, err error) *StateError {
	return &StateError{
		Operation: operation,
		Symbol:    symbol,
		Message:   message,
		Err:       err,
	}
}

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Symbol:  symbol,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsData reports whether err is or wraps a DataError.
func IsData(err error) bool {
	var d *DataError
	return errors.As(err, &d)
}

// IsState reports whether err is or wraps a StateError.
func IsState(err error) bool {
	var s *StateError
	return errors.As(err, &s)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
