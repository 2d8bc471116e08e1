// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrMissingPriceData = errors.New("missing price data")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidDividend  = errors.New("invalid dividend")
	ErrSymbolNotFound   = errors.New("symbol not found")
	ErrDataNotFound     = errors.New("data not found")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrCacheMiss        = errors.New("cache miss")
	ErrRateLimited      = errors.New("rate limited")
	ErrConnectionFailed = errors.New("connection failed")
)

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// Unwrap lets callers match any validation failure with ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// DataError represents a data-related error.
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

// EventError represents the failure of a single dividend event.
type EventError struct {
	Symbol string
	ExDate time.Time
	Amount float64
	Err    error
}

func (e *EventError) Error() string {
	if e.Symbol != "" {
		return fmt.Sprintf("event error [%s %s]: %v", e.Symbol, e.ExDate.Format("2006-01-02"), e.Err)
	}
	return fmt.Sprintf("event error [%s]: %v", e.ExDate.Format("2006-01-02"), e.Err)
}

func (e *EventError) Unwrap() error {
	return e.Err
}

// NewEventError creates a new EventError.
func NewEventError(symbol string, exDate time.Time, amount float64, err error) *EventError {
	return &EventError{
		Symbol: symbol,
		ExDate: exDate,
		Amount: amount,
		Err:    err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
