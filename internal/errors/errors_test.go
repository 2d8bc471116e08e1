package errors

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEventError(t *testing.T) {
	exDate := time.Date(2021, 3, 15, 0, 0, 0, 0, time.UTC)
	err := NewEventError("KO", exDate, 0.42, Wrap(ErrMissingPriceData, "no closes in window"))

	if !errors.Is(err, ErrMissingPriceData) {
		t.Error("EventError should unwrap to ErrMissingPriceData")
	}
	if msg := err.Error(); !strings.Contains(msg, "KO 2021-03-15") || !strings.Contains(msg, "no closes in window") {
		t.Errorf("message = %q", msg)
	}

	var ev *EventError
	if !As(Wrapf(err, "year %d", 2021), &ev) || ev.Amount != 0.42 {
		t.Errorf("As did not find the event error: %+v", ev)
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("targets", 1.5, "must be in (0, 1]")
	if !Is(err, ErrInvalidInput) {
		t.Error("ValidationError should match ErrInvalidInput")
	}
	if !strings.Contains(err.Error(), "targets (1.5)") {
		t.Errorf("message = %q", err.Error())
	}
}

func TestDataError(t *testing.T) {
	err := NewDataError("history", "PEP", "no file", ErrSymbolNotFound)
	if !errors.Is(err, ErrSymbolNotFound) {
		t.Error("DataError should unwrap to its cause")
	}
	if Wrap(nil, "ignored") != nil || Wrapf(nil, "ignored %d", 1) != nil {
		t.Error("wrapping nil should return nil")
	}
}
