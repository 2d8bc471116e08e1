package cli

import (
	"testing"
	"time"

	"dividend-recovery/internal/recovery"
)

func TestFormatTarget(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0.5, "50%"},
		{0.75, "75%"},
		{1.0, "100%"},
		{0.125, "12.5%"},
	}
	for _, tt := range tests {
		if got := FormatTarget(tt.in); got != tt.want {
			t.Errorf("FormatTarget(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseTargets(t *testing.T) {
	got, err := ParseTargets([]string{"50%", "0.75,1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{0.5, 0.75, 1.0}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("target %d = %v, want %v", i, got[i], want[i])
		}
	}

	for _, bad := range [][]string{{"150%"}, {"0"}, {"half"}, {"0.5", "50%"}, {}} {
		if _, err := ParseTargets(bad); err == nil {
			t.Errorf("ParseTargets(%v) expected an error", bad)
		}
	}
}

func TestFormatDaysAndMean(t *testing.T) {
	if got := FormatDays(recovery.NotReached); got != NotAvailable {
		t.Errorf("FormatDays(NotReached) = %q", got)
	}
	if got := FormatDays(0); got != "0" {
		t.Errorf("FormatDays(0) = %q", got)
	}
	if got := FormatMean(recovery.TargetAverage{Target: 1}); got != NotAvailable {
		t.Errorf("undefined mean = %q", got)
	}
	if got := FormatMean(recovery.TargetAverage{Target: 1, Mean: 4, Reached: 2, Defined: true}); got != "4.00" {
		t.Errorf("mean = %q", got)
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := FormatPrice(123.456); got != "123.46" {
		t.Errorf("FormatPrice = %q", got)
	}
	if got := FormatPrice(1.23456); got != "1.2346" {
		t.Errorf("FormatPrice small = %q", got)
	}
	if got := FormatAmount(0.2775); got != "0.2775" {
		t.Errorf("FormatAmount = %q", got)
	}
	if got := FormatDate(time.Time{}, ""); got != "-" {
		t.Errorf("FormatDate zero = %q", got)
	}
	if got := FormatDate(time.Date(2021, 3, 14, 0, 0, 0, 0, time.UTC), "02-Jan-2006"); got != "14-Mar-2021" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := formatYearSpan(2021, 3); got != "2019-2021" {
		t.Errorf("formatYearSpan = %q", got)
	}
	if got := FormatDuration(90 * time.Minute); got != "1h 30m" {
		t.Errorf("FormatDuration = %q", got)
	}
}

func TestStripANSI(t *testing.T) {
	if got := stripANSI("\x1b[1;32mOK\x1b[0m"); got != "OK" {
		t.Errorf("stripANSI = %q", got)
	}
}
