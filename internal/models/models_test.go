package models

import (
	"math"
	"testing"
	"time"
)

func TestValidateSeries(t *testing.T) {
	day := func(d, h int) time.Time {
		return time.Date(2022, 6, d, h, 0, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		prices  []PricePoint
		wantErr bool
	}{
		{"empty", nil, false},
		{"ascending", []PricePoint{{day(13, 0), 100}, {day(14, 0), 101}}, false},
		{"ascending with intraday times", []PricePoint{{day(13, 16), 100}, {day(14, 9), 101}}, false},
		{"duplicate day", []PricePoint{{day(13, 0), 100}, {day(13, 0), 101}}, true},
		{"same day at different times", []PricePoint{{day(13, 9), 100}, {day(13, 16), 101}}, true},
		{"descending", []PricePoint{{day(14, 0), 100}, {day(13, 0), 101}}, true},
		{"zero close", []PricePoint{{day(13, 0), 0}}, true},
		{"NaN close", []PricePoint{{day(13, 0), math.NaN()}}, true},
		{"infinite close", []PricePoint{{day(13, 0), math.Inf(1)}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSeries(tt.prices)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateSeries() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	got := Day(time.Date(2022, 6, 15, 22, 30, 0, 0, loc))
	if want := time.Date(2022, 6, 15, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("Day = %v, want %v", got, want)
	}
}
