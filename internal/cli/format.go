package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"dividend-recovery/internal/recovery"
)

// NotAvailable is shown for a target that was never reached or has no average.
const NotAvailable = "N/A"

// FormatTarget formats a recovery fraction as a percentage, e.g. 0.75 -> "75%".
func FormatTarget(f float64) string {
	return strconv.FormatFloat(f*100, 'f', -1, 64) + "%"
}

// ParseTarget accepts a fraction ("0.75") or a percentage ("75%").
func ParseTarget(s string) (float64, error) {
	s = strings.TrimSpace(s)
	pct := strings.HasSuffix(s, "%")
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid target %q", s)
	}
	if pct {
		v /= 100
	}
	return v, nil
}

// ParseTargets parses a list of targets and validates the result.
func ParseTargets(values []string) ([]float64, error) {
	targets := make([]float64, 0, len(values))
	for _, s := range values {
		for _, part := range strings.Split(s, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			v, err := ParseTarget(part)
			if err != nil {
				return nil, err
			}
			targets = append(targets, v)
		}
	}
	if err := recovery.ValidateTargets(targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// FormatDays formats a per-event day count.
func FormatDays(d recovery.DayCount) string {
	if !d.Reached() {
		return NotAvailable
	}
	return strconv.Itoa(int(d))
}

// FormatMean formats a yearly average, N/A when undefined.
func FormatMean(a recovery.TargetAverage) string {
	if !a.Defined {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f", a.Mean)
}

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if price >= 10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.4f", price)
}

// FormatAmount formats a dividend amount without trailing zeros.
func FormatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}

// FormatDate formats a calendar date with layout, falling back to ISO dates.
func FormatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return "-"
	}
	if layout == "" {
		layout = "2006-01-02"
	}
	return t.Format(layout)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// formatYearSpan describes the analyzed years, most recent first.
func formatYearSpan(asOfYear, lookbackYears int) string {
	if lookbackYears <= 1 {
		return strconv.Itoa(asOfYear)
	}
	return fmt.Sprintf("%d-%d", asOfYear-lookbackYears+1, asOfYear)
}
