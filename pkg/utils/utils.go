package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar date format used on every boundary (JSON, CSV, SQL, query strings).
const DateLayout = "2006-01-02"

// MinorUnitPlaces is the number of decimal places of the currency's minor unit.
const MinorUnitPlaces = 2

// Date builds a calendar date at midnight UTC.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NormalizeDate drops the clock and location from t, keeping its calendar date.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return Date(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a calendar date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// AddMonthsClamped moves start forward by months, keeping its day-of-month
// unless the target month is shorter, in which case the last day is used.
// Jan 31 + 1 month is Feb 29 in a leap year; Jan 31 + 2 months is Mar 31.
func AddMonthsClamped(start time.Time, months int) time.Time {
	y, m, d := start.Date()
	first := Date(y, m, 1).AddDate(0, months, 0)
	last := DaysInMonth(first.Year(), first.Month())
	if d > last {
		d = last
	}
	return Date(first.Year(), first.Month(), d)
}

// DaysInMonth returns the number of days of month in year.
func DaysInMonth(year int, month time.Month) int {
	return Date(year, month+1, 0).Day()
}

// DaysBetween returns the whole number of calendar days from `from` to `to`.
// It is negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(NormalizeDate(to).Sub(NormalizeDate(from)).Hours() / 24)
}

// HasMinorUnitPrecision reports whether amount is expressible in the currency's minor unit.
func HasMinorUnitPrecision(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(MinorUnitPlaces))
}

// SplitAmount divides total into n shares rounded down to the minor unit.
// The rounding remainder is added to the last share so the shares sum to total exactly.
func SplitAmount(total decimal.Decimal, n int) []decimal.Decimal {
	if n < 1 {
		return nil
	}

	share := total.Div(decimal.NewFromInt(int64(n))).RoundFloor(MinorUnitPlaces)
	shares := make([]decimal.Decimal, n)
	for i := range shares {
		shares[i] = share
	}

	allocated := share.Mul(decimal.NewFromInt(int64(n - 1)))
	shares[n-1] = total.Sub(allocated)

	return shares
}

// SumDecimals adds up amounts starting from zero.
func SumDecimals(amounts []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// DecimalFromString converts string to decimal.Decimal
func DecimalFromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}
