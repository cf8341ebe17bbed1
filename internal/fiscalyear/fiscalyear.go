// Package fiscalyear maps calendar dates onto South African fiscal tax
// years. A tax year runs from 1 March to 28/29 February of the following
// calendar year and is labelled "YYYY-YYYY+1"; the label's lexicographic
// order matches chronological order, so Year doubles as a store key.
package fiscalyear

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/veldtax/veldtax/internal/clock"
)

// Year is a fiscal tax-year label such as "2024-2025".
type Year string

// ErrMalformedLabel marks tax-year labels that fail validation; callers
// treat it as rejected input.
var ErrMalformedLabel = errors.New("malformed_tax_year")

var labelPattern = regexp.MustCompile(`^(\d{4})-(\d{4})$`)

// FromDate resolves the tax year containing the given date.
func FromDate(t time.Time) Year {
	year := t.Year()
	if t.Month() < time.March {
		return Year(fmt.Sprintf("%d-%d", year-1, year))
	}
	return Year(fmt.Sprintf("%d-%d", year, year+1))
}

// Current resolves the tax year for the clock's current date.
func Current(c clock.Clock) Year {
	return FromDate(c.Now())
}

// Parse validates a tax-year label.
func Parse(label string) (Year, error) {
	m := labelPattern.FindStringSubmatch(label)
	if m == nil {
		return "", fmt.Errorf("%w: %q, want YYYY-YYYY", ErrMalformedLabel, label)
	}
	start, _ := strconv.Atoi(m[1])
	end, _ := strconv.Atoi(m[2])
	if end != start+1 {
		return "", fmt.Errorf("%w: %q, years must be consecutive", ErrMalformedLabel, label)
	}
	return Year(label), nil
}

func (y Year) String() string { return string(y) }

// StartYear returns the calendar year the fiscal year begins in.
func (y Year) StartYear() int {
	start, _ := strconv.Atoi(string(y[:4]))
	return start
}

// EndYear returns the calendar year the fiscal year ends in.
func (y Year) EndYear() int { return y.StartYear() + 1 }

// Previous returns the immediately preceding tax year.
func (y Year) Previous() Year {
	return Year(fmt.Sprintf("%d-%d", y.StartYear()-1, y.StartYear()))
}

// Next returns the immediately following tax year.
func (y Year) Next() Year {
	return Year(fmt.Sprintf("%d-%d", y.EndYear(), y.EndYear()+1))
}

// Start returns 1 March at the start of the fiscal year.
func (y Year) Start() time.Time {
	return time.Date(y.StartYear(), time.March, 1, 0, 0, 0, 0, time.UTC)
}

// End returns the last day of February closing the fiscal year,
// leap-aware.
func (y Year) End() time.Time {
	// 1 March of the end year, minus one day.
	return time.Date(y.EndYear(), time.March, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// Midpoint returns 31 August of the fiscal year, the first provisional
// payment deadline.
func (y Year) Midpoint() time.Time {
	return time.Date(y.StartYear(), time.August, 31, 0, 0, 0, 0, time.UTC)
}

// ReturnDue returns 30 September after the fiscal year end, the
// provisional top-up deadline.
func (y Year) ReturnDue() time.Time {
	return time.Date(y.EndYear(), time.September, 30, 0, 0, 0, 0, time.UTC)
}
