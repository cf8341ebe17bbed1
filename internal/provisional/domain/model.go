package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/fiscalyear"
)

// Payment periods. First and second split the estimate; the top-up
// settles any under-estimation with the annual return.
const (
	PeriodFirst  = "first"
	PeriodSecond = "second"
	PeriodTopUp  = "top_up"
)

type Payment struct {
	Period  string          `json:"period"`
	Amount  decimal.Decimal `json:"amount"`
	DueDate time.Time       `json:"due_date"`
}

// Schedule is derived data: re-apportioned from the current liability
// estimate on every request, never stored.
type Schedule struct {
	TaxYear         string          `json:"tax_year"`
	Provisional     bool            `json:"provisional"`
	AnnualLiability decimal.Decimal `json:"annual_liability"`
	Payments        []Payment       `json:"payments"`

	// DataStale carries the advisory flag of the rule table the
	// liability estimate was computed against.
	DataStale bool `json:"data_stale,omitempty"`
}

// Apportion splits an annual liability into the two provisional
// payments: half at the fiscal midpoint, the remainder at year end.
// Non-provisional taxpayers get an empty schedule, not an error.
func Apportion(liability decimal.Decimal, year fiscalyear.Year, provisional bool) *Schedule {
	s := &Schedule{
		TaxYear:         year.String(),
		Provisional:     provisional,
		AnnualLiability: liability.Round(2),
	}
	if !provisional {
		return s
	}

	first := liability.Div(decimal.NewFromInt(2)).Round(2)
	second := liability.Round(2).Sub(first)
	s.Payments = []Payment{
		{Period: PeriodFirst, Amount: first, DueDate: year.Midpoint()},
		{Period: PeriodSecond, Amount: second, DueDate: year.End()},
	}
	return s
}

// TopUp appends the third payment when the assessed liability exceeds
// what the schedule already covers. Exact estimates add nothing.
func (s *Schedule) TopUp(assessed decimal.Decimal, year fiscalyear.Year) {
	if !s.Provisional {
		return
	}
	scheduled := decimal.Zero
	for _, p := range s.Payments {
		scheduled = scheduled.Add(p.Amount)
	}
	shortfall := assessed.Round(2).Sub(scheduled)
	if shortfall.IsPositive() {
		s.Payments = append(s.Payments, Payment{
			Period:  PeriodTopUp,
			Amount:  shortfall,
			DueDate: year.ReturnDue(),
		})
	}
}

type Service interface {
	// ScheduleFor apportions the taxpayer's current liability estimate
	// for the year into provisional payments. When an assessed liability
	// is supplied, any under-estimation is appended as a top-up payment.
	ScheduleFor(ctx context.Context, taxpayerID string, year fiscalyear.Year, assessed *decimal.Decimal) (*Schedule, error)
}
