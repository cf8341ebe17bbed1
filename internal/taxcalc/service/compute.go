package service

import (
	"github.com/shopspring/decimal"
	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
)

var (
	twelve = decimal.NewFromInt(12)
)

// cappedDeduction applies the per-type deduction caps: the claimed
// total, the absolute cap and the percentage-of-income cap, whichever
// non-nil caps bind.
func cappedDeduction(claimed, grossIncome decimal.Decimal, maxAmount, maxPercent *decimal.Decimal) decimal.Decimal {
	applied := claimed
	if maxAmount != nil && applied.GreaterThan(*maxAmount) {
		applied = *maxAmount
	}
	if maxPercent != nil {
		limit := grossIncome.Mul(*maxPercent)
		if applied.GreaterThan(limit) {
			applied = limit
		}
	}
	if applied.IsNegative() {
		return decimal.Zero
	}
	return applied
}

// compute runs the bracket/rebate/credit/threshold arithmetic shared by
// persisted-record and what-if calculations. Inputs are already
// validated and deductions already capped.
func compute(table *rulesdomain.RuleTable, grossIncome decimal.Decimal, age int, deductions decimal.Decimal, members, dependants int) *taxcalcdomain.Result {
	taxable := grossIncome.Sub(deductions)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}

	bracket := table.BracketFor(taxable)
	lower := decimal.NewFromInt(bracket.LowerLimit)
	span := taxable.Sub(lower)
	if span.IsNegative() {
		span = decimal.Zero
	}
	taxBefore := bracket.BaseAmount.Add(bracket.Rate.Mul(span))

	rebates := table.RebateFor(age)

	// Medical scheme fee credits are monthly figures per covered life,
	// annualised here. No scheme membership, no credit.
	credits := decimal.Zero
	if members > 0 {
		credits = table.MedicalCredits.MainMember.Mul(decimal.NewFromInt(int64(members))).
			Add(table.MedicalCredits.AdditionalMember.Mul(decimal.NewFromInt(int64(dependants)))).
			Mul(twelve)
	}

	finalTax := taxBefore.Sub(rebates).Sub(credits)
	if finalTax.IsNegative() {
		finalTax = decimal.Zero
	}

	// Threshold override: at or below the age-appropriate threshold the
	// liability is zero by definition, whatever the bracket math said.
	if taxable.LessThanOrEqual(decimal.NewFromInt(table.ThresholdFor(age))) {
		finalTax = decimal.Zero
	}

	effectiveRate := decimal.Zero
	if taxable.IsPositive() {
		effectiveRate = finalTax.Div(taxable)
	}

	return &taxcalcdomain.Result{
		TaxYear:          table.Year.String(),
		GrossIncome:      grossIncome.Round(2),
		Deductions:       deductions.Round(2),
		TaxableIncome:    taxable.Round(2),
		TaxBeforeRebates: taxBefore.Round(2),
		Rebates:          rebates.Round(2),
		MedicalCredits:   credits.Round(2),
		FinalTax:         finalTax.Round(2),
		EffectiveRate:    effectiveRate.Round(4),
		MarginalRate:     bracket.Rate,
		MonthlyTax:       finalTax.Div(twelve).Round(2),
		DataStale:        table.Stale,
	}
}
