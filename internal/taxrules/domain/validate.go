package domain

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Validate enforces the structural invariants of a year's rule table.
// Any violation rejects the whole table: the store never holds a
// partially-valid year.
//
// Invariants: brackets sorted ascending by lower limit, contiguous
// (next lower = previous upper + 1), exactly one unbounded bracket and
// it is the last, rates in (0,1] and non-decreasing, base amounts
// non-negative and cumulative (base n equals the tax on all income up
// to its lower limit), rebates/credits non-negative, thresholds
// non-negative and non-decreasing across age tiers.
func (t *RuleTable) Validate() error {
	if len(t.Brackets) == 0 {
		return ErrEmptyBrackets
	}

	for i, b := range t.Brackets {
		if b.Rate.LessThanOrEqual(decimal.Zero) || b.Rate.GreaterThan(one) {
			return fmt.Errorf("%w: bracket %d rate %s", ErrRateOutOfRange, i, b.Rate)
		}
		if b.BaseAmount.IsNegative() || b.LowerLimit < 0 {
			return fmt.Errorf("%w: bracket %d", ErrNegativeAmount, i)
		}
		if b.UpperLimit != nil && *b.UpperLimit <= b.LowerLimit {
			return fmt.Errorf("%w: bracket %d upper %d <= lower %d", ErrBracketOrder, i, *b.UpperLimit, b.LowerLimit)
		}
	}

	if !sort.SliceIsSorted(t.Brackets, func(i, j int) bool {
		return t.Brackets[i].LowerLimit < t.Brackets[j].LowerLimit
	}) {
		return ErrBracketOrder
	}

	for i, b := range t.Brackets {
		last := i == len(t.Brackets)-1
		if (b.UpperLimit == nil) != last {
			return fmt.Errorf("%w: bracket %d", ErrUnboundedBracket, i)
		}
		if i == 0 {
			continue
		}
		prev := t.Brackets[i-1]
		if b.LowerLimit != *prev.UpperLimit+1 {
			return fmt.Errorf("%w: bracket %d starts at %d, previous ends at %d",
				ErrBracketGap, i, b.LowerLimit, *prev.UpperLimit)
		}
		if b.Rate.LessThan(prev.Rate) {
			return fmt.Errorf("%w: bracket %d rate %s < %s", ErrRateNotMonotonic, i, b.Rate, prev.Rate)
		}
		// Cumulative base: previous base plus the previous bracket's
		// span taxed at its marginal rate. Allow one rand of slack for
		// source rounding.
		span := decimal.NewFromInt(*prev.UpperLimit - prev.LowerLimit + 1)
		want := prev.BaseAmount.Add(prev.Rate.Mul(span))
		if b.BaseAmount.Sub(want).Abs().GreaterThan(one) {
			return fmt.Errorf("%w: bracket %d base %s, want %s", ErrBaseAmountWrong, i, b.BaseAmount, want)
		}
	}

	for _, v := range []decimal.Decimal{
		t.Rebates.Primary, t.Rebates.Secondary, t.Rebates.Tertiary,
		t.MedicalCredits.MainMember, t.MedicalCredits.AdditionalMember,
	} {
		if v.IsNegative() {
			return ErrNegativeAmount
		}
	}

	th := t.Thresholds
	if th.Under65 < 0 || th.Age65To74 < 0 || th.Age75Plus < 0 {
		return ErrNegativeAmount
	}
	if th.Age65To74 < th.Under65 || th.Age75Plus < th.Age65To74 {
		return ErrThresholdOrdering
	}

	return nil
}

// BracketFor locates the bracket containing the given taxable income by
// binary search over the sorted lower limits. The top bracket is
// half-open to infinity, so income above every finite limit lands there
// without special casing; income below the first limit clamps to the
// first bracket.
func (t *RuleTable) BracketFor(taxable decimal.Decimal) TaxBracket {
	i := sort.Search(len(t.Brackets), func(i int) bool {
		return decimal.NewFromInt(t.Brackets[i].LowerLimit).GreaterThan(taxable)
	}) - 1
	if i < 0 {
		i = 0
	}
	return t.Brackets[i]
}
