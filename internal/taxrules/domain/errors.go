package domain

import "errors"

var (
	ErrNoRuleTable       = errors.New("no_rule_table")
	ErrEmptyBrackets     = errors.New("empty_brackets")
	ErrBracketOrder      = errors.New("brackets_not_sorted")
	ErrBracketGap        = errors.New("brackets_not_contiguous")
	ErrUnboundedBracket  = errors.New("unbounded_bracket_misplaced")
	ErrRateOutOfRange    = errors.New("rate_out_of_range")
	ErrRateNotMonotonic  = errors.New("rates_not_monotonic")
	ErrBaseAmountWrong   = errors.New("base_amount_mismatch")
	ErrNegativeAmount    = errors.New("negative_amount")
	ErrThresholdOrdering = errors.New("thresholds_not_monotonic")
)
