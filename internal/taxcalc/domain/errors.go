package domain

import "errors"

var (
	ErrNegativeIncome     = errors.New("negative_income")
	ErrNegativeAge        = errors.New("negative_age")
	ErrNegativeLives      = errors.New("negative_covered_lives")
	ErrNegativeExpense    = errors.New("negative_expense")
	ErrUnknownExpenseType = errors.New("unknown_expense_type")
	ErrDataUnavailable    = errors.New("tax_data_unavailable")
)
