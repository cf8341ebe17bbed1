package domain

import "errors"

var (
	ErrNotFound            = errors.New("not_found")
	ErrExpenseTypeNotFound = errors.New("expense_type_not_found")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidSourceType   = errors.New("invalid_source_type")
	ErrNotOwner            = errors.New("not_owner")
	ErrEmailTaken          = errors.New("email_taken")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidDateOfBirth  = errors.New("invalid_date_of_birth")
	ErrInvalidLives        = errors.New("invalid_covered_lives")
)
