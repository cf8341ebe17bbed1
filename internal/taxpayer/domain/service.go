package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/fiscalyear"
)

type Service interface {
	RegisterTaxpayer(ctx context.Context, req RegisterTaxpayerRequest) (*TaxpayerResponse, error)
	GetTaxpayer(ctx context.Context, id string) (*TaxpayerResponse, error)

	AddIncome(ctx context.Context, req AddIncomeRequest) (*IncomeResponse, error)
	ListIncome(ctx context.Context, taxpayerID string, year fiscalyear.Year) ([]IncomeResponse, error)
	DeleteIncome(ctx context.Context, taxpayerID, incomeID string) error

	AddExpense(ctx context.Context, req AddExpenseRequest) (*ExpenseResponse, error)
	ListExpenses(ctx context.Context, taxpayerID string, year fiscalyear.Year) ([]ExpenseResponse, error)
	DeleteExpense(ctx context.Context, taxpayerID, expenseID string) error

	ListExpenseTypes(ctx context.Context) ([]ExpenseTypeResponse, error)
}

type RegisterTaxpayerRequest struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	// DateOfBirth is an ISO date, "1989-06-15".
	DateOfBirth           string `json:"date_of_birth"`
	IsProvisionalTaxpayer bool   `json:"is_provisional_taxpayer"`
	MedicalMembers        int    `json:"medical_members"`
	MedicalDependants     int    `json:"medical_dependants"`
}

type TaxpayerResponse struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email"`
	Name                  string    `json:"name"`
	Surname               string    `json:"surname,omitempty"`
	DateOfBirth           string    `json:"date_of_birth"`
	IsProvisionalTaxpayer bool      `json:"is_provisional_taxpayer"`
	MedicalMembers        int       `json:"medical_members"`
	MedicalDependants     int       `json:"medical_dependants"`
	CreatedAt             time.Time `json:"created_at"`
}

type AddIncomeRequest struct {
	TaxpayerID   string          `json:"-"`
	SourceType   string          `json:"source_type"`
	Description  string          `json:"description"`
	AnnualAmount decimal.Decimal `json:"annual_amount"`
	IsPAYE       *bool           `json:"is_paye"`
	TaxYear      string          `json:"tax_year"`
}

type IncomeResponse struct {
	ID           string          `json:"id"`
	SourceType   string          `json:"source_type"`
	Description  string          `json:"description,omitempty"`
	AnnualAmount decimal.Decimal `json:"annual_amount"`
	IsPAYE       bool            `json:"is_paye"`
	TaxYear      string          `json:"tax_year"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AddExpenseRequest struct {
	TaxpayerID    string          `json:"-"`
	ExpenseTypeID string          `json:"expense_type_id"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	TaxYear       string          `json:"tax_year"`
}

type ExpenseResponse struct {
	ID            string          `json:"id"`
	ExpenseTypeID string          `json:"expense_type_id"`
	ExpenseType   string          `json:"expense_type,omitempty"`
	Description   string          `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	TaxYear       string          `json:"tax_year"`
	CreatedAt     time.Time       `json:"created_at"`
}

type ExpenseTypeResponse struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	MaxAmount   *decimal.Decimal `json:"max_amount,omitempty"`
	MaxPercent  *decimal.Decimal `json:"max_percent,omitempty"`
}
