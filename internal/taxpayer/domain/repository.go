package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/veldtax/veldtax/internal/fiscalyear"
)

type Repository interface {
	FindTaxpayer(ctx context.Context, id snowflake.ID) (*Taxpayer, error)
	CreateTaxpayer(ctx context.Context, t *Taxpayer) error

	ListIncome(ctx context.Context, taxpayerID snowflake.ID, year fiscalyear.Year) ([]IncomeRecord, error)
	CreateIncome(ctx context.Context, rec *IncomeRecord) error
	DeleteIncome(ctx context.Context, taxpayerID, id snowflake.ID) error

	ListExpenses(ctx context.Context, taxpayerID snowflake.ID, year fiscalyear.Year) ([]ExpenseRecord, error)
	CreateExpense(ctx context.Context, rec *ExpenseRecord) error
	DeleteExpense(ctx context.Context, taxpayerID, id snowflake.ID) error

	ListExpenseTypes(ctx context.Context, activeOnly bool) ([]DeductibleExpenseType, error)
	FindExpenseType(ctx context.Context, id snowflake.ID) (*DeductibleExpenseType, error)
	FindExpenseTypeByName(ctx context.Context, name string) (*DeductibleExpenseType, error)
	CreateExpenseType(ctx context.Context, t *DeductibleExpenseType) error
}
