package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	"go.uber.org/zap"
)

type seedType struct {
	name        string
	description string
	maxAmount   *decimal.Decimal
	maxPercent  *decimal.Decimal
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// Default deductible categories under SA personal income tax. The
// retirement annuity cap is 27.5% of income up to R350 000 a year;
// donations to approved PBOs cap at 10% of income.
var defaultExpenseTypes = []seedType{
	{"retirement_annuity", "Retirement annuity fund contributions", decPtr("350000"), decPtr("0.275")},
	{"pension_fund", "Pension fund contributions", decPtr("350000"), decPtr("0.275")},
	{"medical_expenses", "Out-of-pocket medical expenses", nil, nil},
	{"donations", "Donations to approved public benefit organisations", nil, decPtr("0.10")},
	{"home_office", "Home office running costs", nil, nil},
	{"travel_expenses", "Business travel against a travel allowance", nil, nil},
}

// SeedExpenseTypes inserts the default deductible expense types if they
// are not present yet. Safe to run on every startup.
func SeedExpenseTypes(ctx context.Context, repo taxpayerdomain.Repository, genID *snowflake.Node, log *zap.Logger) error {
	for _, st := range defaultExpenseTypes {
		_, err := repo.FindExpenseTypeByName(ctx, st.name)
		if err == nil {
			continue
		}
		if !errors.Is(err, taxpayerdomain.ErrExpenseTypeNotFound) {
			return err
		}

		t := taxpayerdomain.DeductibleExpenseType{
			ID:          genID.Generate(),
			Name:        st.name,
			Description: st.description,
			MaxAmount:   st.maxAmount,
			MaxPercent:  st.maxPercent,
			IsActive:    true,
		}
		if err := repo.CreateExpenseType(ctx, &t); err != nil {
			return err
		}
		log.Info("seeded expense type", zap.String("name", st.name))
	}
	return nil
}
