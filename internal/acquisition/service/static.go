package service

import (
	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/config"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
)

// staticTable converts the bundled config figures into a rule table for
// the requested year.
func staticTable(cfg config.StaticTable, year fiscalyear.Year) *rulesdomain.RuleTable {
	brackets := make([]rulesdomain.TaxBracket, 0, len(cfg.Brackets))
	for _, b := range cfg.Brackets {
		bracket := rulesdomain.TaxBracket{
			TaxYear:    year.String(),
			LowerLimit: b.Lower,
			Rate:       decimal.NewFromFloat(b.Rate),
			BaseAmount: decimal.NewFromInt(b.BaseAmount),
		}
		if b.Upper != nil {
			upper := *b.Upper
			bracket.UpperLimit = &upper
		}
		brackets = append(brackets, bracket)
	}

	return &rulesdomain.RuleTable{
		Year:     year,
		Brackets: brackets,
		Rebates: rulesdomain.RebateSet{
			TaxYear:   year.String(),
			Primary:   decimal.NewFromFloat(cfg.Rebates.Primary),
			Secondary: decimal.NewFromFloat(cfg.Rebates.Secondary),
			Tertiary:  decimal.NewFromFloat(cfg.Rebates.Tertiary),
		},
		Thresholds: rulesdomain.ThresholdSet{
			TaxYear:   year.String(),
			Under65:   cfg.Thresholds.Under65,
			Age65To74: cfg.Thresholds.Age65To74,
			Age75Plus: cfg.Thresholds.Age75Plus,
		},
		MedicalCredits: rulesdomain.MedicalCreditSet{
			TaxYear:          year.String(),
			MainMember:       decimal.NewFromFloat(cfg.MedicalCredits.MainMember),
			AdditionalMember: decimal.NewFromFloat(cfg.MedicalCredits.AdditionalMember),
		},
		Source: rulesdomain.SourceStatic,
	}
}
