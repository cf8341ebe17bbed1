package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/clock"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	"github.com/veldtax/veldtax/internal/metrics"
	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type serviceParam struct {
	fx.In

	Rules     rulesdomain.Repository
	Taxpayers taxpayerdomain.Repository
	Calcs     taxcalcdomain.Repository
	Ensurer   taxcalcdomain.TableEnsurer
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	GenID     *snowflake.Node
	Log       *zap.Logger
}

type service struct {
	rules     rulesdomain.Repository
	taxpayers taxpayerdomain.Repository
	calcs     taxcalcdomain.Repository
	ensurer   taxcalcdomain.TableEnsurer
	clock     clock.Clock
	metrics   *metrics.Metrics
	genID     *snowflake.Node
	log       *zap.Logger
}

func NewService(p serviceParam) taxcalcdomain.Service {
	return &service{
		rules:     p.Rules,
		taxpayers: p.Taxpayers,
		calcs:     p.Calcs,
		ensurer:   p.Ensurer,
		clock:     p.Clock,
		metrics:   p.Metrics,
		genID:     p.GenID,
		log:       p.Log.Named("taxcalc"),
	}
}

func (s *service) ComputeLiability(ctx context.Context, taxpayerID string, year fiscalyear.Year) (*taxcalcdomain.Result, error) {
	id, err := snowflake.ParseString(taxpayerID)
	if err != nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	taxpayer, err := s.taxpayers.FindTaxpayer(ctx, id)
	if err != nil {
		return nil, err
	}

	table, err := s.ruleTable(ctx, year)
	if err != nil {
		return nil, err
	}

	incomes, err := s.taxpayers.ListIncome(ctx, id, year)
	if err != nil {
		return nil, err
	}
	gross := decimal.Zero
	for _, rec := range incomes {
		gross = gross.Add(rec.AnnualAmount)
	}

	deductions, err := s.recordedDeductions(ctx, id, year, gross)
	if err != nil {
		return nil, err
	}

	// Age is taken at the last day of the tax year, matching how the
	// rebate and threshold tiers are applied on assessment. A taxpayer
	// born after the year ends has no assessable age for it.
	age := taxpayer.AgeOn(year.End())
	if age < 0 {
		return nil, taxcalcdomain.ErrNegativeAge
	}

	result := compute(table, gross, age, deductions, taxpayer.MedicalMembers, taxpayer.MedicalDependants)

	rec := taxcalcdomain.CalculationRecord{
		ID:            s.genID.Generate(),
		TaxpayerID:    id,
		TaxYear:       year.String(),
		GrossIncome:   result.GrossIncome,
		TaxableIncome: result.TaxableIncome,
		FinalTax:      result.FinalTax,
		EffectiveRate: result.EffectiveRate,
		CalculatedAt:  s.clock.Now(),
	}
	if err := s.calcs.SaveCalculation(ctx, &rec); err != nil {
		// History is best-effort; the computed result is still valid.
		s.log.Warn("save calculation record", zap.Error(err))
	}

	s.metrics.Calculations.WithLabelValues("liability").Inc()
	return result, nil
}

func (s *service) ComputeScenario(ctx context.Context, req taxcalcdomain.ScenarioRequest) (*taxcalcdomain.Result, error) {
	if req.GrossIncome.IsNegative() {
		return nil, taxcalcdomain.ErrNegativeIncome
	}
	if req.Age < 0 {
		return nil, taxcalcdomain.ErrNegativeAge
	}
	if req.MedicalMembers < 0 || req.MedicalDependants < 0 {
		return nil, taxcalcdomain.ErrNegativeLives
	}
	year, err := fiscalyear.Parse(req.TaxYear)
	if err != nil {
		return nil, err
	}

	table, err := s.ruleTable(ctx, year)
	if err != nil {
		return nil, err
	}

	deductions := decimal.Zero
	for name, claimed := range req.Expenses {
		if claimed.IsNegative() {
			return nil, taxcalcdomain.ErrNegativeExpense
		}
		expenseType, err := s.taxpayers.FindExpenseTypeByName(ctx, name)
		if err != nil {
			if errors.Is(err, taxpayerdomain.ErrExpenseTypeNotFound) {
				return nil, taxcalcdomain.ErrUnknownExpenseType
			}
			return nil, err
		}
		deductions = deductions.Add(cappedDeduction(claimed, req.GrossIncome, expenseType.MaxAmount, expenseType.MaxPercent))
	}

	result := compute(table, req.GrossIncome, req.Age, deductions, req.MedicalMembers, req.MedicalDependants)

	s.metrics.Calculations.WithLabelValues("scenario").Inc()
	return result, nil
}

// ruleTable loads the year's rule table, triggering a synchronous
// acquisition run when the store has nothing for it.
func (s *service) ruleTable(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	table, err := s.rules.Get(ctx, year)
	if err == nil {
		return table, nil
	}
	if !errors.Is(err, rulesdomain.ErrNoRuleTable) {
		return nil, err
	}

	table, err = s.ensurer.Ensure(ctx, year)
	if err != nil {
		s.log.Error("acquire rule table", zap.String("tax_year", year.String()), zap.Error(err))
		return nil, taxcalcdomain.ErrDataUnavailable
	}
	return table, nil
}

// recordedDeductions sums the taxpayer's expense claims per type and
// applies each type's caps to the per-type total, not per record.
func (s *service) recordedDeductions(ctx context.Context, id snowflake.ID, year fiscalyear.Year, gross decimal.Decimal) (decimal.Decimal, error) {
	expenses, err := s.taxpayers.ListExpenses(ctx, id, year)
	if err != nil {
		return decimal.Zero, err
	}
	if len(expenses) == 0 {
		return decimal.Zero, nil
	}

	claimed := make(map[snowflake.ID]decimal.Decimal)
	for _, rec := range expenses {
		claimed[rec.ExpenseTypeID] = claimed[rec.ExpenseTypeID].Add(rec.Amount)
	}

	total := decimal.Zero
	for typeID, amount := range claimed {
		expenseType, err := s.taxpayers.FindExpenseType(ctx, typeID)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(cappedDeduction(amount, gross, expenseType.MaxAmount, expenseType.MaxPercent))
	}
	return total, nil
}
