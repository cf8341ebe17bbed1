package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	provisionaldomain "github.com/veldtax/veldtax/internal/provisional/domain"
	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type serviceParam struct {
	fx.In

	Taxpayers taxpayerdomain.Repository
	Engine    taxcalcdomain.Service
	Log       *zap.Logger
}

type service struct {
	taxpayers taxpayerdomain.Repository
	engine    taxcalcdomain.Service
	log       *zap.Logger
}

func NewService(p serviceParam) provisionaldomain.Service {
	return &service{
		taxpayers: p.Taxpayers,
		engine:    p.Engine,
		log:       p.Log.Named("provisional"),
	}
}

func (s *service) ScheduleFor(ctx context.Context, taxpayerID string, year fiscalyear.Year, assessed *decimal.Decimal) (*provisionaldomain.Schedule, error) {
	id, err := snowflake.ParseString(taxpayerID)
	if err != nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	taxpayer, err := s.taxpayers.FindTaxpayer(ctx, id)
	if err != nil {
		return nil, err
	}

	incomes, err := s.taxpayers.ListIncome(ctx, id, year)
	if err != nil {
		return nil, err
	}
	// Provisional status needs both the registration flag and income
	// that escapes PAYE withholding.
	provisional := taxpayer.IsProvisionalTaxpayer && taxpayerdomain.HasNonPAYE(incomes)

	// The apportionment always starts from a fresh estimate; schedules
	// are never frozen from an earlier calculation.
	result, err := s.engine.ComputeLiability(ctx, taxpayerID, year)
	if err != nil {
		return nil, err
	}

	schedule := provisionaldomain.Apportion(result.FinalTax, year, provisional)
	if assessed != nil {
		schedule.TopUp(*assessed, year)
	}
	schedule.DataStale = result.DataStale
	return schedule, nil
}
