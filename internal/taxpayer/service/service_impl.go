package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/veldtax/veldtax/internal/clock"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type serviceParam struct {
	fx.In

	Repository taxpayerdomain.Repository
	Clock      clock.Clock
	GenID      *snowflake.Node
	Log        *zap.Logger
}

type service struct {
	repo  taxpayerdomain.Repository
	clock clock.Clock
	genID *snowflake.Node
	log   *zap.Logger
}

func NewService(p serviceParam) taxpayerdomain.Service {
	return &service{
		repo:  p.Repository,
		clock: p.Clock,
		genID: p.GenID,
		log:   p.Log.Named("taxpayer"),
	}
}

func (s *service) RegisterTaxpayer(ctx context.Context, req taxpayerdomain.RegisterTaxpayerRequest) (*taxpayerdomain.TaxpayerResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, taxpayerdomain.ErrInvalidEmail
	}
	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil || dob.After(s.clock.Now()) {
		return nil, taxpayerdomain.ErrInvalidDateOfBirth
	}
	if req.MedicalMembers < 0 || req.MedicalDependants < 0 {
		return nil, taxpayerdomain.ErrInvalidLives
	}

	now := s.clock.Now()
	t := taxpayerdomain.Taxpayer{
		ID:                    s.genID.Generate(),
		Email:                 email,
		Name:                  strings.TrimSpace(req.Name),
		Surname:               strings.TrimSpace(req.Surname),
		DateOfBirth:           dob,
		IsProvisionalTaxpayer: req.IsProvisionalTaxpayer,
		MedicalMembers:        req.MedicalMembers,
		MedicalDependants:     req.MedicalDependants,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.repo.CreateTaxpayer(ctx, &t); err != nil {
		return nil, err
	}

	s.log.Info("taxpayer registered", zap.String("taxpayer_id", t.ID.String()))
	resp := taxpayerResponse(t)
	return &resp, nil
}

func (s *service) GetTaxpayer(ctx context.Context, id string) (*taxpayerdomain.TaxpayerResponse, error) {
	tid, err := snowflake.ParseString(id)
	if err != nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	t, err := s.repo.FindTaxpayer(ctx, tid)
	if err != nil {
		return nil, err
	}
	resp := taxpayerResponse(*t)
	return &resp, nil
}

func (s *service) AddIncome(ctx context.Context, req taxpayerdomain.AddIncomeRequest) (*taxpayerdomain.IncomeResponse, error) {
	taxpayerID, err := snowflake.ParseString(req.TaxpayerID)
	if err != nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	if _, err := s.repo.FindTaxpayer(ctx, taxpayerID); err != nil {
		return nil, err
	}
	if !taxpayerdomain.ValidIncomeSource(req.SourceType) {
		return nil, taxpayerdomain.ErrInvalidSourceType
	}
	if req.AnnualAmount.IsNegative() {
		return nil, taxpayerdomain.ErrInvalidAmount
	}
	year, err := fiscalyear.Parse(req.TaxYear)
	if err != nil {
		return nil, err
	}

	isPAYE := true
	if req.IsPAYE != nil {
		isPAYE = *req.IsPAYE
	}

	now := s.clock.Now()
	rec := taxpayerdomain.IncomeRecord{
		ID:           s.genID.Generate(),
		TaxpayerID:   taxpayerID,
		TaxYear:      year.String(),
		SourceType:   req.SourceType,
		Description:  req.Description,
		AnnualAmount: req.AnnualAmount,
		IsPAYE:       isPAYE,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateIncome(ctx, &rec); err != nil {
		return nil, err
	}

	resp := incomeResponse(rec)
	return &resp, nil
}

func (s *service) ListIncome(ctx context.Context, taxpayerID string, year fiscalyear.Year) ([]taxpayerdomain.IncomeResponse, error) {
	id, err := snowflake.ParseString(taxpayerID)
	if err != nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	records, err := s.repo.ListIncome(ctx, id, year)
	if err != nil {
		return nil, err
	}

	out := make([]taxpayerdomain.IncomeResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, incomeResponse(rec))
	}
	return out, nil
}

func (s *service) DeleteIncome(ctx context.Context, taxpayerID, incomeID string) error {
	tid, err := snowflake.ParseString(taxpayerID)
	if err != nil {
		return taxpayerdomain.ErrNotFound
	}
	iid, err := snowflake.ParseString(incomeID)
	if err != nil {
		return taxpayerdomain.ErrNotFound
	}
	return s.repo.DeleteIncome(ctx, tid, iid)
}

func (s *service) AddExpense(ctx context.Context, req taxpayerdomain.AddExpenseRequest) (*taxpayerdomain.ExpenseResponse, error) {
	taxpayerID, err := snowflake.ParseString(req.TaxpayerID)
	if err != nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	if _, err := s.repo.FindTaxpayer(ctx, taxpayerID); err != nil {
		return nil, err
	}
	typeID, err := snowflake.ParseString(req.ExpenseTypeID)
	if err != nil {
		return nil, taxpayerdomain.ErrExpenseTypeNotFound
	}
	expenseType, err := s.repo.FindExpenseType(ctx, typeID)
	if err != nil {
		return nil, err
	}
	if req.Amount.IsNegative() || req.Amount.IsZero() {
		return nil, taxpayerdomain.ErrInvalidAmount
	}
	year, err := fiscalyear.Parse(req.TaxYear)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rec := taxpayerdomain.ExpenseRecord{
		ID:            s.genID.Generate(),
		TaxpayerID:    taxpayerID,
		TaxYear:       year.String(),
		ExpenseTypeID: expenseType.ID,
		Description:   req.Description,
		Amount:        req.Amount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.CreateExpense(ctx, &rec); err != nil {
		return nil, err
	}

	resp := expenseResponse(rec, expenseType.Name)
	return &resp, nil
}

func (s *service) ListExpenses(ctx context.Context, taxpayerID string, year fiscalyear.Year) ([]taxpayerdomain.ExpenseResponse, error) {
	id, err := snowflake.ParseString(taxpayerID)
	if err != nil {
		return nil, taxpayerdomain.ErrNotFound
	}
	records, err := s.repo.ListExpenses(ctx, id, year)
	if err != nil {
		return nil, err
	}

	types, err := s.repo.ListExpenseTypes(ctx, false)
	if err != nil {
		return nil, err
	}
	names := make(map[snowflake.ID]string, len(types))
	for _, t := range types {
		names[t.ID] = t.Name
	}

	out := make([]taxpayerdomain.ExpenseResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, expenseResponse(rec, names[rec.ExpenseTypeID]))
	}
	return out, nil
}

func (s *service) DeleteExpense(ctx context.Context, taxpayerID, expenseID string) error {
	tid, err := snowflake.ParseString(taxpayerID)
	if err != nil {
		return taxpayerdomain.ErrNotFound
	}
	eid, err := snowflake.ParseString(expenseID)
	if err != nil {
		return taxpayerdomain.ErrNotFound
	}
	return s.repo.DeleteExpense(ctx, tid, eid)
}

func (s *service) ListExpenseTypes(ctx context.Context) ([]taxpayerdomain.ExpenseTypeResponse, error) {
	types, err := s.repo.ListExpenseTypes(ctx, true)
	if err != nil {
		return nil, err
	}

	out := make([]taxpayerdomain.ExpenseTypeResponse, 0, len(types))
	for _, t := range types {
		out = append(out, taxpayerdomain.ExpenseTypeResponse{
			ID:          t.ID.String(),
			Name:        t.Name,
			Description: t.Description,
			MaxAmount:   t.MaxAmount,
			MaxPercent:  t.MaxPercent,
		})
	}
	return out, nil
}

func taxpayerResponse(t taxpayerdomain.Taxpayer) taxpayerdomain.TaxpayerResponse {
	return taxpayerdomain.TaxpayerResponse{
		ID:                    t.ID.String(),
		Email:                 t.Email,
		Name:                  t.Name,
		Surname:               t.Surname,
		DateOfBirth:           t.DateOfBirth.Format("2006-01-02"),
		IsProvisionalTaxpayer: t.IsProvisionalTaxpayer,
		MedicalMembers:        t.MedicalMembers,
		MedicalDependants:     t.MedicalDependants,
		CreatedAt:             t.CreatedAt,
	}
}

func incomeResponse(rec taxpayerdomain.IncomeRecord) taxpayerdomain.IncomeResponse {
	return taxpayerdomain.IncomeResponse{
		ID:           rec.ID.String(),
		SourceType:   rec.SourceType,
		Description:  rec.Description,
		AnnualAmount: rec.AnnualAmount,
		IsPAYE:       rec.IsPAYE,
		TaxYear:      rec.TaxYear,
		CreatedAt:    rec.CreatedAt,
	}
}

func expenseResponse(rec taxpayerdomain.ExpenseRecord, typeName string) taxpayerdomain.ExpenseResponse {
	return taxpayerdomain.ExpenseResponse{
		ID:            rec.ID.String(),
		ExpenseTypeID: rec.ExpenseTypeID.String(),
		ExpenseType:   typeName,
		Description:   rec.Description,
		Amount:        rec.Amount,
		TaxYear:       rec.TaxYear,
		CreatedAt:     rec.CreatedAt,
	}
}
