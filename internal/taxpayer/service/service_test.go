package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/clock"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	taxpayerrepo "github.com/veldtax/veldtax/internal/taxpayer/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc   taxpayerdomain.Service
	repo  taxpayerdomain.Repository
	genID *snowflake.Node
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&taxpayerdomain.Taxpayer{},
		&taxpayerdomain.IncomeRecord{},
		&taxpayerdomain.ExpenseRecord{},
		&taxpayerdomain.DeductibleExpenseType{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	repo := taxpayerrepo.NewRepository(db)
	return &fixture{
		svc: NewService(serviceParam{
			Repository: repo,
			Clock:      clock.NewFakeClock(time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)),
			GenID:      node,
			Log:        zap.NewNop(),
		}),
		repo:  repo,
		genID: node,
	}
}

func register(t *testing.T, f *fixture, email string) *taxpayerdomain.TaxpayerResponse {
	t.Helper()
	resp, err := f.svc.RegisterTaxpayer(context.Background(), taxpayerdomain.RegisterTaxpayerRequest{
		Email:          email,
		Name:           "Thandi",
		Surname:        "Mokoena",
		DateOfBirth:    "1989-06-15",
		MedicalMembers: 1,
	})
	if err != nil {
		t.Fatalf("register taxpayer: %v", err)
	}
	return resp
}

func TestRegisterAndGetTaxpayer(t *testing.T) {
	f := setup(t)

	created := register(t, f, "Thandi@Example.com")
	if created.Email != "thandi@example.com" {
		t.Fatalf("expected normalized email, got %q", created.Email)
	}
	if created.DateOfBirth != "1989-06-15" {
		t.Fatalf("unexpected date of birth %q", created.DateOfBirth)
	}

	got, err := f.svc.GetTaxpayer(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get taxpayer: %v", err)
	}
	if got.ID != created.ID || got.Name != "Thandi" || got.MedicalMembers != 1 {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := setup(t)

	cases := []struct {
		name string
		req  taxpayerdomain.RegisterTaxpayerRequest
		want error
	}{
		{
			name: "missing email",
			req:  taxpayerdomain.RegisterTaxpayerRequest{Name: "T", DateOfBirth: "1989-06-15"},
			want: taxpayerdomain.ErrInvalidEmail,
		},
		{
			name: "not an email",
			req:  taxpayerdomain.RegisterTaxpayerRequest{Email: "nope", DateOfBirth: "1989-06-15"},
			want: taxpayerdomain.ErrInvalidEmail,
		},
		{
			name: "bad date of birth",
			req:  taxpayerdomain.RegisterTaxpayerRequest{Email: "a@b.co", DateOfBirth: "15 June 1989"},
			want: taxpayerdomain.ErrInvalidDateOfBirth,
		},
		{
			name: "date of birth in the future",
			req:  taxpayerdomain.RegisterTaxpayerRequest{Email: "a@b.co", DateOfBirth: "2025-01-01"},
			want: taxpayerdomain.ErrInvalidDateOfBirth,
		},
		{
			name: "negative dependants",
			req: taxpayerdomain.RegisterTaxpayerRequest{
				Email: "a@b.co", DateOfBirth: "1989-06-15", MedicalDependants: -1,
			},
			want: taxpayerdomain.ErrInvalidLives,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RegisterTaxpayer(context.Background(), tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := setup(t)

	register(t, f, "thandi@example.com")
	_, err := f.svc.RegisterTaxpayer(context.Background(), taxpayerdomain.RegisterTaxpayerRequest{
		Email:       "thandi@example.com",
		Name:        "Other",
		DateOfBirth: "1990-01-01",
	})
	if !errors.Is(err, taxpayerdomain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestAddIncomeValidation(t *testing.T) {
	f := setup(t)
	created := register(t, f, "thandi@example.com")

	base := taxpayerdomain.AddIncomeRequest{
		TaxpayerID:   created.ID,
		SourceType:   taxpayerdomain.IncomeSourceSalary,
		AnnualAmount: decimal.NewFromInt(600000),
		TaxYear:      "2024-2025",
	}

	bad := base
	bad.SourceType = "winnings"
	if _, err := f.svc.AddIncome(context.Background(), bad); !errors.Is(err, taxpayerdomain.ErrInvalidSourceType) {
		t.Fatalf("expected ErrInvalidSourceType, got %v", err)
	}

	bad = base
	bad.AnnualAmount = decimal.NewFromInt(-1)
	if _, err := f.svc.AddIncome(context.Background(), bad); !errors.Is(err, taxpayerdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	bad = base
	bad.TaxYear = "2024/25"
	if _, err := f.svc.AddIncome(context.Background(), bad); !errors.Is(err, fiscalyear.ErrMalformedLabel) {
		t.Fatalf("expected ErrMalformedLabel, got %v", err)
	}

	bad = base
	bad.TaxpayerID = "999999"
	if _, err := f.svc.AddIncome(context.Background(), bad); !errors.Is(err, taxpayerdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown taxpayer, got %v", err)
	}

	if _, err := f.svc.AddIncome(context.Background(), base); err != nil {
		t.Fatalf("valid income rejected: %v", err)
	}

	records, err := f.svc.ListIncome(context.Background(), created.ID, "2024-2025")
	if err != nil {
		t.Fatalf("list income: %v", err)
	}
	if len(records) != 1 || !records[0].IsPAYE {
		t.Fatalf("expected one PAYE-default record, got %+v", records)
	}
}

func TestAddIncomeNonPAYERoundTrips(t *testing.T) {
	f := setup(t)
	created := register(t, f, "thandi@example.com")
	notPAYE := false

	added, err := f.svc.AddIncome(context.Background(), taxpayerdomain.AddIncomeRequest{
		TaxpayerID:   created.ID,
		SourceType:   taxpayerdomain.IncomeSourceFreelance,
		AnnualAmount: decimal.NewFromInt(800000),
		IsPAYE:       &notPAYE,
		TaxYear:      "2024-2025",
	})
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	if added.IsPAYE {
		t.Fatal("response reports PAYE for a non-PAYE record")
	}

	records, err := f.svc.ListIncome(context.Background(), created.ID, "2024-2025")
	if err != nil {
		t.Fatalf("list income: %v", err)
	}
	if len(records) != 1 || records[0].IsPAYE {
		t.Fatalf("stored record lost the non-PAYE flag: %+v", records)
	}
}

func TestExpenseLifecycle(t *testing.T) {
	f := setup(t)
	created := register(t, f, "thandi@example.com")
	if err := SeedExpenseTypes(context.Background(), f.repo, f.genID, zap.NewNop()); err != nil {
		t.Fatalf("seed expense types: %v", err)
	}

	types, err := f.svc.ListExpenseTypes(context.Background())
	if err != nil {
		t.Fatalf("list expense types: %v", err)
	}
	var raID string
	for _, et := range types {
		if et.Name == "retirement_annuity" {
			raID = et.ID
		}
	}
	if raID == "" {
		t.Fatal("retirement_annuity not seeded")
	}

	added, err := f.svc.AddExpense(context.Background(), taxpayerdomain.AddExpenseRequest{
		TaxpayerID:    created.ID,
		ExpenseTypeID: raID,
		Amount:        decimal.NewFromInt(24000),
		TaxYear:       "2024-2025",
	})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	if added.ExpenseType != "retirement_annuity" {
		t.Fatalf("expected type name on response, got %q", added.ExpenseType)
	}

	listed, err := f.svc.ListExpenses(context.Background(), created.ID, "2024-2025")
	if err != nil {
		t.Fatalf("list expenses: %v", err)
	}
	if len(listed) != 1 || listed[0].ExpenseType != "retirement_annuity" {
		t.Fatalf("unexpected expense list %+v", listed)
	}

	if err := f.svc.DeleteExpense(context.Background(), created.ID, added.ID); err != nil {
		t.Fatalf("delete expense: %v", err)
	}
	if err := f.svc.DeleteExpense(context.Background(), created.ID, added.ID); !errors.Is(err, taxpayerdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestSeedExpenseTypesIdempotent(t *testing.T) {
	f := setup(t)

	for i := 0; i < 2; i++ {
		if err := SeedExpenseTypes(context.Background(), f.repo, f.genID, zap.NewNop()); err != nil {
			t.Fatalf("seed pass %d: %v", i+1, err)
		}
	}

	types, err := f.svc.ListExpenseTypes(context.Background())
	if err != nil {
		t.Fatalf("list expense types: %v", err)
	}
	if len(types) != len(defaultExpenseTypes) {
		t.Fatalf("expected %d types, got %d", len(defaultExpenseTypes), len(types))
	}
}
