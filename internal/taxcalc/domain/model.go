package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
)

// Result is a full liability breakdown for one taxpayer-year. It is
// derived data: recomputed per request from income, expense and rule
// tables, never read back as a source of truth.
type Result struct {
	TaxYear          string          `json:"tax_year"`
	GrossIncome      decimal.Decimal `json:"gross_income"`
	Deductions       decimal.Decimal `json:"deductions"`
	TaxableIncome    decimal.Decimal `json:"taxable_income"`
	TaxBeforeRebates decimal.Decimal `json:"tax_before_rebates"`
	Rebates          decimal.Decimal `json:"rebates"`
	MedicalCredits   decimal.Decimal `json:"medical_credits"`
	FinalTax         decimal.Decimal `json:"final_tax"`
	EffectiveRate    decimal.Decimal `json:"effective_rate"`
	MarginalRate     decimal.Decimal `json:"marginal_rate"`
	MonthlyTax       decimal.Decimal `json:"monthly_tax"`

	// DataStale flags results computed against a carried-forward or
	// bundled rule table.
	DataStale bool `json:"data_stale,omitempty"`
}

// ScenarioRequest is a hypothetical what-if calculation: raw inputs
// instead of persisted records. Covered medical lives are explicit,
// never assumed.
type ScenarioRequest struct {
	GrossIncome       decimal.Decimal            `json:"gross_income"`
	Age               int                        `json:"age"`
	Expenses          map[string]decimal.Decimal `json:"expenses"`
	MedicalMembers    int                        `json:"medical_members"`
	MedicalDependants int                        `json:"medical_dependants"`
	TaxYear           string                     `json:"tax_year"`
}

type Service interface {
	// ComputeLiability computes the annual liability from the
	// taxpayer's persisted income and expense records.
	ComputeLiability(ctx context.Context, taxpayerID string, year fiscalyear.Year) (*Result, error)
	// ComputeScenario runs the identical arithmetic on raw inputs.
	ComputeScenario(ctx context.Context, req ScenarioRequest) (*Result, error)
}

// TableEnsurer guarantees a rule table exists for a year, running the
// acquisition pipeline synchronously when the store is empty.
type TableEnsurer interface {
	Ensure(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error)
}

// CalculationRecord is an audit row of a served calculation. History
// only; fresh requests always recompute.
type CalculationRecord struct {
	ID            snowflake.ID    `gorm:"primaryKey"`
	TaxpayerID    snowflake.ID    `gorm:"column:taxpayer_id;not null;index"`
	TaxYear       string          `gorm:"column:tax_year;type:text;not null"`
	GrossIncome   decimal.Decimal `gorm:"column:gross_income;type:numeric(15,2);not null"`
	TaxableIncome decimal.Decimal `gorm:"column:taxable_income;type:numeric(15,2);not null"`
	FinalTax      decimal.Decimal `gorm:"column:final_tax;type:numeric(15,2);not null"`
	EffectiveRate decimal.Decimal `gorm:"column:effective_rate;type:numeric(6,4);not null"`
	CalculatedAt  time.Time       `gorm:"column:calculated_at;not null"`
}

func (CalculationRecord) TableName() string { return "tax_calculations" }

type Repository interface {
	SaveCalculation(ctx context.Context, rec *CalculationRecord) error
}
