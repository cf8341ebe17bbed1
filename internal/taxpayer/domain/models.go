package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Income source categories.
const (
	IncomeSourceSalary     = "salary"
	IncomeSourceRental     = "rental"
	IncomeSourceInvestment = "investment"
	IncomeSourceBusiness   = "business"
	IncomeSourceFreelance  = "freelance"
	IncomeSourceOther      = "other"
)

func ValidIncomeSource(s string) bool {
	switch s {
	case IncomeSourceSalary, IncomeSourceRental, IncomeSourceInvestment,
		IncomeSourceBusiness, IncomeSourceFreelance, IncomeSourceOther:
		return true
	default:
		return false
	}
}

// Taxpayer is the profile the engine computes against. Identity and the
// admin flag are supplied by the upstream auth layer; this service only
// stores the tax-relevant attributes.
type Taxpayer struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	Email       string       `gorm:"type:text;not null;uniqueIndex"`
	Name        string       `gorm:"type:text;not null"`
	Surname     string       `gorm:"type:text"`
	DateOfBirth time.Time    `gorm:"column:date_of_birth;not null"`

	IsProvisionalTaxpayer bool `gorm:"column:is_provisional_taxpayer;not null;default:false"`

	// Covered lives on the taxpayer's medical scheme. Members is 0 when
	// not on a scheme, 1 for the main member; dependants are additional
	// covered lives.
	MedicalMembers    int `gorm:"column:medical_members;not null;default:0"`
	MedicalDependants int `gorm:"column:medical_dependants;not null;default:0"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Taxpayer) TableName() string { return "taxpayers" }

// AgeOn returns the taxpayer's age on the given date.
func (t *Taxpayer) AgeOn(date time.Time) int {
	age := date.Year() - t.DateOfBirth.Year()
	birthday := time.Date(date.Year(), t.DateOfBirth.Month(), t.DateOfBirth.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(birthday) {
		age--
	}
	return age
}

// IncomeRecord is one annual income source for a taxpayer and year.
type IncomeRecord struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	TaxpayerID snowflake.ID `gorm:"column:taxpayer_id;not null;index:idx_income_taxpayer_year"`
	TaxYear    string       `gorm:"column:tax_year;type:text;not null;index:idx_income_taxpayer_year"`

	SourceType   string          `gorm:"column:source_type;type:text;not null"`
	Description  string          `gorm:"type:text"`
	AnnualAmount decimal.Decimal `gorm:"column:annual_amount;type:numeric(15,2);not null"`

	// IsPAYE marks employment income with tax withheld at source; a
	// taxpayer holding only PAYE income is not provisional-eligible.
	IsPAYE bool `gorm:"column:is_paye;not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (IncomeRecord) TableName() string { return "income_records" }

// DeductibleExpenseType bounds how much of a claimed expense category
// may reduce taxable income. Nil caps mean uncapped on that dimension.
type DeductibleExpenseType struct {
	ID          snowflake.ID     `gorm:"primaryKey"`
	Name        string           `gorm:"type:text;not null;uniqueIndex"`
	Description string           `gorm:"type:text"`
	MaxAmount   *decimal.Decimal `gorm:"column:max_amount;type:numeric(15,2)"`
	MaxPercent  *decimal.Decimal `gorm:"column:max_percent;type:numeric(6,4)"`
	IsActive    bool             `gorm:"column:is_active;not null;default:true"`
}

func (DeductibleExpenseType) TableName() string { return "deductible_expense_types" }

// ExpenseRecord is one claimed deductible expense for a taxpayer and year.
type ExpenseRecord struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TaxpayerID    snowflake.ID `gorm:"column:taxpayer_id;not null;index:idx_expense_taxpayer_year"`
	TaxYear       string       `gorm:"column:tax_year;type:text;not null;index:idx_expense_taxpayer_year"`
	ExpenseTypeID snowflake.ID `gorm:"column:expense_type_id;not null"`

	Description string          `gorm:"type:text"`
	Amount      decimal.Decimal `gorm:"type:numeric(15,2);not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (ExpenseRecord) TableName() string { return "expense_records" }

// HasNonPAYE reports whether any income record escapes withholding,
// which is what makes a flagged taxpayer provisional in practice.
func HasNonPAYE(records []IncomeRecord) bool {
	for _, r := range records {
		if !r.IsPAYE {
			return true
		}
	}
	return false
}
