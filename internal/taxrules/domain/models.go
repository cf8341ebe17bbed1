package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/veldtax/veldtax/internal/fiscalyear"
)

// TableSource records which acquisition tier produced a stored rule table.
type TableSource string

const (
	SourcePrimary      TableSource = "primary"
	SourceArchive      TableSource = "archive"
	SourceCarryForward TableSource = "carry_forward"
	SourceStatic       TableSource = "static"
)

// Stale reports whether the source is a degraded tier: consumers surface
// an advisory flag when calculations run against carried-forward or
// bundled data.
func (s TableSource) Stale() bool {
	return s == SourceCarryForward || s == SourceStatic
}

// TaxBracket is one row of a year's progressive bracket table.
// UpperLimit is nil on the unbounded top bracket. BaseAmount is the tax
// payable on all income up to LowerLimit.
type TaxBracket struct {
	ID         int64           `gorm:"primaryKey;autoIncrement"`
	TaxYear    string          `gorm:"column:tax_year;type:text;not null;index"`
	LowerLimit int64           `gorm:"column:lower_limit;not null"`
	UpperLimit *int64          `gorm:"column:upper_limit"`
	Rate       decimal.Decimal `gorm:"type:numeric(6,4);not null"`
	BaseAmount decimal.Decimal `gorm:"column:base_amount;type:numeric(15,2);not null"`
}

func (TaxBracket) TableName() string { return "tax_brackets" }

// RebateSet holds the flat age-tier rebates for a year. Secondary and
// tertiary are additive on top of primary, never replacements.
type RebateSet struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	TaxYear   string          `gorm:"column:tax_year;type:text;not null;uniqueIndex"`
	Primary   decimal.Decimal `gorm:"column:primary_rebate;type:numeric(15,2);not null"`
	Secondary decimal.Decimal `gorm:"column:secondary_rebate;type:numeric(15,2);not null"`
	Tertiary  decimal.Decimal `gorm:"column:tertiary_rebate;type:numeric(15,2);not null"`
}

func (RebateSet) TableName() string { return "tax_rebates" }

// ThresholdSet holds the age-tier incomes below which liability is zero.
type ThresholdSet struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	TaxYear   string `gorm:"column:tax_year;type:text;not null;uniqueIndex"`
	Under65   int64  `gorm:"column:under_65;not null"`
	Age65To74 int64  `gorm:"column:age_65_to_74;not null"`
	Age75Plus int64  `gorm:"column:age_75_plus;not null"`
}

func (ThresholdSet) TableName() string { return "tax_thresholds" }

// MedicalCreditSet holds the monthly medical scheme fee credits per
// covered life.
type MedicalCreditSet struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	TaxYear          string          `gorm:"column:tax_year;type:text;not null;uniqueIndex"`
	MainMember       decimal.Decimal `gorm:"column:main_member;type:numeric(15,2);not null"`
	AdditionalMember decimal.Decimal `gorm:"column:additional_member;type:numeric(15,2);not null"`
}

func (MedicalCreditSet) TableName() string { return "medical_tax_credits" }

// TableMeta tracks provenance of a stored year's table.
type TableMeta struct {
	ID        int64       `gorm:"primaryKey;autoIncrement"`
	TaxYear   string      `gorm:"column:tax_year;type:text;not null;uniqueIndex"`
	Source    TableSource `gorm:"type:text;not null"`
	Stale     bool        `gorm:"not null;default:false"`
	UpdatedAt time.Time   `gorm:"not null"`
}

func (TableMeta) TableName() string { return "tax_table_meta" }

// RuleTable is the complete set of tax rules for one fiscal year, the
// unit the acquisition pipeline validates and upserts atomically.
type RuleTable struct {
	Year           fiscalyear.Year
	Brackets       []TaxBracket
	Rebates        RebateSet
	Thresholds     ThresholdSet
	MedicalCredits MedicalCreditSet
	Source         TableSource
	Stale          bool
}

// ThresholdFor returns the age-appropriate zero-liability threshold.
func (t *RuleTable) ThresholdFor(age int) int64 {
	switch {
	case age >= 75:
		return t.Thresholds.Age75Plus
	case age >= 65:
		return t.Thresholds.Age65To74
	default:
		return t.Thresholds.Under65
	}
}

// RebateFor returns the summed rebate tiers applicable at the given age.
func (t *RuleTable) RebateFor(age int) decimal.Decimal {
	total := t.Rebates.Primary
	if age >= 65 {
		total = total.Add(t.Rebates.Secondary)
	}
	if age >= 75 {
		total = total.Add(t.Rebates.Tertiary)
	}
	return total
}
