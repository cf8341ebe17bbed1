package repository

import (
	"context"
	"errors"
	"time"

	"github.com/veldtax/veldtax/internal/fiscalyear"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) rulesdomain.Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	return loadTable(r.db.WithContext(ctx), year)
}

func loadTable(db *gorm.DB, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	table := rulesdomain.RuleTable{Year: year}

	if err := db.
		Where("tax_year = ?", year.String()).
		Order("lower_limit ASC").
		Find(&table.Brackets).Error; err != nil {
		return nil, err
	}
	if len(table.Brackets) == 0 {
		return nil, rulesdomain.ErrNoRuleTable
	}

	if err := db.Where("tax_year = ?", year.String()).First(&table.Rebates).Error; err != nil {
		return nil, firstErr(err)
	}
	if err := db.Where("tax_year = ?", year.String()).First(&table.Thresholds).Error; err != nil {
		return nil, firstErr(err)
	}
	if err := db.Where("tax_year = ?", year.String()).First(&table.MedicalCredits).Error; err != nil {
		return nil, firstErr(err)
	}

	var meta rulesdomain.TableMeta
	if err := db.Where("tax_year = ?", year.String()).First(&meta).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		meta.Source = rulesdomain.SourcePrimary
	}
	table.Source = meta.Source
	table.Stale = meta.Stale

	return &table, nil
}

func firstErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rulesdomain.ErrNoRuleTable
	}
	return err
}

func (r *repository) Exists(ctx context.Context, year fiscalyear.Year) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&rulesdomain.TaxBracket{}).
		Where("tax_year = ?", year.String()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Upsert replaces the year's rows in a single transaction so readers
// never observe a half-written table.
func (r *repository) Upsert(ctx context.Context, table *rulesdomain.RuleTable) error {
	year := table.Year.String()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&rulesdomain.TaxBracket{},
			&rulesdomain.RebateSet{},
			&rulesdomain.ThresholdSet{},
			&rulesdomain.MedicalCreditSet{},
			&rulesdomain.TableMeta{},
		} {
			if err := tx.Where("tax_year = ?", year).Delete(model).Error; err != nil {
				return err
			}
		}

		brackets := make([]rulesdomain.TaxBracket, len(table.Brackets))
		for i, b := range table.Brackets {
			b.ID = 0
			b.TaxYear = year
			brackets[i] = b
		}
		if err := tx.Create(&brackets).Error; err != nil {
			return err
		}

		rebates := table.Rebates
		rebates.ID = 0
		rebates.TaxYear = year
		if err := tx.Create(&rebates).Error; err != nil {
			return err
		}

		thresholds := table.Thresholds
		thresholds.ID = 0
		thresholds.TaxYear = year
		if err := tx.Create(&thresholds).Error; err != nil {
			return err
		}

		credits := table.MedicalCredits
		credits.ID = 0
		credits.TaxYear = year
		if err := tx.Create(&credits).Error; err != nil {
			return err
		}

		meta := rulesdomain.TableMeta{
			TaxYear:   year,
			Source:    table.Source,
			Stale:     table.Stale,
			UpdatedAt: time.Now().UTC(),
		}
		return tx.Create(&meta).Error
	})
}

func (r *repository) LatestBefore(ctx context.Context, year fiscalyear.Year) (*rulesdomain.RuleTable, error) {
	var meta rulesdomain.TableMeta
	err := r.db.WithContext(ctx).
		Where("tax_year < ? AND stale = ?", year.String(), false).
		Order("tax_year DESC").
		First(&meta).Error
	if err != nil {
		return nil, firstErr(err)
	}

	prior, err := fiscalyear.Parse(meta.TaxYear)
	if err != nil {
		return nil, err
	}
	return loadTable(r.db.WithContext(ctx), prior)
}
