package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/veldtax/veldtax/internal/fiscalyear"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	pkgdb "github.com/veldtax/veldtax/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxpayerdomain.Repository {
	return &repository{db: db}
}

func (r *repository) FindTaxpayer(ctx context.Context, id snowflake.ID) (*taxpayerdomain.Taxpayer, error) {
	var t taxpayerdomain.Taxpayer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (r *repository) CreateTaxpayer(ctx context.Context, t *taxpayerdomain.Taxpayer) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return taxpayerdomain.ErrEmailTaken
		}
		return err
	}
	return nil
}

func (r *repository) ListIncome(ctx context.Context, taxpayerID snowflake.ID, year fiscalyear.Year) ([]taxpayerdomain.IncomeRecord, error) {
	var items []taxpayerdomain.IncomeRecord
	err := r.db.WithContext(ctx).
		Where("taxpayer_id = ? AND tax_year = ?", taxpayerID, year.String()).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateIncome(ctx context.Context, rec *taxpayerdomain.IncomeRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) DeleteIncome(ctx context.Context, taxpayerID, id snowflake.ID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND taxpayer_id = ?", id, taxpayerID).
		Delete(&taxpayerdomain.IncomeRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return taxpayerdomain.ErrNotFound
	}
	return nil
}

func (r *repository) ListExpenses(ctx context.Context, taxpayerID snowflake.ID, year fiscalyear.Year) ([]taxpayerdomain.ExpenseRecord, error) {
	var items []taxpayerdomain.ExpenseRecord
	err := r.db.WithContext(ctx).
		Where("taxpayer_id = ? AND tax_year = ?", taxpayerID, year.String()).
		Order("created_at ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) CreateExpense(ctx context.Context, rec *taxpayerdomain.ExpenseRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *repository) DeleteExpense(ctx context.Context, taxpayerID, id snowflake.ID) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND taxpayer_id = ?", id, taxpayerID).
		Delete(&taxpayerdomain.ExpenseRecord{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return taxpayerdomain.ErrNotFound
	}
	return nil
}

func (r *repository) ListExpenseTypes(ctx context.Context, activeOnly bool) ([]taxpayerdomain.DeductibleExpenseType, error) {
	stmt := r.db.WithContext(ctx).Model(&taxpayerdomain.DeductibleExpenseType{})
	if activeOnly {
		stmt = stmt.Where("is_active = ?", true)
	}

	var items []taxpayerdomain.DeductibleExpenseType
	if err := stmt.Order("name ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) FindExpenseType(ctx context.Context, id snowflake.ID) (*taxpayerdomain.DeductibleExpenseType, error) {
	var t taxpayerdomain.DeductibleExpenseType
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error
	if err != nil {
		return nil, expenseTypeNotFound(err)
	}
	return &t, nil
}

func (r *repository) FindExpenseTypeByName(ctx context.Context, name string) (*taxpayerdomain.DeductibleExpenseType, error) {
	var t taxpayerdomain.DeductibleExpenseType
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&t).Error
	if err != nil {
		return nil, expenseTypeNotFound(err)
	}
	return &t, nil
}

func (r *repository) CreateExpenseType(ctx context.Context, t *taxpayerdomain.DeductibleExpenseType) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return taxpayerdomain.ErrNotFound
	}
	return err
}

func expenseTypeNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return taxpayerdomain.ErrExpenseTypeNotFound
	}
	return err
}
