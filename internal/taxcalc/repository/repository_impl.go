package repository

import (
	"context"

	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) taxcalcdomain.Repository {
	return &repository{db: db}
}

func (r *repository) SaveCalculation(ctx context.Context, rec *taxcalcdomain.CalculationRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}
