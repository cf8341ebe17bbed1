package migration

import (
	"github.com/veldtax/veldtax/internal/config"
	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	rulesdomain "github.com/veldtax/veldtax/internal/taxrules/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// The versioned SQL migrations target postgres. Other dialects
		// (sqlite for local runs and tests) use gorm's schema sync.
		if cfg.DBType != "postgres" {
			return conn.AutoMigrate(
				&taxpayerdomain.Taxpayer{},
				&taxpayerdomain.IncomeRecord{},
				&taxpayerdomain.ExpenseRecord{},
				&taxpayerdomain.DeductibleExpenseType{},
				&rulesdomain.TaxBracket{},
				&rulesdomain.RebateSet{},
				&rulesdomain.ThresholdSet{},
				&rulesdomain.MedicalCreditSet{},
				&rulesdomain.TableMeta{},
				&taxcalcdomain.CalculationRecord{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
