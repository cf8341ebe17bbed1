package taxcalc

import (
	"github.com/veldtax/veldtax/internal/taxcalc/repository"
	"github.com/veldtax/veldtax/internal/taxcalc/service"
	"go.uber.org/fx"
)

var Module = fx.Module("taxcalc",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
