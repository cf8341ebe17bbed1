package taxrules

import (
	"github.com/veldtax/veldtax/internal/taxrules/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("taxrules",
	fx.Provide(repository.NewRepository),
)
