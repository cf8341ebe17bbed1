package provisional

import (
	"github.com/veldtax/veldtax/internal/provisional/service"
	"go.uber.org/fx"
)

var Module = fx.Module("provisional",
	fx.Provide(service.NewService),
)
