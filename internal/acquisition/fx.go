package acquisition

import (
	acqdomain "github.com/veldtax/veldtax/internal/acquisition/domain"
	"github.com/veldtax/veldtax/internal/acquisition/service"
	taxcalcdomain "github.com/veldtax/veldtax/internal/taxcalc/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("acquisition",
	fx.Provide(service.NewPipeline),
	fx.Provide(func(s acqdomain.Service) taxcalcdomain.TableEnsurer { return s }),
)
