package taxpayer

import (
	"context"

	"github.com/bwmarrin/snowflake"
	taxpayerdomain "github.com/veldtax/veldtax/internal/taxpayer/domain"
	"github.com/veldtax/veldtax/internal/taxpayer/repository"
	"github.com/veldtax/veldtax/internal/taxpayer/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("taxpayer",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Invoke(seedExpenseTypes),
)

func seedExpenseTypes(lc fx.Lifecycle, repo taxpayerdomain.Repository, genID *snowflake.Node, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return service.SeedExpenseTypes(ctx, repo, genID, log)
		},
	})
}
