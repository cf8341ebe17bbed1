package lock

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/veldtax/veldtax/internal/config"
	"go.uber.org/fx"
)

// newClient returns nil when redis is not configured; the Locker and
// its callers tolerate that.
func newClient(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

var Module = fx.Module("lock",
	fx.Provide(newClient),
	fx.Provide(NewLocker),
)
