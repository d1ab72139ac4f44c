package pin

import (
	"creator-ledger/pkg/config"
	"creator-ledger/pkg/httpapi"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

var Module = fx.Module("pin.service",
	fx.Provide(
		func(rdb *redis.Client, cfg *config.Config) Limiter { return NewRedisLimiter(rdb, cfg) },
		NewService,
	),
)

var HTTP = fx.Module("pin.http",
	fx.Provide(httpapi.AsRouter(NewHandler)),
)
