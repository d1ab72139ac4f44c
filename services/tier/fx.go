package tier

import (
	"creator-ledger/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(
		RateTableFromConfig,
		NewService,
	),
)

var HTTP = fx.Module("tier.http",
	fx.Provide(httpapi.AsRouter(NewHandler)),
)
