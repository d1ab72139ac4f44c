package wallet

import (
	"creator-ledger/pkg/httpapi"

	"go.uber.org/fx"
)

var Module = fx.Module("wallet.service",
	fx.Provide(NewService),
)

var HTTP = fx.Module("wallet.http",
	fx.Provide(httpapi.AsRouter(NewHandler)),
)
