package payout

import (
	"creator-ledger/pkg/httpapi"
	"creator-ledger/services/earnings"
	"creator-ledger/services/pin"
	"creator-ledger/services/wallet"

	"go.uber.org/fx"
)

var Module = fx.Module("payout.service",
	fx.Provide(
		func(e *earnings.Service) Ledger { return e },
		func(w *wallet.Service) Wallets { return w },
		func(p *pin.Service) Pins { return p },
		NewService,
	),
)

var HTTP = fx.Module("payout.http",
	fx.Provide(httpapi.AsRouter(NewHandler)),
)
