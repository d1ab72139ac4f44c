package fraud

import (
	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/middleware"
	"creator-ledger/services/earnings"
	"creator-ledger/services/payout"

	"go.uber.org/fx"
)

var Module = fx.Module("fraud.service",
	fx.Provide(
		func(e *earnings.Service) Ledger { return e },
		func(p *payout.Service) Payouts { return p },
		NewService,
		NewAuditor,
		func(a *Auditor) middleware.ActivityRecorder { return a },
	),
)

var HTTP = fx.Module("fraud.http",
	fx.Provide(httpapi.AsRouter(NewHandler)),
)

var Worker = fx.Module("fraud.worker",
	fx.Invoke(registerTaskHandlers),
)
