package earnings

import (
	"creator-ledger/pkg/httpapi"
	"creator-ledger/services/tier"

	"go.uber.org/fx"
)

var Module = fx.Module("earnings.service",
	fx.Provide(
		func(t *tier.Service) TierEngine { return t },
		NewService,
	),
)

var HTTP = fx.Module("earnings.http",
	fx.Provide(httpapi.AsRouter(NewHandler)),
)

var Worker = fx.Module("earnings.worker",
	fx.Provide(
		fx.Annotate(reconcilePeriodic, fx.ResultTags(`group:"periodic"`)),
	),
	fx.Invoke(registerTaskHandlers),
)
