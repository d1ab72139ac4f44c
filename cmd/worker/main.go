package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/db"
	"creator-ledger/pkg/featureflags"
	"creator-ledger/pkg/geoip"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/redis"
	"creator-ledger/pkg/sequence"
	"creator-ledger/pkg/storage"
	"creator-ledger/pkg/task"
	"creator-ledger/services/earnings"
	"creator-ledger/services/fraud"
	"creator-ledger/services/payout"
	"creator-ledger/services/pin"
	"creator-ledger/services/tier"
	"creator-ledger/services/wallet"
)

// The worker drains the view and ip-log queues and runs the nightly
// balance reconcile. It shares the API's tables and never migrates them.
func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		sequence.Module,
		featureflags.Module,
		geoip.Module,
		storage.Module,
		fx.Provide(provideSnowflakeNode),

		tier.Module,
		earnings.Module,
		wallet.Module,
		pin.Module,
		payout.Module,
		fraud.Module,

		task.Server,
		task.Scheduler,
		earnings.Worker,
		fraud.Worker,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})

// Node 2 keeps worker generated ids disjoint from the API's.
func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(2)
}
