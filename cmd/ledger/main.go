package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/db"
	"creator-ledger/pkg/featureflags"
	"creator-ledger/pkg/geoip"
	"creator-ledger/pkg/hashistack/servicediscover"
	"creator-ledger/pkg/health"
	"creator-ledger/pkg/httpapi"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/otelcol"
	"creator-ledger/pkg/profiling"
	"creator-ledger/pkg/redis"
	"creator-ledger/pkg/sequence"
	"creator-ledger/pkg/server"
	"creator-ledger/pkg/storage"
	"creator-ledger/pkg/task"
	"creator-ledger/services/earnings"
	"creator-ledger/services/fraud"
	"creator-ledger/services/payout"
	"creator-ledger/services/pin"
	"creator-ledger/services/tier"
	"creator-ledger/services/wallet"
)

func main() {
	opts := []fx.Option{
		config.Module,
		logger.Module,
		otelcol.Module,
		profiling.Module,
		db.Module,
		redis.Module,
		task.Client,
		sequence.Module,
		featureflags.Module,
		geoip.Module,
		storage.Module,
		health.Module,
		fx.Provide(provideSnowflakeNode),
		fx.Invoke(migrate),

		tier.Module,
		tier.HTTP,
		earnings.Module,
		earnings.HTTP,
		wallet.Module,
		wallet.HTTP,
		pin.Module,
		pin.HTTP,
		payout.Module,
		payout.HTTP,
		fraud.Module,
		fraud.HTTP,

		httpapi.Module,
		server.ProvideGRPCServer,
		server.ProvideHTTPServer,
		servicediscover.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	if cfg.AppEnv == "production" {
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: logger.Named("fx")}
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func migrate(cfg *config.Config, gdb *gorm.DB) error {
	if !cfg.Database.AutoMigrate {
		return nil
	}

	var models []any
	for _, m := range [][]any{
		tier.Models(),
		earnings.Models(),
		wallet.Models(),
		pin.Models(),
		payout.Models(),
		fraud.Models(),
	} {
		models = append(models, m...)
	}
	return db.Migrate(gdb, models...)
}
