package main

import (
	"log"
	"os"

	"fogsly/pkg/config"
	"fogsly/pkg/db"
	"fogsly/pkg/featureflags"
	"fogsly/pkg/gen"
	"fogsly/pkg/hashistack/secretmanager"
	"fogsly/pkg/logger"
	"fogsly/pkg/otelcol"
	"fogsly/pkg/redis"
	"fogsly/pkg/sequence"
	"fogsly/pkg/task"
	"fogsly/services/ads"
	"fogsly/services/earnings"
	"fogsly/services/referral"
	"fogsly/services/settings"
	"fogsly/services/wallet"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	opts := []fx.Option{
		configModule(),
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		otelcol.Module,
		task.Client,
		task.Server,
		sequence.Module,
		featureflags.Module,

		settings.Module,
		wallet.Module, wallet.Worker,
		earnings.Module,
		referral.Module, referral.Worker,
		ads.Module, ads.Worker,

		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

// configModule reads config.yaml and the environment, or a consul/etcd document when
// REMOTE_CONFIG_PROVIDER is set. Secrets come from vault when VAULT_ADDR is set.
func configModule() fx.Option {
	if _, ok := os.LookupEnv("REMOTE_CONFIG_PROVIDER"); ok {
		return fx.Options(secretmanager.Module, config.RemoteModule)
	}
	if secretmanager.Enabled() {
		return fx.Options(secretmanager.Module, config.Module)
	}
	return config.Module
}
