package main

import (
	"log"
	"os"

	"fogsly/pkg/accesscontrol"
	"fogsly/pkg/config"
	"fogsly/pkg/db"
	"fogsly/pkg/featureflags"
	"fogsly/pkg/gen"
	"fogsly/pkg/hashistack/secretmanager"
	"fogsly/pkg/hashistack/servicediscover"
	"fogsly/pkg/health"
	"fogsly/pkg/httpapi"
	"fogsly/pkg/logger"
	"fogsly/pkg/minio"
	"fogsly/pkg/otelcol"
	"fogsly/pkg/profiling"
	"fogsly/pkg/redis"
	"fogsly/pkg/sequence"
	"fogsly/pkg/server"
	"fogsly/pkg/task"
	"fogsly/services/ads"
	"fogsly/services/auth"
	"fogsly/services/earnings"
	"fogsly/services/payment"
	"fogsly/services/profile"
	"fogsly/services/ranking"
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
		profiling.Module,
		task.Client,
		sequence.Module,
		minio.Client,
		featureflags.Module,
		accesscontrol.Module,
		health.Module,
		httpapi.Module,

		settings.Module, settings.HTTP,
		ranking.Module, ranking.HTTP,
		profile.Module, profile.HTTP,
		wallet.Module, wallet.HTTP,
		earnings.Module, earnings.HTTP,
		referral.Module, referral.HTTP,
		ads.Module, ads.HTTP,
		payment.Module, payment.HTTP,
		auth.Module, auth.HTTP,

		server.ProvideHTTPServer,
		server.ProvideGRPCServer,
		servicediscover.Module,
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
	return &fxevent.ZapLogger{Logger: logger}
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
