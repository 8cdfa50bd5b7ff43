package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"fogsly/pkg/config"
	"fogsly/pkg/db"
	"fogsly/pkg/gen"
	"fogsly/pkg/logger"
	"fogsly/services/ads"
	"fogsly/services/earnings"
	"fogsly/services/settings"
	"fogsly/services/wallet"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// seed -file ads.json loads a JSON array of ads and creates them through the ads
// service, so the same validation applies as for the admin API.
func main() {
	file := flag.String("file", "ads.json", "JSON array of ads to create")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read %s: %v", *file, err)
	}
	var batch []ads.CreateAdParams
	if err := json.Unmarshal(raw, &batch); err != nil {
		log.Fatalf("parse %s: %v", *file, err)
	}

	opts := []fx.Option{
		config.Module,
		logger.Module,
		db.Module,
		gen.Module,
		settings.Module,
		wallet.Module,
		earnings.Module,
		ads.Module,
		fx.Invoke(func(lc fx.Lifecycle, sh fx.Shutdowner, svc *ads.Service) {
			lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
				go seed(svc, batch, sh)
				return nil
			}})
		}),
		fx.WithLogger(func() fxevent.Logger { return fxevent.NopLogger }),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	fx.New(opts...).Run()
}

func seed(svc *ads.Service, batch []ads.CreateAdParams, sh fx.Shutdowner) {
	ctx := context.Background()
	code := 0
	for _, p := range batch {
		p.CreatedBy = "seed"
		ad, err := svc.CreateAd(ctx, p)
		if err != nil {
			zap.L().Error("failed to seed ad", zap.String("title", p.Title), zap.Error(err))
			code = 1
			continue
		}
		zap.L().Info("ad seeded", zap.String("id", ad.ID), zap.String("slug", ad.Slug))
	}
	_ = sh.Shutdown(fx.ExitCode(code))
}
