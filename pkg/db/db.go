package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"fogsly/pkg/config"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/prometheus"
)

var Module = fx.Module("database",
	fx.Provide(
		Dialect,
		New,
	),
	fx.Invoke(RegisterConnectionPool, RegisterPlugins, Migrate),
)

// ProvideModels contributes gorm models to the startup migration.
func ProvideModels(models ...any) fx.Option {
	return fx.Provide(
		fx.Annotate(
			func() []any { return models },
			fx.ResultTags(`group:"models,flatten"`),
		),
	)
}

func Dialect(cfg *config.Config) gorm.Dialector {
	d := cfg.Database
	switch strings.ToLower(d.Type) {
	case "postgres", "postgresql":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
			d.Host, d.User, d.Password, d.DBNAME, d.Port, d.SSLMode, d.Timezone)
		return postgres.Open(dsn)
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBNAME)
		return mysql.Open(dsn)
	default:
		name := d.DBNAME
		if name == "" {
			name = "fogsly.db"
		}
		return sqlite.Open(name + "?_busy_timeout=5000&_foreign_keys=on")
	}
}

func New(cfg *config.Config, dialector gorm.Dialector) *gorm.DB {
	var db *gorm.DB
	var err error

	var logLevel logger.LogLevel
	var showSQL bool

	if cfg.AppEnv == "production" {
		logLevel = logger.Warn
		showSQL = false
	} else {
		logLevel = logger.Info
		showSQL = true
	}

	gormLogger := NewZapGormLogger(zap.L(), logLevel, showSQL)

	for i := 0; i < 5; i++ {
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger: gormLogger,
			NowFunc: func() time.Time {
				return time.Now().UTC()
			},
		})
		if err == nil {
			break
		}
		zap.L().Warn("[DB] Database not ready, retrying in 3 seconds... ", zap.Int("retry", i+1), zap.Error(err))
		time.Sleep(3 * time.Second)
	}

	if err != nil {
		zap.L().Error("[DB] Failed to connect to database", zap.Error(err))
		os.Exit(1)
	}

	zap.L().Info("[DB] Database connection successfully configured.", zap.String("dialect", dialector.Name()))

	return db
}

type connectionPoolParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	DB        *gorm.DB
	Config    *config.Config
}

func RegisterConnectionPool(p connectionPoolParams) {
	if p.DB == nil {
		zap.L().Error("[DB] Skipping connection pool setup (no db instance)")
		os.Exit(1)
	}

	sqlDB, err := p.DB.DB()
	if err != nil {
		zap.L().Error("[DB] Failed to get sql.DB from gorm", zap.Error(err))
		os.Exit(1)
	}

	cp := p.Config.Database.ConnectionPool
	maxOpen := cp.MaxOpenConns
	if p.DB.Dialector.Name() == "sqlite" {
		// single writer
		maxOpen = 1
	}
	sqlDB.SetMaxIdleConns(cp.MaxIdleConn)
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetConnMaxLifetime(cp.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cp.ConnMaxIdleTime)

	zap.L().Info("[DB] Connection pool configured", zap.Int("max_open_conns", maxOpen))
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			zap.L().Info("[DB] Closing connection pool...")
			return sqlDB.Close()
		},
	})
}

func RegisterPlugins(db *gorm.DB, cfg *config.Config) error {
	if cfg.Otel.Addr != "" {
		if err := Otel(db); err != nil {
			return err
		}
	}
	if cfg.Database.Metrics {
		if err := Metric(db); err != nil {
			return err
		}
	}
	return nil
}

type migrateParams struct {
	fx.In
	DB     *gorm.DB
	Models []any `group:"models"`
}

// Migrate auto-migrates every model contributed through ProvideModels.
func Migrate(p migrateParams) error {
	if len(p.Models) == 0 {
		return nil
	}
	if err := p.DB.AutoMigrate(p.Models...); err != nil {
		zap.L().Error("[DB] Failed to migrate schema", zap.Error(err))
		return err
	}
	zap.L().Info("[DB] Schema migrated", zap.Int("models", len(p.Models)))
	return nil
}

func Otel(db *gorm.DB) error {
	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		zap.L().Error("Failed to register db telemetry", zap.Error(err))
		return err
	}

	return nil
}

func Metric(db *gorm.DB) error {
	var collectors []prometheus.MetricsCollector
	switch db.Dialector.(type) {
	case *postgres.Dialector:
		collectors = append(collectors, &prometheus.Postgres{VariableNames: []string{"Threads_running"}})
	case *mysql.Dialector:
		collectors = append(collectors, &prometheus.MySQL{VariableNames: []string{"Threads_running"}})
	}

	if err := db.Use(prometheus.New(prometheus.Config{
		DBName:           getDBNameFromDialector(db.Dialector),
		RefreshInterval:  15,
		MetricsCollector: collectors,
	})); err != nil {
		zap.L().Error("Failed to register db metrics", zap.Error(err))
		return err
	}
	return nil
}

func extractDBNameFromDSN(dsn string) string {
	for _, part := range strings.Fields(dsn) {
		if strings.HasPrefix(part, "dbname=") {
			return strings.TrimPrefix(part, "dbname=")
		}
	}
	if i := strings.Index(dsn, ")/"); i >= 0 {
		name := dsn[i+2:]
		if j := strings.Index(name, "?"); j >= 0 {
			name = name[:j]
		}
		return name
	}
	return "unknown"
}

func getDBNameFromDialector(dialector gorm.Dialector) string {
	switch d := dialector.(type) {
	case *postgres.Dialector:
		return extractDBNameFromDSN(d.Config.DSN)
	case *mysql.Dialector:
		return extractDBNameFromDSN(d.Config.DSN)
	case *sqlite.Dialector:
		return d.DSN
	default:
		return "unknown"
	}
}
