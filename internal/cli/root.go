// Package cli wires configuration, storage and services into the biblio
// commands.
package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"biblio/internal/config"
	"biblio/internal/events"
	"biblio/internal/metrics"
	"biblio/internal/repositories"
	"biblio/internal/services"
)

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "biblio",
		Short:         "Library reservation back end",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newSeedCommand(),
		newCleanCommand(),
		newReportCommand(),
	)
	return root
}

// app is everything a command needs once configuration is loaded.
type app struct {
	cfg          config.Config
	logger       *zap.Logger
	db           *gorm.DB
	registry     *prometheus.Registry
	publisher    events.Publisher
	books        services.BookService
	clients      services.ClientService
	reservations services.ReservationService
	auth         services.AuthService
}

func newApp() (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, db: db, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.publisher = newPublisher(cfg, logger)

	bookRepo := repositories.NewBookRepository(db)
	clientRepo := repositories.NewClientRepository(db)
	reservationRepo := repositories.NewReservationRepository(db)
	userRepo := repositories.NewUserRepository(db)

	policy := services.NewFinePolicy(decimal.NewFromFloat(cfg.FineFixedFee), decimal.NewFromFloat(cfg.FineDailyPercent))
	a.books = services.NewBookService(db, bookRepo, logger)
	a.clients = services.NewClientService(db, clientRepo, reservationRepo, logger)
	a.reservations = services.NewReservationService(db, reservationRepo, a.clients, a.books, policy,
		a.publisher, metrics.New(a.registry), logger)
	a.auth = services.NewAuthService(db, userRepo, cfg.JWTSecret, cfg.JWTTTL, logger)
	return a, nil
}

func (a *app) Close() {
	a.publisher.Close()
	if sqlDB, err := a.db.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.logger.Sync()
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get generic DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	return db, nil
}

// newPublisher connects to RabbitMQ when configured. A broker that cannot be
// reached is logged and replaced by the log-only publisher.
func newPublisher(cfg config.Config, logger *zap.Logger) events.Publisher {
	fallback := &events.LogPublisher{Logger: logger}
	if cfg.RabbitMQURL == "" {
		return fallback
	}
	pub, err := events.NewAMQPPublisher(cfg.RabbitMQURL, cfg.EventsExchange)
	if err != nil {
		logger.Warn("rabbitmq unavailable, events will only be logged", zap.Error(err))
		return fallback
	}
	logger.Info("publishing reservation events", zap.String("exchange", cfg.EventsExchange))
	return pub
}

func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc := zap.NewProductionConfig()
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = lvl
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
