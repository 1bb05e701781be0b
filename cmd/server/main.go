package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/devaeterne/marketplaceint/config"
	"github.com/devaeterne/marketplaceint/internal/repositories/pricelog"
	productrepo "github.com/devaeterne/marketplaceint/internal/repositories/product"
	"github.com/devaeterne/marketplaceint/internal/repositories/productdetail"
	"github.com/devaeterne/marketplaceint/internal/repositories/searchterm"
	"github.com/devaeterne/marketplaceint/pkg/browser"
	"github.com/devaeterne/marketplaceint/pkg/database"
	"github.com/devaeterne/marketplaceint/pkg/events"
	"github.com/devaeterne/marketplaceint/pkg/extractor"
	"github.com/devaeterne/marketplaceint/pkg/extractor/hepsiburada"
	"github.com/devaeterne/marketplaceint/pkg/extractor/n11"
	"github.com/devaeterne/marketplaceint/pkg/extractor/trendyol"
	"github.com/devaeterne/marketplaceint/pkg/ingest"
	"github.com/devaeterne/marketplaceint/pkg/kafka"
	"github.com/devaeterne/marketplaceint/pkg/middleware"
	"github.com/devaeterne/marketplaceint/pkg/routes/health"
	"github.com/devaeterne/marketplaceint/pkg/routes/jobs"
	"github.com/devaeterne/marketplaceint/pkg/routes/product"
	"github.com/devaeterne/marketplaceint/pkg/routes/validation"
	"github.com/devaeterne/marketplaceint/pkg/startup"
	"github.com/devaeterne/marketplaceint/pkg/tracing"
	"github.com/devaeterne/marketplaceint/pkg/tracing/exporters"
)

var version = "dev"

func main() {
	// Missing .env is fine in containerized deploys; config falls back to
	// process env and tag defaults.
	_ = godotenv.Load()

	var cfg config.Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, flush := newLogger(cfg)
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerShutdown := setupTracing(ctx, cfg, logger)
	defer tracerShutdown()

	var (
		db              database.DB
		browserSession  *browser.Session
		productProducer *kafka.Producer
		runProducer     *kafka.Producer
	)

	boot := startup.New(logger, cfg.StartupMaxAttempts)
	boot.AddDependency(startup.Func{
		Name: "database",
		StartFn: func(ctx context.Context) error {
			var err error
			db, err = database.Connect(ctx, database.ConnectionConfig{
				Host:            cfg.DatabaseHost,
				Port:            cfg.DatabasePort,
				UserName:        cfg.DatabaseUserName,
				Password:        cfg.DatabasePassword,
				Name:            cfg.DatabaseName,
				SSLMode:         cfg.DatabaseSSLMode,
				MaxOpenConns:    cfg.DatabaseMaxOpenConns,
				MaxIdleConns:    cfg.DatabaseMaxIdleConns,
				ConnMaxLifetime: cfg.DatabaseConnMaxLifetime,
			}, logger)
			return err
		},
		StopFn: func(_ context.Context) error {
			return db.Close()
		},
	})
	boot.AddDependency(startup.Func{
		Name:     "migrations",
		Requires: []string{"database"},
		StartFn: func(_ context.Context) error {
			driver, err := migratepg.WithInstance(db.Unsafe().DB, &migratepg.Config{})
			if err != nil {
				return err
			}
			ms := database.NewMigrationService(logger, &database.MigrationConfig{
				MigrationFolderPath: cfg.DatabaseMigrationFolderPath,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
			})
			return ms.Migrate(cfg.DatabaseName, driver)
		},
	})
	boot.AddDependency(startup.Func{
		Name: "browser",
		StartFn: func(ctx context.Context) error {
			browserSession = browser.NewSession(ctx, browser.Config{
				Headless:      cfg.BrowserHeadless,
				UserAgent:     cfg.BrowserUserAgent,
				PageLoadDelay: cfg.PageLoadDelay,
				FetchTimeout:  cfg.FetchTimeout,
			}, logger)
			return nil
		},
		StopFn: func(_ context.Context) error {
			browserSession.Close()
			return nil
		},
	})
	if cfg.KafkaEnabled {
		boot.AddDependency(startup.Func{
			Name: "kafka",
			StartFn: func(_ context.Context) error {
				productProducer = newProducer(cfg, cfg.KafkaProductTopic, logger)
				runProducer = newProducer(cfg, cfg.KafkaRunTopic, logger)
				return nil
			},
			StopFn: func(_ context.Context) error {
				if err := productProducer.Close(); err != nil {
					return err
				}
				return runProducer.Close()
			},
		})
	}

	if err := boot.Start(ctx); err != nil {
		logger.WithError(err).Error("Startup failed")
		os.Exit(1)
	}

	products := productrepo.NewRepository(db, logger)
	prices := pricelog.NewRepository(db, logger)
	details := productdetail.NewRepository(db, logger)
	terms := searchterm.NewRepository(db, logger)

	trendyolExt := trendyol.New(browserSession, logger)
	n11Ext := n11.New(browserSession, logger)
	hepsiburadaExt := hepsiburada.New(browserSession, logger)
	registry := extractor.NewRegistry(
		[]extractor.ListingExtractor{trendyolExt, n11Ext, hepsiburadaExt},
		[]extractor.DetailExtractor{trendyolExt, n11Ext, hepsiburadaExt},
	)

	var emitter ingest.Emitter
	if cfg.KafkaEnabled {
		emitter = events.NewEmitter(productProducer, runProducer, logger)
	}

	runner := ingest.NewRunner(db, products, prices, terms, registry, emitter, cfg.MaxPagesPerTerm, logger)
	enricher := ingest.NewEnricher(products, details, registry, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.AllowOrigins,
		AllowMethods: cfg.AllowMethods,
	}))
	e.Use(otelecho.Middleware(cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(logger))

	checker := health.NewChecker(db, version)
	checker.RegisterRoutes(e)

	api := e.Group("/api/v1")
	jobs.NewHandler(runner, enricher, cfg.SearchTermsPath, cfg.JobTimeout, cfg.EnrichBatchLimit, logger).RegisterRoutes(api)
	product.NewHandler(products, prices, details).RegisterRoutes(api)

	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = cfg.MaxHeaderBytes

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.WithField("addr", addr).Infof("%s listening on %s", cfg.AppName, addr)
		if err := e.Start(addr); err != nil {
			logger.WithError(err).Info("HTTP server stopped")
		}
	}()
	checker.SetReady(true)

	<-ctx.Done()
	logger.Info("Shutdown signal received")
	checker.SetReady(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Failed to shut down HTTP server cleanly")
	}
	boot.Stop(shutdownCtx)
}

func newProducer(cfg config.Config, topic string, logger ectologger.Logger) *kafka.Producer {
	return kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.KafkaBrokers,
		Topic:        topic,
		BatchSize:    cfg.KafkaBatchSize,
		BatchTimeout: time.Duration(cfg.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: cfg.KafkaRequiredAcks,
		Compression:  cfg.KafkaCompression,
	}, logger)
}

func newLogger(cfg config.Config) (ectologger.Logger, func()) {
	var zapLogger *zap.Logger
	var err error
	if cfg.PrettyLogs {
		zapLogger, err = zap.NewDevelopment()
	} else {
		zapLogger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	return zapadapter.NewZapEctoLogger(zapLogger, nil), func() { _ = zapLogger.Sync() }
}

// setupTracing installs the OTLP pipeline when enabled. The returned func
// flushes pending spans on shutdown.
func setupTracing(ctx context.Context, cfg config.Config, logger ectologger.Logger) func() {
	if !cfg.TracingEnabled {
		return func() {}
	}

	var exporter sdktrace.SpanExporter
	if cfg.TracingProtocol == "console" {
		exporter = exporters.NewConsoleExporter(logger)
	} else {
		var err error
		exporter, err = exporters.NewOTLPExporter(ctx, exporters.OTLPConfig{
			Endpoint: cfg.TracingOTLPEndpoint,
			Protocol: cfg.TracingProtocol,
			Insecure: true,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			logger.WithError(err).Error("Failed to create trace exporter, continuing without tracing")
			return func() {}
		}
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", cfg.AppName),
			attribute.String("service.version", version),
		)),
	)
	otel.SetTracerProvider(tp)
	tracing.SetTracer(tp.Tracer(cfg.AppName))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Failed to shut down tracer provider")
		}
	}
}
