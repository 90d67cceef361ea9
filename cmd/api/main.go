package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dejobratic/garment-orders/internal/config"
	"github.com/dejobratic/garment-orders/internal/database"
	idemmemory "github.com/dejobratic/garment-orders/internal/idempotency/memory"
	idempostgres "github.com/dejobratic/garment-orders/internal/idempotency/postgres"
	"github.com/dejobratic/garment-orders/internal/kafka"
	"github.com/dejobratic/garment-orders/internal/orders/adapters"
	httpadapter "github.com/dejobratic/garment-orders/internal/orders/adapters/http"
	"github.com/dejobratic/garment-orders/internal/orders/adapters/memory"
	orderspostgres "github.com/dejobratic/garment-orders/internal/orders/adapters/postgres"
	ordersredis "github.com/dejobratic/garment-orders/internal/orders/adapters/redis"
	ordersapp "github.com/dejobratic/garment-orders/internal/orders/app"
	ordersmetrics "github.com/dejobratic/garment-orders/internal/orders/metrics"
	"github.com/dejobratic/garment-orders/internal/orders/ports"
	"github.com/dejobratic/garment-orders/internal/telemetry"
)

const idempotencyPurgeInterval = 10 * time.Minute

// purger is implemented by idempotency stores that can drop expired keys.
type purger interface {
	Purge(ctx context.Context) (int, error)
}

type storage struct {
	orders      ports.OrderRepository
	uow         ports.UnitOfWork
	idempotency ports.IdempotencyStore
	purger      purger
	readiness   map[string]httpadapter.ReadinessCheck
	close       func()
}

func main() {
	if err := run(); err != nil {
		slog.Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(telemetry.ParseLevel(cfg.Telemetry.LogLevel)).
		With("service", cfg.Service.Name, "environment", cfg.Service.Environment)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportEnabled := cfg.Telemetry.OTelEndpoint != ""
	if !exportEnabled {
		logger.Info("otlp endpoint not set, telemetry export disabled")
	}
	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		Insecure:       cfg.Telemetry.OTelInsecure,
		EnableTracing:  exportEnabled && cfg.Telemetry.EnableTracing,
		EnableMetrics:  exportEnabled && cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
		MetricInterval: cfg.Telemetry.MetricInterval,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}

	ordersMetrics, err := ordersmetrics.NewMetrics(telemetry.Meter("orders"))
	if err != nil {
		return fmt.Errorf("create orders metrics: %w", err)
	}
	dbMetrics, err := database.NewMetrics(telemetry.Meter("database"))
	if err != nil {
		return fmt.Errorf("create database metrics: %w", err)
	}
	kafkaMetrics, err := kafka.NewMetrics(telemetry.Meter("kafka"))
	if err != nil {
		return fmt.Errorf("create kafka metrics: %w", err)
	}
	httpMetrics, err := httpadapter.NewMetrics(telemetry.Meter("http"))
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.close()

	var cache ports.OrderCache
	if cfg.Redis.Enabled() {
		rdb := ordersredis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer closeLogged(logger, "redis", rdb.Close)
		redisCache := ordersredis.NewCache(rdb, cfg.Redis.OrderTTL)
		store.readiness["redis"] = redisCache.Ping
		cache = redisCache
		logger.Info("order cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.OrderTTL)
	}

	topics := kafka.Topics{
		OrderCreated:       cfg.Kafka.OrderCreatedTopic,
		OrderStatusChanged: cfg.Kafka.StatusChangedTopic,
	}
	var events ports.EventBus = kafka.NewNoopEventBus()
	if len(cfg.Kafka.Brokers) > 0 {
		bus := kafka.NewEventBus(kafka.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.WriteTimeout), topics, cfg.Service.Name)
		defer closeLogged(logger, "kafka writer", bus.Close)
		events = bus
		logger.Info("event publishing enabled", "brokers", cfg.Kafka.Brokers)
	}

	service := ordersapp.NewService(ordersapp.Dependencies{
		Orders:      adapters.NewObservableRepository(store.orders, dbMetrics),
		UnitOfWork:  adapters.NewObservableUnitOfWork(store.uow, dbMetrics),
		Events:      adapters.NewObservableEventBus(events, kafkaMetrics, topics),
		Cache:       cache,
		Idempotency: store.idempotency,
		Logger:      logger,
		Metrics:     ordersMetrics,
	})

	router := httpadapter.NewRouter(httpadapter.NewHandler(service), httpadapter.RouterConfig{
		Logger:         logger,
		Metrics:        httpMetrics,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Readiness:      store.readiness,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go purgeIdempotencyKeys(ctx, logger, store.purger)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	var errs []error
	select {
	case err := <-serveErr:
		errs = append(errs, fmt.Errorf("http server: %w", err))
	default:
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	} else {
		logger.Info("http server stopped")
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	return errors.Join(errs...)
}

func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*storage, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		store := memory.NewStore()
		if cfg.Storage.SeedFile != "" {
			n, err := store.LoadProducts(cfg.Storage.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("seed products: %w", err)
			}
			logger.Info("seeded product catalog", "products", n, "file", cfg.Storage.SeedFile)
		}
		idem := idemmemory.NewStore(cfg.Storage.IdempotencyTTL)
		logger.Warn("using in-memory storage, data is lost on restart")
		return &storage{
			orders:      store,
			uow:         store,
			idempotency: idem,
			purger:      idem,
			readiness:   map[string]httpadapter.ReadinessCheck{},
			close:       func() {},
		}, nil

	default:
		pool, err := database.NewPool(ctx, database.PoolConfig{
			URL:             cfg.Database.URL,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("create database pool: %w", err)
		}

		if cfg.Database.AutoMigrate {
			logger.Info("running database migrations", "path", cfg.Database.MigrationsPath)
			version, err := database.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath)
			if err != nil {
				pool.Close()
				return nil, fmt.Errorf("run migrations: %w", err)
			}
			logger.Info("migrations completed", "version", version)
		}

		if err := database.ObservePool(telemetry.Meter("database"), pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("observe pool: %w", err)
		}

		idem := idempostgres.NewStore(pool, cfg.Storage.IdempotencyTTL)
		return &storage{
			orders:      orderspostgres.NewRepository(pool),
			uow:         orderspostgres.NewUnitOfWork(pool),
			idempotency: idem,
			purger:      idem,
			readiness: map[string]httpadapter.ReadinessCheck{
				"postgres": func(ctx context.Context) error { return database.CheckHealth(ctx, pool) },
			},
			close: pool.Close,
		}, nil
	}
}

func purgeIdempotencyKeys(ctx context.Context, logger *slog.Logger, p purger) {
	ticker := time.NewTicker(idempotencyPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.Purge(ctx)
			if err != nil {
				logger.Warn("purging idempotency keys failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired idempotency keys", "count", n)
			}
		}
	}
}

func closeLogged(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("close failed", "component", name, "error", err)
	}
}
