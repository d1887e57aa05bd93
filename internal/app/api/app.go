package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	redisClient "github.com/redis/go-redis/v9"

	apiHTTP "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/api"
	busRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/bus/redis"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/config"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/dispatch"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/gateway"
	infraPostgres "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/infra/postgres"
	infraRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/infra/redis"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/metrics"
	repoPostgres "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/repository/postgres"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/services/submission"
	storageRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/storage/redis"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/migrations"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/closer"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

// App — api-бинарь: HTTP-приём заявок, WebSocket-стриминг жизненного
// цикла и публикация задач исполнения в Kafka.
type App struct {
	config *config.Config

	dbPool   *pgxpool.Pool
	redis    *redisClient.Client
	producer *dispatch.Producer
	server   *http.Server
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
	}

	if err := app.setupDeps(ctx); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) setupDeps(ctx context.Context) error {
	setups := []func(ctx context.Context) error{
		a.setupLogger,
		a.setupCloser,
		a.setupMetrics,
		a.setupDB,
		a.setupRedis,
		a.setupProducer,
		a.setupHTTPServer,
	}

	for _, init := range setups {
		if err := init(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (a *App) setupLogger(_ context.Context) error {
	return logger.Init(a.config.Log.Level, a.config.Log.Format == "json")
}

func (a *App) setupCloser(_ context.Context) error {
	closer.SetLogger(logger.Global())
	closer.Configure(syscall.SIGINT, syscall.SIGTERM)

	closer.AddNamed("zap logger sync", func(ctx context.Context) error {
		_ = logger.Sync()
		return nil
	})

	return nil
}

func (a *App) setupMetrics(_ context.Context) error {
	metrics.Register()
	return nil
}

func (a *App) setupDB(ctx context.Context) error {
	pool, err := infraPostgres.SetupDB(ctx, a.config.Postgres.URI, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("postgres.SetupDB: %w", err)
	}

	a.dbPool = pool

	closer.AddNamed("Postgres pool", func(ctx context.Context) error {
		a.dbPool.Close()
		return nil
	})

	return nil
}

func (a *App) setupRedis(ctx context.Context) error {
	client, err := infraRedis.NewClient(ctx, a.config.Redis)
	if err != nil {
		return fmt.Errorf("redis.NewClient: %w", err)
	}

	a.redis = client

	closer.AddNamed("Redis client", func(ctx context.Context) error {
		return a.redis.Close()
	})

	return nil
}

func (a *App) setupProducer(_ context.Context) error {
	producer, err := dispatch.ConnectProducer(a.config.Kafka.Brokers, a.config.Kafka.OrdersTopic)
	if err != nil {
		return fmt.Errorf("dispatch.ConnectProducer: %w", err)
	}

	a.producer = producer

	closer.AddNamed("Kafka producer", func(ctx context.Context) error {
		return a.producer.Close()
	})

	return nil
}

func (a *App) setupHTTPServer(_ context.Context) error {
	store := storageRedis.NewStore(a.redis)
	bus := busRedis.NewBus(a.redis)
	records := repoPostgres.NewOrderStore(a.dbPool)

	closer.AddNamed("Event bus", func(ctx context.Context) error {
		return bus.Close()
	})

	service := submission.NewService(records, store, bus, a.producer, a.config.Engine.ActiveOrderTTL)
	stream := gateway.NewHandler(store, bus)

	a.server = &http.Server{
		Addr:              a.config.API.Address,
		Handler:           apiHTTP.NewRouter(apiHTTP.NewHandler(service), stream),
		ReadHeaderTimeout: a.config.API.ReadHeaderTimeout,
	}

	closer.AddNamed("HTTP server", func(ctx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(ctx, a.config.API.ShutdownTimeout)
		defer cancel()

		return a.server.Shutdown(shutdownCtx)
	})

	return nil
}

func (a *App) Start(ctx context.Context) error {
	logger.Info(ctx, fmt.Sprintf("Starting HTTP API server on %s", a.config.API.Address))

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe: %w", err)
	}

	return nil
}
