package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redisClient "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	busRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/bus/redis"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/config"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/dispatch"
	infraPostgres "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/infra/postgres"
	infraRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/infra/redis"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/metrics"
	repoPostgres "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/repository/postgres"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/services/executor"
	storageRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/storage/redis"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/internal/venue"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/migrations"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/retry"
)

// Run поднимает worker-бинарь: consumer group задач исполнения плюс
// собственный listener метрик.
func Run(ctx context.Context, cfg *config.Config) {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return ctx
			},
			func() *config.Config {
				return cfg
			},
		),
		fx.Provide(
			providePostgres,
			provideRedis,
			provideExecutor,
			provideConsumer,
		),
		fx.Invoke(
			registerLogger,
			startMetricsServer,
			startConsumer,
		),
	)

	app.Run()
}

func registerLogger(lifeCycle fx.Lifecycle, cfg *config.Config) error {
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format == "json"); err != nil {
		return err
	}

	metrics.Register()

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = logger.Sync()
			return nil
		},
	})

	return nil
}

func providePostgres(ctx context.Context, lifeCycle fx.Lifecycle, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := infraPostgres.SetupDB(ctx, cfg.Postgres.URI, migrations.Migrations)
	if err != nil {
		return nil, fmt.Errorf("postgres.SetupDB: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func provideRedis(ctx context.Context, lifeCycle fx.Lifecycle, cfg *config.Config) (*redisClient.Client, error) {
	client, err := infraRedis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis.NewClient: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})

	return client, nil
}

func provideExecutor(
	lifeCycle fx.Lifecycle,
	pool *pgxpool.Pool,
	client *redisClient.Client,
	cfg *config.Config,
) *executor.Service {
	store := storageRedis.NewStore(client)
	bus := busRedis.NewBus(client)
	records := repoPostgres.NewOrderStore(pool)

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return bus.Close()
		},
	})

	router := venue.NewBreakerRouter(
		venue.NewRouter(venue.Config{
			QuoteLatency:   cfg.Engine.QuoteLatency,
			ExecLatencyMin: cfg.Engine.ExecLatencyMin,
			ExecLatencyMax: cfg.Engine.ExecLatencyMax,
		}),
		cfg.Engine.CircuitBreaker,
	)

	policy := retry.Policy{
		MaxAttempts: cfg.Engine.MaxAttempts,
		BaseDelay:   cfg.Engine.RetryBaseDelay,
		MaxDelay:    cfg.Engine.RetryMaxDelay,
	}

	return executor.NewService(store, bus, router, records, policy, cfg.Engine.ActiveOrderTTL)
}

func provideConsumer(
	lifeCycle fx.Lifecycle,
	service *executor.Service,
	cfg *config.Config,
) (*dispatch.Consumer, error) {
	group, err := dispatch.NewConsumerGroup(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup)
	if err != nil {
		return nil, fmt.Errorf("dispatch.NewConsumerGroup: %w", err)
	}

	consumer := dispatch.NewConsumer(
		group,
		cfg.Kafka.OrdersTopic,
		service,
		cfg.Engine.WorkerConcurrency,
		cfg.Engine.WorkerRatePerMinute,
	)

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return consumer.Close()
		},
	})

	return consumer, nil
}

func startMetricsServer(lifeCycle fx.Lifecycle, cfg *config.Config) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
		_, _ = writer.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:    cfg.Worker.MetricsAddress,
		Handler: mux,
	}

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error(ctx, "metrics server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return server.Shutdown(ctx)
		},
	})
}

func startConsumer(lifeCycle fx.Lifecycle, consumer *dispatch.Consumer, shutdowner fx.Shutdowner) {
	runCtx, cancel := context.WithCancel(context.Background())

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info(ctx, "Starting order execution consumer")
			go func() {
				if err := consumer.Run(runCtx); err != nil {
					logger.Error(runCtx, "consumer stopped with error", zap.Error(err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}
