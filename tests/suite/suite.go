//go:build integration

package suite

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goRedis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	redisContainer "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"

	busRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/bus/redis"
	infraPostgres "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/infra/postgres"
	repoPostgres "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/repository/postgres"
	storageRedis "github.com/Devaamsh99/Market-Order-Execution-Engine/internal/storage/redis"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/migrations"
	"github.com/Devaamsh99/Market-Order-Execution-Engine/pkg/logger"
)

const (
	dbUser     = "test_user"
	dbPassword = "test_password"
	dbName     = "orders_test_db"

	LongTimeout    = 2 * time.Minute
	StartupTimeout = 30 * time.Second

	ActiveOrderTTL = 5 * time.Minute
)

type Suite struct {
	Test    *testing.T
	Pool    *pgxpool.Pool
	Redis   *goRedis.Client
	Records *repoPostgres.OrderStore
	Store   *storageRedis.Store
	Bus     *busRedis.Bus
}

func New(test *testing.T) (context.Context, *Suite) {
	test.Helper()

	logger.SetNopLogger()

	ctx, cancel := context.WithTimeout(context.Background(), LongTimeout)
	test.Cleanup(cancel)

	pool := startPostgres(ctx, test)
	redisClient := startRedis(ctx, test)

	bus := busRedis.NewBus(redisClient)
	test.Cleanup(func() {
		_ = bus.Close()
	})

	return ctx, &Suite{
		Test:    test,
		Pool:    pool,
		Redis:   redisClient,
		Records: repoPostgres.NewOrderStore(pool),
		Store:   storageRedis.NewStore(redisClient),
		Bus:     bus,
	}
}

func startPostgres(ctx context.Context, test *testing.T) *pgxpool.Pool {
	test.Helper()

	container, err := pgContainer.Run(ctx,
		"postgres:17.0-alpine3.20",
		pgContainer.WithDatabase(dbName),
		pgContainer.WithUsername(dbUser),
		pgContainer.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(StartupTimeout),
		),
	)
	if err != nil {
		test.Fatalf("failed to start postgres container: %v", err)
	}
	test.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			test.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connection, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		test.Fatalf("failed to get connection string: %v", err)
	}

	pool, err := infraPostgres.SetupDB(ctx, connection, migrations.Migrations)
	if err != nil {
		test.Fatalf("failed to setup postgres: %v", err)
	}
	test.Cleanup(pool.Close)

	return pool
}

func startRedis(ctx context.Context, test *testing.T) *goRedis.Client {
	test.Helper()

	container, err := redisContainer.Run(ctx, "redis:7.4-alpine")
	if err != nil {
		test.Fatalf("failed to start redis container: %v", err)
	}
	test.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			test.Logf("failed to terminate redis container: %v", err)
		}
	})

	connection, err := container.ConnectionString(ctx)
	if err != nil {
		test.Fatalf("failed to get redis connection string: %v", err)
	}

	options, err := goRedis.ParseURL(connection)
	if err != nil {
		test.Fatalf("failed to parse redis url: %v", err)
	}

	client := goRedis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		test.Fatalf("failed to ping redis: %v", err)
	}
	test.Cleanup(func() {
		_ = client.Close()
	})

	return client
}
