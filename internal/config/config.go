package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	API      APIConfig
	Worker   WorkerConfig
	Log      LogConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Engine   EngineConfig
}

type APIConfig struct {
	Address           string        `env:"API_ADDRESS" env-default:":8080"`
	ReadHeaderTimeout time.Duration `env:"API_READ_HEADER_TIMEOUT" env-default:"10s"`
	ShutdownTimeout   time.Duration `env:"API_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

type WorkerConfig struct {
	MetricsAddress string `env:"WORKER_METRICS_ADDRESS" env-default:":9091"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

type PostgresConfig struct {
	URI string `env:"POSTGRES_URI" env-required:"true"`
}

type RedisConfig struct {
	Host        string        `env:"REDIS_HOST" env-default:"localhost"`
	Port        int           `env:"REDIS_PORT" env-default:"6379"`
	Password    string        `env:"REDIS_PASSWORD" env-default:""`
	DB          int           `env:"REDIS_DB" env-default:"0"`
	DialTimeout time.Duration `env:"REDIS_DIAL_TIMEOUT" env-default:"5s"`
}

func (r RedisConfig) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

type KafkaConfig struct {
	Brokers       []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	OrdersTopic   string   `env:"KAFKA_ORDERS_TOPIC" env-default:"orders.execute"`
	ConsumerGroup string   `env:"KAFKA_CONSUMER_GROUP" env-default:"order-workers"`
}

type EngineConfig struct {
	ActiveOrderTTL      time.Duration `env:"ENGINE_ACTIVE_ORDER_TTL" env-default:"30m"`
	MaxAttempts         int           `env:"ENGINE_MAX_ATTEMPTS" env-default:"3"`
	RetryBaseDelay      time.Duration `env:"ENGINE_RETRY_BASE_DELAY" env-default:"2s"`
	RetryMaxDelay       time.Duration `env:"ENGINE_RETRY_MAX_DELAY" env-default:"30s"`
	WorkerConcurrency   int64         `env:"ENGINE_WORKER_CONCURRENCY" env-default:"8"`
	WorkerRatePerMinute int           `env:"ENGINE_WORKER_RATE_PER_MINUTE" env-default:"120"`
	QuoteLatency        time.Duration `env:"ENGINE_QUOTE_LATENCY" env-default:"300ms"`
	ExecLatencyMin      time.Duration `env:"ENGINE_EXEC_LATENCY_MIN" env-default:"1s"`
	ExecLatencyMax      time.Duration `env:"ENGINE_EXEC_LATENCY_MAX" env-default:"3s"`
	CircuitBreaker      CircuitBreakerConfig
}

type CircuitBreakerConfig struct {
	MaxRequests uint32        `env:"CB_MAX_REQUESTS" env-default:"3"`
	Interval    time.Duration `env:"CB_INTERVAL" env-default:"10s"`
	Timeout     time.Duration `env:"CB_TIMEOUT" env-default:"5s"`
	MaxFailures uint32        `env:"CB_MAX_FAILURES" env-default:"5"`
}

// Load читает .env по указанному пути (если файл есть) и заполняет
// конфигурацию из переменных окружения.
func Load(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("godotenv.Load: %w", err)
		}
	}

	config := &Config{}
	if err := cleanenv.ReadEnv(config); err != nil {
		return nil, fmt.Errorf("cleanenv.ReadEnv: %w", err)
	}

	return config, nil
}
