package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures runtime configuration for the API service.
type Config struct {
	HTTP      HTTPConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Telemetry TelemetryConfig
	Service   ServiceConfig
}

type HTTPConfig struct {
	Port           int
	ShutdownGrace  int
	RequestTimeout time.Duration
}

// StorageDriver selects the order and inventory backend.
type StorageDriver string

const (
	StoragePostgres StorageDriver = "postgres"
	StorageMemory   StorageDriver = "memory"
)

type StorageConfig struct {
	Driver StorageDriver
	// SeedFile is a JSON product list loaded into the memory store at startup.
	SeedFile       string
	IdempotencyTTL time.Duration
}

type DatabaseConfig struct {
	URL             string
	AutoMigrate     bool
	MigrationsPath  string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	OrderTTL time.Duration
}

// Enabled reports whether the order cache should be wired.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type KafkaConfig struct {
	Brokers            []string
	OrderCreatedTopic  string
	StatusChangedTopic string
	WriteTimeout       time.Duration
}

type TelemetryConfig struct {
	LogLevel       string
	OTelEndpoint   string
	OTelInsecure   bool
	EnableTracing  bool
	EnableMetrics  bool
	SampleRate     float64
	MetricInterval time.Duration
}

type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
}

const (
	defaultHTTPPort        = 8080
	defaultShutdownGrace   = 15
	defaultRequestTimeout  = 10 * time.Second
	defaultMigrationsPath  = "migrations"
	defaultAutoMigrate     = true
	defaultMaxConns        = 25
	defaultMinConns        = 5
	defaultMaxConnLifetime = 5 * time.Minute
	defaultOrderCacheTTL   = 5 * time.Minute
	defaultIdempotencyTTL  = 24 * time.Hour
	defaultKafkaTimeout    = 5 * time.Second
	defaultServiceName     = "garment-orders-api"
	defaultServiceVersion  = "0.1.0"
	defaultEnvironment     = "development"
	defaultLogLevel        = "info"
	defaultOTelSampleRate  = 1.0
)

// Load reads configuration from environment variables, applying defaults when
// needed. Variables from a .env file in the working directory (or ENV_FILE)
// are loaded first without overriding the real environment.
func Load() (*Config, error) {
	if err := loadEnvFile(getEnvOrDefault("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	httpCfg, err := loadHTTPConfig()
	if err != nil {
		return nil, fmt.Errorf("loading HTTP config: %w", err)
	}

	storageCfg, err := loadStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("loading storage config: %w", err)
	}

	dbCfg, err := loadDatabaseConfig()
	if err != nil {
		return nil, fmt.Errorf("loading database config: %w", err)
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		return nil, fmt.Errorf("loading redis config: %w", err)
	}

	kafkaCfg, err := loadKafkaConfig()
	if err != nil {
		return nil, fmt.Errorf("loading kafka config: %w", err)
	}

	telCfg, err := loadTelemetryConfig()
	if err != nil {
		return nil, fmt.Errorf("loading telemetry config: %w", err)
	}

	return &Config{
		HTTP:      httpCfg,
		Storage:   storageCfg,
		Database:  dbCfg,
		Redis:     redisCfg,
		Kafka:     kafkaCfg,
		Telemetry: telCfg,
		Service:   loadServiceConfig(),
	}, nil
}

func loadEnvFile(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

func loadHTTPConfig() (HTTPConfig, error) {
	port, err := getIntEnv("API_HTTP_PORT", defaultHTTPPort)
	if err != nil {
		return HTTPConfig{}, err
	}

	shutdownGrace, err := getIntEnv("API_SHUTDOWN_GRACE_SECONDS", defaultShutdownGrace)
	if err != nil {
		return HTTPConfig{}, err
	}

	requestTimeout, err := getDurationEnv("API_REQUEST_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		return HTTPConfig{}, err
	}

	return HTTPConfig{
		Port:           port,
		ShutdownGrace:  shutdownGrace,
		RequestTimeout: requestTimeout,
	}, nil
}

func loadStorageConfig() (StorageConfig, error) {
	driver := StorageDriver(strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", string(StoragePostgres))))
	switch driver {
	case StoragePostgres, StorageMemory:
	default:
		return StorageConfig{}, fmt.Errorf("invalid STORAGE_DRIVER %q: want postgres or memory", driver)
	}

	ttl, err := getDurationEnv("IDEMPOTENCY_TTL", defaultIdempotencyTTL)
	if err != nil {
		return StorageConfig{}, err
	}

	return StorageConfig{
		Driver:         driver,
		SeedFile:       os.Getenv("SEED_PRODUCTS_FILE"),
		IdempotencyTTL: ttl,
	}, nil
}

func loadDatabaseConfig() (DatabaseConfig, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL()
	}

	maxConns, err := getIntEnv("DB_MAX_CONNS", defaultMaxConns)
	if err != nil {
		return DatabaseConfig{}, err
	}
	minConns, err := getIntEnv("DB_MIN_CONNS", defaultMinConns)
	if err != nil {
		return DatabaseConfig{}, err
	}
	maxLifetime, err := getDurationEnv("DB_MAX_CONN_LIFETIME", defaultMaxConnLifetime)
	if err != nil {
		return DatabaseConfig{}, err
	}

	return DatabaseConfig{
		URL:             databaseURL,
		AutoMigrate:     getBoolEnv("AUTO_MIGRATE", defaultAutoMigrate),
		MigrationsPath:  getEnvOrDefault("MIGRATIONS_PATH", defaultMigrationsPath),
		MaxConns:        int32(maxConns),
		MinConns:        int32(minConns),
		MaxConnLifetime: maxLifetime,
	}, nil
}

func loadRedisConfig() (RedisConfig, error) {
	db, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}
	ttl, err := getDurationEnv("REDIS_ORDER_TTL", defaultOrderCacheTTL)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Addr:     os.Getenv("REDIS_ADDR"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		OrderTTL: ttl,
	}, nil
}

func loadKafkaConfig() (KafkaConfig, error) {
	var brokers []string
	if value, ok := os.LookupEnv("KAFKA_BROKERS"); ok && value != "" {
		for _, b := range strings.Split(value, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	timeout, err := getDurationEnv("KAFKA_WRITE_TIMEOUT", defaultKafkaTimeout)
	if err != nil {
		return KafkaConfig{}, err
	}

	return KafkaConfig{
		Brokers:            brokers,
		OrderCreatedTopic:  getEnvOrDefault("KAFKA_TOPIC_ORDER_CREATED", "order.created"),
		StatusChangedTopic: getEnvOrDefault("KAFKA_TOPIC_ORDER_STATUS_CHANGED", "order.status_changed"),
		WriteTimeout:       timeout,
	}, nil
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	sampleRate := defaultOTelSampleRate
	if value, ok := os.LookupEnv("OTEL_SAMPLE_RATE"); ok {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return TelemetryConfig{}, fmt.Errorf("invalid OTEL_SAMPLE_RATE: %w", err)
		}
		sampleRate = parsed
	}

	interval, err := getDurationEnv("OTEL_METRIC_EXPORT_INTERVAL", 0)
	if err != nil {
		return TelemetryConfig{}, err
	}

	return TelemetryConfig{
		LogLevel:       getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		OTelEndpoint:   getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTelInsecure:   getBoolEnv("OTEL_EXPORTER_OTLP_INSECURE", true),
		EnableTracing:  getBoolEnv("OTEL_ENABLE_TRACING", true),
		EnableMetrics:  getBoolEnv("OTEL_ENABLE_METRICS", true),
		SampleRate:     sampleRate,
		MetricInterval: interval,
	}, nil
}

func loadServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:        getEnvOrDefault("API_SERVICE_NAME", defaultServiceName),
		Version:     getEnvOrDefault("SERVICE_VERSION", defaultServiceVersion),
		Environment: getEnvOrDefault("ENVIRONMENT", defaultEnvironment),
	}
}

func buildDatabaseURL() string {
	host := getEnvOrDefault("DB_HOST", "localhost")
	port := getEnvOrDefault("DB_PORT", "5432")
	user := getEnvOrDefault("DB_USER", "postgres")
	password := getEnvOrDefault("DB_PASSWORD", "postgres")
	dbName := getEnvOrDefault("DB_NAME", "garment_orders")
	sslMode := getEnvOrDefault("DB_SSLMODE", "disable")

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, dbName, sslMode)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		return value == "true"
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
