package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	OTLPEndpoint string
	TrustedHosts []string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	// SnowflakeNodeID must be unique per running replica.
	SnowflakeNodeID int

	Auth      AuthConfig
	Catalog   CatalogConfig
	Gateway   GatewayConfig
	RedisCfg  RedisConfig
	Sweeper   SweeperConfig
	Telemetry TelemetryConfig
}

type TelemetryConfig struct {
	LogLevel      string
	LogFormat     string
	OtelEnabled   bool
	OtelProtocol  string
	SamplingRatio float64
}

type AuthConfig struct {
	JWTSecret         string
	JWTAlgorithm      string
	BasicAuthUsername string
	BasicAuthPassword string
}

type CatalogConfig struct {
	BaseURL    string
	TimeoutSec int
}

type GatewayConfig struct {
	BaseURL                  string
	TimeoutSec               int
	ShopID                   string
	SecretKey                string
	SignatureSecret          string
	SignatureExpirationHours int
	ReturnURLPattern         string
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	LockTTLSec    int
	PurchaseRate  float64
	PurchaseBurst int
}

// SweeperConfig drives the background re-check of payments whose
// notification never arrived.
type SweeperConfig struct {
	Enabled       bool
	IntervalSec   int
	BatchSize     int
	StaleAfterSec int
	MaxAgeHours   int
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "filmbilling"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		TrustedHosts: parseList(getenv("TRUSTED_HOSTS", "")),

		SnowflakeNodeID: getenvInt("SNOWFLAKE_NODE_ID", 1),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "billing"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME_SEC", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME_SEC", 60),

		Auth: AuthConfig{
			JWTSecret:         strings.TrimSpace(getenv("SECURITY_JWT_AUTH_SECRET_KEY", "")),
			JWTAlgorithm:      strings.ToUpper(getenv("SECURITY_JWT_AUTH_ALGORITHM", "HS256")),
			BasicAuthUsername: getenv("SECURITY_BASIC_AUTH_USERNAME", ""),
			BasicAuthPassword: getenv("SECURITY_BASIC_AUTH_PASSWD", ""),
		},
		Catalog: CatalogConfig{
			BaseURL:    strings.TrimRight(getenv("ASYNC_API_INTEGRATION_BASE_URL", "http://localhost:8000"), "/"),
			TimeoutSec: getenvInt("ASYNC_API_INTEGRATION_TIMEOUT_SEC", 10),
		},
		Gateway: GatewayConfig{
			BaseURL:                  strings.TrimRight(getenv("YOOKASSA_INTEGRATION_BASE_URL", "https://api.yookassa.ru"), "/"),
			TimeoutSec:               getenvInt("YOOKASSA_INTEGRATION_TIMEOUT_SEC", 10),
			ShopID:                   getenv("YOOKASSA_INTEGRATION_AUTH_USER", ""),
			SecretKey:                getenv("YOOKASSA_INTEGRATION_AUTH_PASSWORD", ""),
			SignatureSecret:          getenv("YOOKASSA_INTEGRATION_SECRET_KEY", ""),
			SignatureExpirationHours: getenvInt("YOOKASSA_INTEGRATION_SIGNATURE_EXPIRATION_HOURS", 1),
			ReturnURLPattern: getenv(
				"YOOKASSA_INTEGRATION_RETURN_URL_PATTERN",
				"http://localhost:8080/api/public/v2/transactions/{transaction_id}?signature={signature}&date={date}",
			),
		},
		RedisCfg: RedisConfig{
			Addr:          strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password:      getenv("REDIS_PASSWORD", ""),
			DB:            getenvInt("REDIS_DB", 0),
			LockTTLSec:    getenvInt("REDIS_LOCK_TTL_SEC", 30),
			PurchaseRate:  getenvFloat("PURCHASE_RATE", 1),
			PurchaseBurst: getenvInt("PURCHASE_BURST", 5),
		},
		Sweeper: SweeperConfig{
			Enabled:       getenvBool("PAYMENT_SWEEPER_ENABLED", true),
			IntervalSec:   getenvInt("PAYMENT_SWEEPER_INTERVAL_SEC", 60),
			BatchSize:     getenvInt("PAYMENT_SWEEPER_BATCH_SIZE", 50),
			StaleAfterSec: getenvInt("PAYMENT_SWEEPER_STALE_AFTER_SEC", 600),
			MaxAgeHours:   getenvInt("PAYMENT_SWEEPER_MAX_AGE_HOURS", 72),
		},
		Telemetry: TelemetryConfig{
			LogLevel:      strings.ToLower(getenv("LOG_LEVEL", "info")),
			LogFormat:     strings.ToLower(getenv("LOG_FORMAT", "json")),
			OtelEnabled:   getenvBool("OTEL_ENABLED", true),
			OtelProtocol:  strings.ToLower(getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))),
			SamplingRatio: getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
