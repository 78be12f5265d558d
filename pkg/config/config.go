package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Slot fallback policies for section synthesis.
const (
	SlotFallbackAcceptConflict = "accept-conflict"
	SlotFallbackStrict         = "strict"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
	Batch    BatchConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig tunes the academic rules applied by the enrollment engine.
type EngineConfig struct {
	CreditCeiling      int
	SectionCapacity    int
	PassingGrade       float64
	MaxLevel           int
	SlotAttempts       int
	SlotFallbackPolicy string
	ReselectAttempts   int
}

// BatchConfig tunes the term activation/close batch runner.
type BatchConfig struct {
	Workers       int
	MaxTxRetries  int
	RetryBackoff  time.Duration
	TxTimeout     time.Duration
	ReportTTL     time.Duration
	AsyncQueueLen int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Engine = EngineConfig{
		CreditCeiling:      v.GetInt("ENGINE_CREDIT_CEILING"),
		SectionCapacity:    v.GetInt("ENGINE_SECTION_CAPACITY"),
		PassingGrade:       v.GetFloat64("ENGINE_PASSING_GRADE"),
		MaxLevel:           v.GetInt("ENGINE_MAX_LEVEL"),
		SlotAttempts:       v.GetInt("ENGINE_SLOT_ATTEMPTS"),
		SlotFallbackPolicy: v.GetString("ENGINE_SLOT_FALLBACK_POLICY"),
		ReselectAttempts:   v.GetInt("ENGINE_RESELECT_ATTEMPTS"),
	}
	if cfg.Engine.SlotFallbackPolicy != SlotFallbackStrict {
		cfg.Engine.SlotFallbackPolicy = SlotFallbackAcceptConflict
	}

	cfg.Batch = BatchConfig{
		Workers:       v.GetInt("ENGINE_WORKERS"),
		MaxTxRetries:  v.GetInt("ENGINE_MAX_TX_RETRIES"),
		RetryBackoff:  parseDuration(v.GetString("ENGINE_RETRY_BACKOFF"), 100*time.Millisecond),
		TxTimeout:     parseDuration(v.GetString("ENGINE_TX_TIMEOUT"), 5*time.Second),
		ReportTTL:     parseDuration(v.GetString("ENGINE_REPORT_TTL"), 24*time.Hour),
		AsyncQueueLen: v.GetInt("ENGINE_ASYNC_QUEUE_LEN"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment_engine")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENGINE_CREDIT_CEILING", 20)
	v.SetDefault("ENGINE_SECTION_CAPACITY", 30)
	v.SetDefault("ENGINE_PASSING_GRADE", 60)
	v.SetDefault("ENGINE_MAX_LEVEL", 8)
	v.SetDefault("ENGINE_SLOT_ATTEMPTS", 20)
	v.SetDefault("ENGINE_SLOT_FALLBACK_POLICY", SlotFallbackAcceptConflict)
	v.SetDefault("ENGINE_RESELECT_ATTEMPTS", 3)

	v.SetDefault("ENGINE_WORKERS", 8)
	v.SetDefault("ENGINE_MAX_TX_RETRIES", 3)
	v.SetDefault("ENGINE_RETRY_BACKOFF", "100ms")
	v.SetDefault("ENGINE_TX_TIMEOUT", "5s")
	v.SetDefault("ENGINE_REPORT_TTL", "24h")
	v.SetDefault("ENGINE_ASYNC_QUEUE_LEN", 16)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
