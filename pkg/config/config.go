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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	TokenLedger   TokenLedgerConfig
	Settlement    SettlementConfig
	Notifications NotificationsConfig
	Statements    StatementsConfig
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
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// TokenLedgerConfig points at the external value-transfer service that holds
// the payment asset balances.
type TokenLedgerConfig struct {
	BaseURL        string
	Timeout        time.Duration
	CustodyAddress string
}

// SettlementConfig seeds protocol parameters on first boot.
type SettlementConfig struct {
	DefaultMaxSessions int
}

// NotificationsConfig controls the indexer-facing notification fan-out.
type NotificationsConfig struct {
	Channel    string
	Workers    int
	BufferSize int
}

// StatementsConfig gates the settlement statement export endpoints.
type StatementsConfig struct {
	Enabled   bool
	Dir       string
	LinkTTL   time.Duration
	Retention time.Duration
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
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.TokenLedger = TokenLedgerConfig{
		BaseURL:        v.GetString("TOKEN_LEDGER_URL"),
		Timeout:        parseDuration(v.GetString("TOKEN_LEDGER_TIMEOUT"), 5*time.Second),
		CustodyAddress: v.GetString("TOKEN_CUSTODY_ADDRESS"),
	}

	cfg.Settlement = SettlementConfig{
		DefaultMaxSessions: v.GetInt("DEFAULT_MAX_SESSIONS_PER_EVENT"),
	}

	cfg.Notifications = NotificationsConfig{
		Channel:    v.GetString("NOTIFICATIONS_CHANNEL"),
		Workers:    v.GetInt("NOTIFICATIONS_WORKERS"),
		BufferSize: v.GetInt("NOTIFICATIONS_BUFFER_SIZE"),
	}

	cfg.Statements = StatementsConfig{
		Enabled:   v.GetBool("ENABLE_STATEMENTS"),
		Dir:       v.GetString("STATEMENTS_DIR"),
		LinkTTL:   parseDuration(v.GetString("STATEMENT_LINK_TTL"), 24*time.Hour),
		Retention: parseDuration(v.GetString("STATEMENT_RETENTION"), 7*24*time.Hour),
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
	v.SetDefault("DB_NAME", "attendfi")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "attendfi")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TOKEN_LEDGER_URL", "http://localhost:9090")
	v.SetDefault("TOKEN_LEDGER_TIMEOUT", "5s")
	v.SetDefault("TOKEN_CUSTODY_ADDRESS", "attendfi-custody")

	v.SetDefault("DEFAULT_MAX_SESSIONS_PER_EVENT", 12)

	v.SetDefault("NOTIFICATIONS_CHANNEL", "attendfi:notifications")
	v.SetDefault("NOTIFICATIONS_WORKERS", 2)
	v.SetDefault("NOTIFICATIONS_BUFFER_SIZE", 256)

	v.SetDefault("ENABLE_STATEMENTS", true)
	v.SetDefault("STATEMENTS_DIR", "./statements")
	v.SetDefault("STATEMENT_LINK_TTL", "24h")
	v.SetDefault("STATEMENT_RETENTION", "168h")
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
