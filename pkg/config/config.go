package config

import (
	"errors"
	"fmt"
	"io/fs"
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

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	NATS     NATSConfig
	CORS     CORSConfig
	Log      LogConfig
	Cache    CacheConfig
	Events   EventsConfig
	Exports  ExportsConfig
}

// ServerConfig bounds HTTP timeouts. WriteTimeout stays zero so event
// streams are not cut.
type ServerConfig struct {
	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
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

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// NATSConfig is optional; an empty URL disables the NATS transport.
type NATSConfig struct {
	URL           string
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig tunes the Redis read-through cache.
type CacheConfig struct {
	Enabled    bool
	Namespace  string
	StudentTTL time.Duration
}

// EventsConfig drives record change fan-out.
type EventsConfig struct {
	Enabled     bool
	ChannelBase string
	Workers     int
	Retries     int
	RetryDelay  time.Duration
	Heartbeat   time.Duration
}

// ExportsConfig controls report rendering.
type ExportsConfig struct {
	CSVDelimiter string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{
		Env:       v.GetString("ENV"),
		Port:      v.GetInt("PORT"),
		APIPrefix: v.GetString("API_PREFIX"),
	}

	cfg.Server = ServerConfig{
		ReadHeaderTimeout: parseDuration(v.GetString("HTTP_READ_HEADER_TIMEOUT"), 10*time.Second),
		IdleTimeout:       parseDuration(v.GetString("HTTP_IDLE_TIMEOUT"), 2*time.Minute),
		ShutdownTimeout:   parseDuration(v.GetString("HTTP_SHUTDOWN_TIMEOUT"), 15*time.Second),
	}

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
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.NATS = NATSConfig{
		URL:           v.GetString("NATS_URL"),
		Name:          v.GetString("NATS_CLIENT_NAME"),
		MaxReconnects: v.GetInt("NATS_MAX_RECONNECTS"),
		ReconnectWait: parseDuration(v.GetString("NATS_RECONNECT_WAIT"), 2*time.Second),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("CACHE_ENABLED"),
		Namespace:  v.GetString("CACHE_NAMESPACE"),
		StudentTTL: parseDuration(v.GetString("CACHE_STUDENT_TTL"), 5*time.Minute),
	}

	cfg.Events = EventsConfig{
		Enabled:     v.GetBool("EVENTS_ENABLED"),
		ChannelBase: v.GetString("EVENTS_CHANNEL_BASE"),
		Workers:     v.GetInt("EVENTS_WORKERS"),
		Retries:     v.GetInt("EVENTS_RETRIES"),
		RetryDelay:  parseDuration(v.GetString("EVENTS_RETRY_DELAY"), 500*time.Millisecond),
		Heartbeat:   parseDuration(v.GetString("EVENTS_HEARTBEAT"), 25*time.Second),
	}

	cfg.Exports = ExportsConfig{CSVDelimiter: v.GetString("EXPORT_CSV_DELIMITER")}

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
	v.SetDefault("DB_NAME", "busca_ativa")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_CLIENT_NAME", "busca-ativa-api")
	v.SetDefault("NATS_MAX_RECONNECTS", 60)
	v.SetDefault("NATS_RECONNECT_WAIT", "2s")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("CACHE_NAMESPACE", "busca-ativa")
	v.SetDefault("CACHE_STUDENT_TTL", "5m")

	v.SetDefault("EVENTS_ENABLED", true)
	v.SetDefault("EVENTS_CHANNEL_BASE", "busca-ativa")
	v.SetDefault("EVENTS_WORKERS", 2)
	v.SetDefault("EVENTS_RETRIES", 3)
	v.SetDefault("EVENTS_RETRY_DELAY", "500ms")
	v.SetDefault("EVENTS_HEARTBEAT", "25s")

	v.SetDefault("EXPORT_CSV_DELIMITER", ";")
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
