package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers
const (
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Live relay modes
const (
	RelayLocal = "local"
	RelayRedis = "redis"
)

type Config struct {
	ServerPort string

	StoreDriver string

	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	MongoURI string
	MongoDB  string

	RedisURL string

	JWTSecret         string
	AccessTokenMaxAge int
	CookieSecure      bool

	LiveRelay        string
	LivePingInterval time.Duration
	LivePingTimeout  time.Duration
	LiveSendBuffer   int

	WorkerCount int

	RateLimitRPS   float64
	RateLimitBurst int

	CORSOrigins []string

	LogLevel  string
	LogPretty bool
}

// LoadConfig reads .env (if present) and the process environment.
// envLoaded is false when no .env file was found; callers log it once the
// logger exists.
func LoadConfig() (cfg *Config, envLoaded bool, err error) {
	envLoaded = godotenv.Load() == nil

	cfg = &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      os.Getenv("DB_USER"),
		DBPassword:  os.Getenv("DB_PASSWORD"),
		DBName:      getEnv("DB_NAME", "socialnet"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "socialnet"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret:         os.Getenv("JWT_SECRET"),
		AccessTokenMaxAge: getInt("ACCESS_TOKEN_MAX_AGE", 86400),
		CookieSecure:      getEnv("COOKIE_SECURE", "false") == "true",

		LiveRelay:        strings.ToLower(getEnv("LIVE_RELAY", RelayLocal)),
		LivePingInterval: getDuration("LIVE_PING_INTERVAL", 3*time.Second),
		LivePingTimeout:  getDuration("LIVE_PING_TIMEOUT", 7*time.Second),
		LiveSendBuffer:   getInt("LIVE_SEND_BUFFER", 32),

		WorkerCount: getCount("WORKER_COUNT", 2),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 20),

		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "*")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnv("LOG_PRETTY", "false") == "true",
	}

	if err := cfg.Validate(); err != nil {
		return nil, envLoaded, err
	}
	return cfg, envLoaded, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StorePostgres, StoreMongo:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	switch c.LiveRelay {
	case RelayLocal, RelayRedis:
	default:
		return fmt.Errorf("unsupported LIVE_RELAY %q", c.LiveRelay)
	}
	return nil
}

// PostgresDSN returns DATABASE_URL or a DSN assembled from the DB_* variables.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// getCount is getInt that also accepts zero.
func getCount(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(key), 64)
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// getDuration accepts Go durations ("3s") or plain milliseconds ("3000").
func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if ms, err := strconv.Atoi(raw); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
