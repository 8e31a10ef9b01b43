package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/crypto/bcrypt"
)

// Environments recognised by APP_ENV.
const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"
)

// Store drivers recognised by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// PlaceholderSecret is the fallback JWT secret. It is only accepted in development.
const PlaceholderSecret = "your-secret-key-change-this"

// Config holds the application configuration.
type Config struct {
	AppEnv     string
	ServerPort int

	JWTSecret     string
	TokenLifetime time.Duration
	JWTIssuer     string

	BcryptCost        int
	PasswordMinLength int

	StoreDriver   string
	DatabasePath  string // sqlite file
	DatabaseURL   string // postgres DSN
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins   []string
	LogLevel      string
	SeedTestUsers bool

	EventBufferSize    int
	EventRetention     time.Duration
	EventPruneSchedule string

	ShutdownTimeout time.Duration
}

// Load reads an optional env file and then builds the configuration from
// environment variables, falling back to defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	port, err := getEnvAsInt("PORT", 3000)
	if err != nil {
		return nil, err
	}
	lifetime, err := ParseLifetime(getEnv("JWT_EXPIRE", "7d"))
	if err != nil {
		return nil, fmt.Errorf("JWT_EXPIRE: %w", err)
	}
	cost, err := getEnvAsInt("BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	minLen, err := getEnvAsInt("PASSWORD_MIN_LENGTH", 8)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	bufSize, err := getEnvAsInt("EVENT_BUFFER_SIZE", 500)
	if err != nil {
		return nil, err
	}
	retention, err := getEnvAsDuration("EVENT_RETENTION", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	shutdown, err := getEnvAsDuration("SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	appEnv := strings.ToLower(getEnv("APP_ENV", EnvDevelopment))
	seed, err := getEnvAsBool("SEED_TEST_USERS", appEnv == EnvDevelopment)
	if err != nil {
		return nil, err
	}

	return &Config{
		AppEnv:             appEnv,
		ServerPort:         port,
		JWTSecret:          getEnv("JWT_SECRET", PlaceholderSecret),
		TokenLifetime:      lifetime,
		JWTIssuer:          getEnv("JWT_ISSUER", "wellness-auth"),
		BcryptCost:         cost,
		PasswordMinLength:  minLen,
		StoreDriver:        strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DatabasePath:       getEnv("DATABASE_PATH", "./wellness-auth.db"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            redisDB,
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "*")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		SeedTestUsers:      seed,
		EventBufferSize:    bufSize,
		EventRetention:     retention,
		EventPruneSchedule: getEnv("EVENT_PRUNE_SCHEDULE", "@every 10m"),
		ShutdownTimeout:    shutdown,
	}, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// UsesPlaceholderSecret reports whether the JWT secret is the built-in fallback.
func (c *Config) UsesPlaceholderSecret() bool {
	return c.JWTSecret == PlaceholderSecret
}

// Validate checks the configuration and fails fast on settings that would make
// the service insecure or unable to start.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvTest, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be one of %s, %s, %s; got %q", EnvDevelopment, EnvTest, EnvProduction, c.AppEnv)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.UsesPlaceholderSecret() && !c.IsDevelopment() {
		return fmt.Errorf("JWT_SECRET is the placeholder default; set a real secret for %s", c.AppEnv)
	}
	if c.TokenLifetime <= 0 {
		return errors.New("JWT_EXPIRE must be positive")
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.SeedTestUsers && !c.IsDevelopment() {
		return fmt.Errorf("SEED_TEST_USERS is only allowed in %s, not %s", EnvDevelopment, c.AppEnv)
	}
	if c.PasswordMinLength < 1 {
		return errors.New("PASSWORD_MIN_LENGTH must be at least 1")
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.ServerPort)
	}

	switch c.StoreDriver {
	case DriverMemory, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.EventBufferSize < 1 {
		return errors.New("EVENT_BUFFER_SIZE must be at least 1")
	}
	if _, err := cron.ParseStandard(c.EventPruneSchedule); err != nil {
		return fmt.Errorf("EVENT_PRUNE_SCHEDULE: %w", err)
	}
	return nil
}

const (
	day             = 24 * time.Hour
	maxLifetimeDays = int64(math.MaxInt64 / day)
)

// ParseLifetime accepts a Go duration ("36h") or a whole number of days ("7d").
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.ParseInt(days, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		if n > maxLifetimeDays {
			return 0, fmt.Errorf("day count %q exceeds %d", s, maxLifetimeDays)
		}
		return time.Duration(n) * day, nil
	}
	return time.ParseDuration(s)
}

// Helper to get an environment variable with a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
