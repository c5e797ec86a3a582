package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/skillcast/skillcast/internal/crypto"
)

// Драйверы хранилища пользователей
const (
	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

// Драйверы реестра refresh токенов
const (
	LedgerDriverSQL   = "sql"   // та же БД, что и пользователи
	LedgerDriverRedis = "redis" // ключи истекают сами
	LedgerDriverBolt  = "bolt"  // отдельный bbolt файл
)

// Config is the immutable server configuration loaded once at startup.
type Config struct {
	HTTPAddr            string        `env:"HTTP_ADDR"             envDefault:":5001"`
	AccessSecret        string        `env:"JWT_SECRET"`
	RefreshSecret       string        `env:"JWT_REFRESH_SECRET"`
	DBDriver            string        `env:"DB_DRIVER"             envDefault:"sqlite"`
	DBDSN               string        `env:"DB_DSN"                envDefault:"skillcast.db"`
	LedgerDriver        string        `env:"LEDGER_DRIVER"         envDefault:"sql"`
	RedisAddr           string        `env:"REDIS_ADDR"            envDefault:"localhost:6379"`
	RedisPassword       string        `env:"REDIS_PASSWORD"`
	BoltPath            string        `env:"BOLT_PATH"             envDefault:"ledger.db"`
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"`
	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL"      envDefault:"15m"`
	RefreshTokenTTL     time.Duration `env:"REFRESH_TOKEN_TTL"     envDefault:"168h"`
	LedgerSweepInterval time.Duration `env:"LEDGER_SWEEP_INTERVAL" envDefault:"1h"`
	AuthRateWindow      time.Duration `env:"AUTH_RATE_WINDOW"      envDefault:"1m"`
	ShutdownTimeout     time.Duration `env:"SHUTDOWN_TIMEOUT"      envDefault:"10s"`
	RedisDB             int           `env:"REDIS_DB"              envDefault:"0"`
	BcryptCost          int           `env:"BCRYPT_COST"           envDefault:"12"`
	AuthRateLimit       int           `env:"AUTH_RATE_LIMIT"       envDefault:"20"`
	TrustProxy          bool          `env:"TRUST_PROXY"           envDefault:"false"`
}

// Parse reads the configuration from the environment without validating it.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Load parses and fully validates the server configuration.
func Load() (Config, error) {
	cfg, err := Parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting the server needs. Signing secrets are
// required: there is no built-in fallback secret.
func (c Config) Validate() error {
	var errs []error

	if c.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RefreshSecret == "" {
		errs = append(errs, errors.New("JWT_REFRESH_SECRET is required"))
	}
	if c.AccessSecret != "" && c.AccessSecret == c.RefreshSecret {
		errs = append(errs, errors.New("JWT_SECRET and JWT_REFRESH_SECRET must differ"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must be positive"))
	}
	if c.RefreshTokenTTL <= c.AccessTokenTTL {
		errs = append(errs, errors.New("REFRESH_TOKEN_TTL must be longer than ACCESS_TOKEN_TTL"))
	}
	if c.BcryptCost < crypto.MinBcryptCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be at least %d", crypto.MinBcryptCost))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("HTTP_ADDR is required"))
	}
	if c.LedgerSweepInterval <= 0 {
		errs = append(errs, errors.New("LEDGER_SWEEP_INTERVAL must be positive"))
	}
	if c.AuthRateLimit <= 0 || c.AuthRateWindow <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_WINDOW must be positive"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if err := c.ValidateStorage(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateStorage checks only the database and ledger settings.
// Used by tools that do not mint tokens.
func (c Config) ValidateStorage() error {
	var errs []error

	switch c.DBDriver {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("DB_DSN is required"))
	}

	switch c.LedgerDriver {
	case LedgerDriverSQL:
	case LedgerDriverRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis ledger"))
		}
	case LedgerDriverBolt:
		if c.BoltPath == "" {
			errs = append(errs, errors.New("BOLT_PATH is required for the bolt ledger"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_DRIVER %q", c.LedgerDriver))
	}

	return errors.Join(errs...)
}

// SlogLevel returns the configured log level, info if it is unknown.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// LogValue implements slog.LogValuer. Secrets are never logged.
func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTPAddr),
		slog.String("db_driver", c.DBDriver),
		slog.String("ledger_driver", c.LedgerDriver),
		slog.Duration("access_token_ttl", c.AccessTokenTTL),
		slog.Duration("refresh_token_ttl", c.RefreshTokenTTL),
		slog.Int("bcrypt_cost", c.BcryptCost),
		slog.Duration("ledger_sweep_interval", c.LedgerSweepInterval),
		slog.String("log_level", c.LogLevel),
	)
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
	return level, nil
}
