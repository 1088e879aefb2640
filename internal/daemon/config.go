// Package daemon manages the ritim daemon lifecycle and configuration.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // clock.timezone must resolve on hosts without zoneinfo

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"

	"github.com/ritim-app/ritim/internal/app/engagement"
	"github.com/ritim-app/ritim/internal/domain"
	"github.com/ritim-app/ritim/internal/infra/breaker"
	"github.com/ritim-app/ritim/internal/infra/retry"
	"github.com/ritim-app/ritim/internal/notify"
)

// EnvPrefix prefixes every environment override, e.g. RITIM_SERVER_PORT.
const EnvPrefix = "ritim"

// Config holds all daemon configuration.
type Config struct {
	Server  ServerConfig       `toml:"server"`
	Clock   ClockConfig        `toml:"clock"`
	Storage StorageConfig      `toml:"storage"`
	Persist PersistConfig      `toml:"persist"`
	Notify  NotifyConfig       `toml:"notify"`
	Logging LoggingConfig      `toml:"logging"`
	XP      engagement.XPRules `toml:"xp"`
}

// ServerConfig controls the HTTP API server.
type ServerConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Metrics        bool   `toml:"metrics"`
	HealthInterval string `toml:"health_interval" split_words:"true"`
}

// ClockConfig places the day boundary.
type ClockConfig struct {
	Timezone string `toml:"timezone"`
	Cutoff   string `toml:"cutoff"` // offset after local midnight, e.g. "2h"
}

// StorageConfig selects the document store.
type StorageConfig struct {
	Driver   string `toml:"driver"` // "sqlite" or "postgres"
	Dir      string `toml:"dir"`    // sqlite data directory
	DSN      string `toml:"dsn"`
	MaxConns int32  `toml:"max_conns" split_words:"true"`
	MinConns int32  `toml:"min_conns" split_words:"true"`
}

// PersistConfig controls retries of store writes.
type PersistConfig struct {
	MaxRetries int    `toml:"max_retries" split_words:"true"`
	BaseDelay  string `toml:"base_delay" split_words:"true"`
	MaxDelay   string `toml:"max_delay" split_words:"true"`

	// Failed commits in a row that open the store breaker, and how long it
	// stays open before probing.
	BreakerThreshold int    `toml:"breaker_threshold" split_words:"true"`
	BreakerReset     string `toml:"breaker_reset" split_words:"true"`
}

// NotifyConfig controls the notification inbox and its push channel.
type NotifyConfig struct {
	Enabled    bool                  `toml:"enabled"`
	MaxPerDay  int                   `toml:"max_per_day" split_words:"true"`
	QuietStart string                `toml:"quiet_start" split_words:"true"`
	QuietEnd   string                `toml:"quiet_end" split_words:"true"`
	Telegram   notify.TelegramConfig `toml:"telegram"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
	File   string `toml:"file"`   // empty logs to stderr
}

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := ritimHome()
	policy := domain.DefaultNotificationPolicy()
	backoff := retry.Default()
	guard := breaker.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           8787,
			Metrics:        true,
			HealthInterval: "60s",
		},
		Clock: ClockConfig{
			Timezone: "Europe/Istanbul",
			Cutoff:   "2h",
		},
		Storage: StorageConfig{
			Driver:   DriverSQLite,
			Dir:      homeDir,
			MaxConns: 10,
			MinConns: 1,
		},
		Persist: PersistConfig{
			MaxRetries: backoff.MaxRetries,
			BaseDelay:  backoff.BaseDelay.String(),
			MaxDelay:   backoff.MaxDelay.String(),

			BreakerThreshold: guard.Threshold,
			BreakerReset:     guard.ResetTimeout.String(),
		},
		Notify: NotifyConfig{
			Enabled:    true,
			MaxPerDay:  policy.MaxPerDay,
			QuietStart: policy.QuietStart,
			QuietEnd:   policy.QuietEnd,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		XP: engagement.DefaultXPRules(),
	}
}

// LoadConfig reads config from $RITIM_HOME/config.toml, falling back to
// defaults, then applies RITIM_* environment overrides.
func LoadConfig() (Config, error) {
	return LoadConfigFile(ConfigPath())
}

// LoadConfigFile is LoadConfig for an explicit path.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $RITIM_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if _, err := parseDuration(c.Server.HealthInterval); err != nil {
		errs = append(errs, fmt.Errorf("server.health_interval: %w", err))
	}
	if _, err := time.LoadLocation(c.Clock.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("clock.timezone: %w", err))
	}
	if d, err := parseDuration(c.Clock.Cutoff); err != nil {
		errs = append(errs, fmt.Errorf("clock.cutoff: %w", err))
	} else if d < 0 || d >= 24*time.Hour {
		errs = append(errs, fmt.Errorf("clock.cutoff %s must be within [0h, 24h)", d))
	}

	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("storage.dir is required for sqlite"))
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q: want %q or %q", c.Storage.Driver, DriverSQLite, DriverPostgres))
	}

	if c.Persist.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("persist.max_retries %d is negative", c.Persist.MaxRetries))
	}
	if _, err := parseDuration(c.Persist.BaseDelay); err != nil {
		errs = append(errs, fmt.Errorf("persist.base_delay: %w", err))
	}
	if _, err := parseDuration(c.Persist.MaxDelay); err != nil {
		errs = append(errs, fmt.Errorf("persist.max_delay: %w", err))
	}
	if c.Persist.BreakerThreshold < 0 {
		errs = append(errs, fmt.Errorf("persist.breaker_threshold %d is negative", c.Persist.BreakerThreshold))
	}
	if _, err := parseDuration(c.Persist.BreakerReset); err != nil {
		errs = append(errs, fmt.Errorf("persist.breaker_reset: %w", err))
	}

	if c.Notify.MaxPerDay < 0 {
		errs = append(errs, fmt.Errorf("notify.max_per_day %d is negative", c.Notify.MaxPerDay))
	}
	for name, v := range map[string]string{"quiet_start": c.Notify.QuietStart, "quiet_end": c.Notify.QuietEnd} {
		if _, err := time.Parse("15:04", v); err != nil {
			errs = append(errs, fmt.Errorf("notify.%s %q: want HH:MM", name, v))
		}
	}
	if _, err := log.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}
	if c.XP.Task < 0 || c.XP.Habit < 0 || c.XP.Pomodoro < 0 {
		errs = append(errs, errors.New("xp rules must not be negative"))
	}
	return errors.Join(errs...)
}

// ─── Derived settings ───────────────────────────────────────────────────────
// Only call these on a validated Config.

// EngineClock returns the day-cutoff clock.
func (c Config) EngineClock() engagement.Clock {
	loc, err := time.LoadLocation(c.Clock.Timezone)
	if err != nil {
		loc = time.Local
	}
	cutoff, _ := parseDuration(c.Clock.Cutoff)
	return engagement.Clock{Location: loc, Cutoff: cutoff}
}

// RetryConfig returns the persist backoff.
func (c Config) RetryConfig() retry.Config {
	base, _ := parseDuration(c.Persist.BaseDelay)
	maxDelay, _ := parseDuration(c.Persist.MaxDelay)
	return retry.Config{MaxRetries: c.Persist.MaxRetries, BaseDelay: base, MaxDelay: maxDelay}
}

// BreakerConfig returns the store breaker settings. Zero values fall back
// to the breaker defaults.
func (c Config) BreakerConfig() breaker.Config {
	reset, _ := parseDuration(c.Persist.BreakerReset)
	return breaker.Config{Threshold: c.Persist.BreakerThreshold, ResetTimeout: reset}
}

// NotificationPolicy returns the inbox policy.
func (c Config) NotificationPolicy() domain.NotificationPolicy {
	return domain.NotificationPolicy{
		MaxPerDay:  c.Notify.MaxPerDay,
		QuietStart: c.Notify.QuietStart,
		QuietEnd:   c.Notify.QuietEnd,
	}
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// parseDuration parses a duration string; empty means zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// ritimHome returns the ritim data directory.
func ritimHome() string {
	if env := os.Getenv("RITIM_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ritim")
}

// Home is exported for use by other packages.
func Home() string {
	return ritimHome()
}

// ConfigPath returns the path of the config file.
func ConfigPath() string {
	return filepath.Join(ritimHome(), "config.toml")
}
