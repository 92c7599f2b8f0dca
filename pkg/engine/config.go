package engine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"
)

// Mode selects the store kind.
type Mode string

const (
	// ModeDatabase keeps every correction (append-only history).
	ModeDatabase Mode = "database"
	// ModeResolver keeps the latest correction per scale pair.
	ModeResolver Mode = "resolver"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeDatabase, ModeResolver:
		return m, nil
	default:
		return "", errors.Newf("unknown store mode %q (want %q or %q)", s, ModeDatabase, ModeResolver)
	}
}

// Duration is a time.Duration written as "1h30m" in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config holds all tunable parameters for the timeshift engine.
// Values can be set via:
//  1. Code (programmatic configuration)
//  2. Environment variables (TIMESHIFT_*)
//  3. Config file (TOML)
//
// Precedence: Code > Env Vars > Config File > Defaults
type Config struct {
	// Stores
	Mode           Mode     `toml:"mode" env:"TIMESHIFT_MODE" default:"database"`
	StrictValidity bool     `toml:"strict_validity" env:"TIMESHIFT_STRICT" default:"false"`
	Stores         []string `toml:"stores" env:"TIMESHIFT_STORES" default:"default"` // Created at startup
	DefaultStore   string   `toml:"default_store" env:"TIMESHIFT_DEFAULT_STORE" default:"default"`

	// Eviction: OutdateStale drops corrections older than one week
	WeeklyEviction bool `toml:"weekly_eviction" env:"TIMESHIFT_WEEKLY_EVICTION" default:"true"`

	// Input
	CorrectionFiles []string `toml:"correction_files" env:"TIMESHIFT_CORRECTION_FILES"` // Comma-separated in env
	SkipInvalid     bool     `toml:"skip_invalid" env:"TIMESHIFT_SKIP_INVALID" default:"false"`

	// Clock
	UseNTP          bool     `toml:"use_ntp" env:"TIMESHIFT_USE_NTP" default:"false"`
	NTPServer       string   `toml:"ntp_server" env:"TIMESHIFT_NTP_SERVER" default:"pool.ntp.org"`
	NTPSyncInterval Duration `toml:"ntp_sync_interval" env:"TIMESHIFT_NTP_SYNC_INTERVAL" default:"15m"`

	// Logging
	LogLevel string `toml:"log_level" env:"TIMESHIFT_LOG_LEVEL" default:"info"`
}

// DefaultConfig returns a configuration with sensible defaults: one lenient
// database named "default", system clock, weekly eviction allowed.
func DefaultConfig() Config {
	return Config{
		Mode:           ModeDatabase,
		StrictValidity: false,
		Stores:         []string{"default"},
		DefaultStore:   "default",

		WeeklyEviction: true,

		UseNTP:          false,
		NTPServer:       "pool.ntp.org",
		NTPSyncInterval: Duration(15 * time.Minute),

		LogLevel: "info",
	}
}

// LoadFile reads a TOML config file on top of the defaults. Keys missing
// from the file keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Load builds the configuration from defaults, the optional TOML file at
// path and TIMESHIFT_* environment variables, in increasing precedence.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

// LoadFromEnv returns the defaults overridden by any TIMESHIFT_* env vars.
func LoadFromEnv() (Config, error) {
	return Load("")
}

// ApplyEnv overrides fields from TIMESHIFT_* environment variables.
// Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	// Stores
	if v := os.Getenv("TIMESHIFT_MODE"); v != "" {
		if m, err := ParseMode(v); err == nil {
			c.Mode = m
		}
	}
	if v := os.Getenv("TIMESHIFT_STRICT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.StrictValidity = b
		}
	}
	if v := os.Getenv("TIMESHIFT_STORES"); v != "" {
		c.Stores = splitList(v)
	}
	if v := os.Getenv("TIMESHIFT_DEFAULT_STORE"); v != "" {
		c.DefaultStore = v
	}

	// Eviction
	if v := os.Getenv("TIMESHIFT_WEEKLY_EVICTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WeeklyEviction = b
		}
	}

	// Input
	if v := os.Getenv("TIMESHIFT_CORRECTION_FILES"); v != "" {
		c.CorrectionFiles = splitList(v)
	}
	if v := os.Getenv("TIMESHIFT_SKIP_INVALID"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SkipInvalid = b
		}
	}

	// Clock
	if v := os.Getenv("TIMESHIFT_USE_NTP"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.UseNTP = b
		}
	}
	if v := os.Getenv("TIMESHIFT_NTP_SERVER"); v != "" {
		c.NTPServer = v
	}
	if v := os.Getenv("TIMESHIFT_NTP_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.NTPSyncInterval = Duration(d)
		}
	}

	// Logging
	if v := os.Getenv("TIMESHIFT_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate checks that configuration values are sensible.
func (c *Config) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}

	if len(c.Stores) == 0 {
		return errors.New("at least one store must be configured")
	}
	seen := make(map[string]bool, len(c.Stores))
	for _, name := range c.Stores {
		if name == "" {
			return errors.New("store names must not be empty")
		}
		if seen[name] {
			return errors.Newf("store %q listed twice", name)
		}
		seen[name] = true
	}
	if !seen[c.DefaultStore] {
		return errors.WithHintf(
			errors.Newf("default store %q is not in stores %v", c.DefaultStore, c.Stores),
			"add %q to stores or change default_store", c.DefaultStore)
	}

	if c.UseNTP {
		if c.NTPServer == "" {
			return errors.New("ntp server must be set when use_ntp is enabled")
		}
		if c.NTPSyncInterval <= 0 {
			return errors.Newf("ntp sync interval must be > 0, got %s", time.Duration(c.NTPSyncInterval))
		}
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(err, "log level")
	}

	return nil
}

// Level returns the configured zerolog level, or info if unparseable.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// String returns a human-readable summary of the configuration.
func (c *Config) String() string {
	clockDesc := "system"
	if c.UseNTP {
		clockDesc = fmt.Sprintf("ntp %s every %s", c.NTPServer, time.Duration(c.NTPSyncInterval))
	}
	return fmt.Sprintf(`Timeshift Configuration:
  Stores:
    Mode:     %s
    Strict:   %t
    Names:    %s
    Default:  %s

  Eviction:
    Weekly:   %t

  Input:
    Files:        %s
    Skip Invalid: %t

  Clock:      %s
  Log Level:  %s
`,
		c.Mode,
		c.StrictValidity,
		strings.Join(c.Stores, ", "),
		c.DefaultStore,
		c.WeeklyEviction,
		formatList(c.CorrectionFiles),
		c.SkipInvalid,
		clockDesc,
		c.LogLevel,
	)
}

func formatList(v []string) string {
	if len(v) == 0 {
		return "none"
	}
	return strings.Join(v, ", ")
}
