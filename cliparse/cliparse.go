package cliparse

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Database types
const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

type Config struct {
	Port         int
	DatabaseURL  string
	DatabaseType string
	TokenSalt    string
	BaseURL      string

	// Auction timing
	ReminderLead    time.Duration
	AntiSnipeWindow time.Duration
	LongPollTimeout time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration

	LogLevel  string
	LogFormat string
}

// flag name -> viper key
var flagKeys = map[string]string{
	"port":              "port",
	"database-url":      "database.url",
	"database-type":     "database.type",
	"token-salt":        "token_salt",
	"base-url":          "base_url",
	"reminder-lead":     "reminder_lead",
	"anti-snipe":        "anti_snipe_window",
	"long-poll-timeout": "long_poll_timeout",
	"log-level":         "log.level",
	"log-format":        "log.format",
}

// NewFlagSet declares every configuration flag. The returned set can be
// parsed directly or attached to a cobra command.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("auctiond", pflag.ContinueOnError)

	fs.IntP("port", "p", 3318, "Server port")
	fs.StringP("database-url", "d", "", "Database URL")
	fs.StringP("database-type", "t", DatabaseSQLite, "Database type (sqlite or postgres)")
	fs.StringP("config", "c", "", "Config file (default ./auction.yaml if present)")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.String("token-salt", "", "Account token salt (prefer env)")

	fs.String("base-url", "http://localhost:3318", "Public base URL for auction links")
	fs.Duration("reminder-lead", 5*time.Minute, "How long before close watchers are reminded")
	fs.Duration("anti-snipe", 2*time.Minute, "Late bids extend the auction to now+window (0 disables)")
	fs.Duration("long-poll-timeout", 25*time.Second, "Maximum wait for GET /notifications/poll")
	fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	fs.String("log-format", "text", "Log format (text or json)")

	return fs
}

// ParseFlags parses args and resolves the configuration
func ParseFlags(args []string) (Config, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return Load(fs)
}

// Load resolves configuration from parsed flags, environment variables,
// an optional config file and defaults, in that order of precedence.
func Load(flags *pflag.FlagSet) (Config, error) {
	// A missing .env is fine; real env vars always win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	for name, key := range flagKeys {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var configPath string
	if f := flags.Lookup("config"); f != nil {
		configPath = f.Value.String()
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("auction")
	}
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional unless named explicitly
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg := Config{
		Port:            v.GetInt("port"),
		DatabaseURL:     v.GetString("database.url"),
		DatabaseType:    strings.ToLower(v.GetString("database.type")),
		TokenSalt:       v.GetString("token_salt"),
		BaseURL:         strings.TrimRight(v.GetString("base_url"), "/"),
		ReminderLead:    v.GetDuration("reminder_lead"),
		AntiSnipeWindow: v.GetDuration("anti_snipe_window"),
		LongPollTimeout: v.GetDuration("long_poll_timeout"),
		MinDuration:     v.GetDuration("min_duration"),
		MaxDuration:     v.GetDuration("max_duration"),
		LogLevel:        v.GetString("log.level"),
		LogFormat:       v.GetString("log.format"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3318)
	v.SetDefault("database.type", DatabaseSQLite)
	v.SetDefault("base_url", "http://localhost:3318")
	v.SetDefault("reminder_lead", 5*time.Minute)
	v.SetDefault("anti_snipe_window", 2*time.Minute)
	v.SetDefault("long_poll_timeout", 25*time.Second)
	v.SetDefault("min_duration", time.Minute)
	v.SetDefault("max_duration", 14*24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate reports the first invalid setting
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.DatabaseType != DatabasePostgres && c.DatabaseType != DatabaseSQLite {
		return fmt.Errorf("unknown database type %q (want sqlite or postgres)", c.DatabaseType)
	}

	// Secrets - MUST be provided
	if c.TokenSalt == "" {
		return errors.New("TOKEN_SALT required")
	}

	if c.ReminderLead <= 0 {
		return errors.New("reminder lead must be positive")
	}
	if c.AntiSnipeWindow < 0 {
		return errors.New("anti-snipe window cannot be negative")
	}
	if c.LongPollTimeout <= 0 {
		return errors.New("long-poll timeout must be positive")
	}
	if c.MinDuration <= 0 || c.MaxDuration <= 0 {
		return errors.New("auction durations must be positive")
	}
	if c.MinDuration > c.MaxDuration {
		return fmt.Errorf("min duration %s exceeds max duration %s", c.MinDuration, c.MaxDuration)
	}
	return nil
}
