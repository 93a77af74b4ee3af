package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/olegiv/logtriage-go/internal/report"
	"github.com/olegiv/logtriage-go/internal/triage"
)

// CLIOptions holds command-line overrides. Nil pointers and empty strings
// mean "not given on the command line".
type CLIOptions struct {
	OutputFormat string   // --output
	LogLevel     string   // --log-level
	MaxLines     *int     // --max-lines
	BinMinutes   *int     // --bin-minutes
	Threshold    *float64 // --threshold
	TopK         *int     // --top-k
	Examples     *int     // --examples
	Workers      *int     // --workers
	Archive      *bool    // --archive
	Notify       *bool    // --notify
	DatabasePath string   // --db
}

// Config holds all application configuration
type Config struct {
	// Analysis parameters
	BinMinutes       int
	ClusterThreshold float64
	ClusterTopK      int
	ClusterExamples  int

	// Input limits
	MaxLines     int
	MaxLogSizeMB int // 0 disables the size check

	// Output
	OutputFormat string
	Workers      int

	// Application
	LogLevel string
	LogDir   string

	// Run archive
	EnableDatabase       bool
	DatabasePath         string
	HistoryRetentionDays int // 0 keeps runs forever

	// Telegram
	EnableTelegram          bool
	TelegramBotToken        string
	TelegramChannelID       int64
	TelegramAlertsChannelID int64 // Optional

	// Proxy
	HTTPSProxy string
}

var (
	telegramTokenRegex = regexp.MustCompile(`^\d+:[A-Za-z0-9_-]+$`)

	validLogLevels = map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
)

// Load loads configuration from the environment and an optional .env file.
// For CLI overrides, use LoadWithCLI instead
func Load() (*Config, error) {
	return LoadWithCLI(nil)
}

// LoadWithCLI loads configuration with CLI argument overrides
// Priority: CLI args > OS environment variables > .env file > defaults
func LoadWithCLI(cli *CLIOptions) (*Config, error) {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// godotenv only fills variables that are not already set
	_ = godotenv.Load()

	setDefaults()

	config := &Config{
		BinMinutes:       viper.GetInt("BIN_MINUTES"),
		ClusterThreshold: viper.GetFloat64("CLUSTER_THRESHOLD"),
		ClusterTopK:      viper.GetInt("CLUSTER_TOP_K"),
		ClusterExamples:  viper.GetInt("CLUSTER_EXAMPLES"),

		MaxLines:     viper.GetInt("MAX_LINES"),
		MaxLogSizeMB: viper.GetInt("MAX_LOG_SIZE_MB"),

		OutputFormat: strings.ToLower(viper.GetString("OUTPUT_FORMAT")),
		Workers:      viper.GetInt("WORKERS"),

		LogLevel: viper.GetString("LOG_LEVEL"),
		LogDir:   viper.GetString("LOG_DIR"),

		EnableDatabase:       viper.GetBool("ENABLE_DATABASE"),
		DatabasePath:         viper.GetString("DATABASE_PATH"),
		HistoryRetentionDays: viper.GetInt("HISTORY_RETENTION_DAYS"),

		EnableTelegram:          viper.GetBool("ENABLE_TELEGRAM"),
		TelegramBotToken:        viper.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChannelID:       viper.GetInt64("TELEGRAM_CHANNEL_ID"),
		TelegramAlertsChannelID: viper.GetInt64("TELEGRAM_ALERTS_CHANNEL_ID"),

		HTTPSProxy: viper.GetString("HTTPS_PROXY"),
	}

	config.applyCLI(cli)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// applyCLI applies command-line overrides (highest priority)
func (c *Config) applyCLI(cli *CLIOptions) {
	if cli == nil {
		return
	}
	if cli.OutputFormat != "" {
		c.OutputFormat = strings.ToLower(cli.OutputFormat)
	}
	if cli.LogLevel != "" {
		c.LogLevel = cli.LogLevel
	}
	if cli.MaxLines != nil {
		c.MaxLines = *cli.MaxLines
	}
	if cli.BinMinutes != nil {
		c.BinMinutes = *cli.BinMinutes
	}
	if cli.Threshold != nil {
		c.ClusterThreshold = *cli.Threshold
	}
	if cli.TopK != nil {
		c.ClusterTopK = *cli.TopK
	}
	if cli.Examples != nil {
		c.ClusterExamples = *cli.Examples
	}
	if cli.Workers != nil {
		c.Workers = *cli.Workers
	}
	if cli.Archive != nil {
		c.EnableDatabase = *cli.Archive
	}
	if cli.Notify != nil {
		c.EnableTelegram = *cli.Notify
	}
	if cli.DatabasePath != "" {
		c.DatabasePath = cli.DatabasePath
	}
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("BIN_MINUTES", triage.DefaultBinMinutes)
	viper.SetDefault("CLUSTER_THRESHOLD", triage.DefaultThreshold)
	viper.SetDefault("CLUSTER_TOP_K", triage.DefaultTopK)
	viper.SetDefault("CLUSTER_EXAMPLES", triage.DefaultExamplesEach)

	viper.SetDefault("MAX_LINES", 200000)
	viper.SetDefault("MAX_LOG_SIZE_MB", 100)
	viper.SetDefault("OUTPUT_FORMAT", "text")
	viper.SetDefault("WORKERS", 4)

	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_DIR", "./logs")

	viper.SetDefault("ENABLE_DATABASE", false)
	viper.SetDefault("DATABASE_PATH", "./data/triage.db")
	viper.SetDefault("HISTORY_RETENTION_DAYS", 90)

	viper.SetDefault("ENABLE_TELEGRAM", false)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.BinMinutes < 1 {
		return fmt.Errorf("BIN_MINUTES must be at least 1 (got: %d)", c.BinMinutes)
	}
	if err := c.ClusterOptions().Validate(); err != nil {
		return fmt.Errorf("CLUSTER_* settings: %w", err)
	}

	if c.MaxLines < 1 {
		return fmt.Errorf("MAX_LINES must be at least 1")
	}
	if c.MaxLogSizeMB < 0 || c.MaxLogSizeMB > 10240 {
		return fmt.Errorf("MAX_LOG_SIZE_MB must be between 0 and 10240")
	}

	format, err := report.ParseFormat(c.OutputFormat)
	if err != nil {
		return fmt.Errorf("OUTPUT_FORMAT: %w", err)
	}
	c.OutputFormat = string(format)
	if c.Workers < 1 || c.Workers > 64 {
		return fmt.Errorf("WORKERS must be between 1 and 64")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	if c.EnableDatabase && c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required when ENABLE_DATABASE=true")
	}
	if c.HistoryRetentionDays < 0 {
		return fmt.Errorf("HISTORY_RETENTION_DAYS must not be negative")
	}

	if err := c.validateTelegram(); err != nil {
		return err
	}

	if c.HTTPSProxy != "" {
		u, err := url.Parse(c.HTTPSProxy)
		if err != nil || u.Host == "" {
			return fmt.Errorf("HTTPS_PROXY must be a URL like http://proxy:8080")
		}
		switch u.Scheme {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("HTTPS_PROXY scheme must be http, https or socks5 (got: %s)", u.Scheme)
		}
	}

	return nil
}

// validateTelegram checks Telegram settings. They are only required when
// notifications are enabled, but anything set must be well formed.
func (c *Config) validateTelegram() error {
	if c.EnableTelegram {
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when ENABLE_TELEGRAM=true")
		}
		if c.TelegramChannelID == 0 {
			return fmt.Errorf("TELEGRAM_CHANNEL_ID is required when ENABLE_TELEGRAM=true")
		}
	}

	if c.TelegramBotToken != "" && !telegramTokenRegex.MatchString(c.TelegramBotToken) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN has invalid format (expected: 'number:token')")
	}
	if c.TelegramChannelID != 0 && c.TelegramChannelID > -100 {
		return fmt.Errorf("TELEGRAM_CHANNEL_ID must be a supergroup/channel ID (starts with -100)")
	}
	if c.TelegramAlertsChannelID != 0 && c.TelegramAlertsChannelID > -100 {
		return fmt.Errorf("TELEGRAM_ALERTS_CHANNEL_ID must be a supergroup/channel ID (starts with -100)")
	}

	return nil
}

// ClusterOptions returns the clustering parameters as engine options
func (c *Config) ClusterOptions() triage.ClusterOptions {
	return triage.ClusterOptions{
		Threshold:    c.ClusterThreshold,
		TopK:         c.ClusterTopK,
		ExamplesEach: c.ClusterExamples,
	}
}

// HasAlertsChannel returns true if alerts channel is configured
func (c *Config) HasAlertsChannel() bool {
	return c.TelegramAlertsChannelID != 0
}

// GetProxyURL returns the proxy for outgoing HTTPS requests, or ""
func (c *Config) GetProxyURL() string {
	return c.HTTPSProxy
}
