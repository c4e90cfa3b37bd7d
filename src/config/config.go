package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"quote-broadcaster/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Environment variables that override values from the YAML file.
const (
	EnvSecret        = "QUOTES_SECRET"
	EnvFeedURL       = "QUOTES_FEED_URL"
	EnvFeedLogin     = "QUOTES_FEED_LOGIN"
	EnvFeedPassword  = "QUOTES_FEED_PASSWORD"
	EnvFeedServer    = "QUOTES_FEED_SERVER"
	EnvServerAddress = "QUOTES_HOST"
	EnvServerPort    = "QUOTES_PORT"
)

// DefaultSymbols is the alias table used when the config file names none.
var DefaultSymbols = map[string]string{
	"GOLD":     "XAUUSD",
	"SILVER":   "XAGUSD",
	"PLATINUM": "XPTUSD",
}

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new Config instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	return Parse(data)
}

// -----------------------------------------------------------------------------

// Parse builds a Config from raw YAML, applying defaults and environment overrides.
func Parse(data []byte) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "quote-broadcaster"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.Greeting == "" {
		c.Greeting = "Welcome to the quote broadcaster API"
	}
	if len(c.Symbols) == 0 {
		c.Symbols = make(map[string]string, len(DefaultSymbols))
		for k, v := range DefaultSymbols {
			c.Symbols[k] = v
		}
	}

	if c.Feed.RequestTimeout == 0 {
		c.Feed.RequestTimeout = 5
	}
	if c.Feed.LoginRetries == 0 {
		c.Feed.LoginRetries = 3
	}

	if c.Market.StatusStrategy == "" {
		c.Market.StatusStrategy = "calendar"
	}
	if c.Market.Timezone == "" {
		c.Market.Timezone = "Asia/Dubai"
	}
	if c.Market.CloseWeekday == "" {
		c.Market.CloseWeekday = "Friday"
	}
	if c.Market.CloseTime == "" {
		c.Market.CloseTime = "23:00"
	}
	if c.Market.ClosureHours == 0 {
		c.Market.ClosureHours = 50
	}

	if c.Broadcast.IntervalMillis == 0 {
		c.Broadcast.IntervalMillis = 100
	}

	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Storage.RetentionHours == 0 {
		c.Storage.RetentionHours = 24
	}

	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "quotes"
	}
	if c.NATS.ClientID == "" {
		c.NATS.ClientID = c.Name
	}
	if c.NATS.ConnectTimeout == 0 {
		c.NATS.ConnectTimeout = 5
	}

	if c.Redis.Namespace == "" {
		c.Redis.Namespace = "quotes"
	}
	if c.Redis.TTLSeconds == 0 {
		c.Redis.TTLSeconds = 60
	}
}

// -----------------------------------------------------------------------------

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvSecret); ok {
		c.Secret = v
	}
	if v, ok := os.LookupEnv(EnvFeedURL); ok {
		c.Feed.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvFeedLogin); ok {
		login, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", EnvFeedLogin, v, err)
		}
		c.Feed.Login = login
	}
	if v, ok := os.LookupEnv(EnvFeedPassword); ok {
		c.Feed.Password = v
	}
	if v, ok := os.LookupEnv(EnvFeedServer); ok {
		c.Feed.Server = v
	}
	if v, ok := os.LookupEnv(EnvServerAddress); ok {
		c.Host = v
	}
	if v, ok := os.LookupEnv(EnvServerPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", EnvServerPort, v, err)
		}
		c.Port = port
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535) {
		return fmt.Errorf("invalid gRPC port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}
	if c.Secret == "" {
		return fmt.Errorf("shared secret cannot be empty (set %s)", EnvSecret)
	}

	// Alias table must be a function onto canonical codes
	for alias, canonical := range c.Symbols {
		if strings.TrimSpace(alias) == "" || strings.TrimSpace(canonical) == "" {
			return fmt.Errorf("symbol mapping '%s' -> '%s' must not be empty", alias, canonical)
		}
	}
	if err := c.validateReverseMapping(); err != nil {
		return err
	}

	// Feed
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("feed base url cannot be empty (set %s)", EnvFeedURL)
	}
	if c.Feed.RequestTimeout <= 0 {
		return fmt.Errorf("feed timeout must be greater than 0")
	}
	if c.Feed.MaxRetries < 0 {
		return fmt.Errorf("feed retries cannot be negative")
	}
	if c.Feed.LoginRetries <= 0 {
		return fmt.Errorf("feed login retries must be greater than 0")
	}

	// Market
	switch c.Market.StatusStrategy {
	case "calendar", "feed":
	default:
		return fmt.Errorf("unknown market status strategy '%s' (want calendar or feed)", c.Market.StatusStrategy)
	}
	if _, err := time.LoadLocation(c.Market.Timezone); err != nil {
		return fmt.Errorf("invalid market timezone '%s': %w", c.Market.Timezone, err)
	}
	if _, err := c.CloseWeekday(); err != nil {
		return err
	}
	if _, _, err := c.CloseClock(); err != nil {
		return err
	}
	if c.Market.ClosureHours <= 0 || c.Market.ClosureHours >= 7*24 {
		return fmt.Errorf("closure hours must be between 1 and 167, got %d", c.Market.ClosureHours)
	}

	if c.Broadcast.IntervalMillis <= 0 {
		return fmt.Errorf("broadcast interval must be greater than 0")
	}

	// Storage
	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	default:
		return fmt.Errorf("unknown database type '%s'", c.Storage.DBType)
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats url cannot be empty when nats is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis addr cannot be empty when redis is enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

func (c *Config) validateReverseMapping() error {
	seen := make(map[string]string, len(c.Symbols))
	for alias, canonical := range c.Symbols {
		key := strings.ToUpper(canonical)
		if prev, ok := seen[key]; ok && !strings.EqualFold(prev, alias) {
			return fmt.Errorf("canonical symbol '%s' is mapped from both '%s' and '%s'", canonical, prev, alias)
		}
		seen[key] = alias
	}
	return nil
}

// -----------------------------------------------------------------------------

// Location returns the reference timezone for market sessions.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Market.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// -----------------------------------------------------------------------------

// CloseWeekday parses market.close_weekday.
func (c *Config) CloseWeekday() (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), c.Market.CloseWeekday) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid close weekday '%s'", c.Market.CloseWeekday)
}

// -----------------------------------------------------------------------------

// CloseClock parses market.close_time as hour and minute.
func (c *Config) CloseClock() (int, int, error) {
	t, err := time.Parse("15:04", c.Market.CloseTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid close time '%s' (want HH:MM): %w", c.Market.CloseTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// -----------------------------------------------------------------------------

// BroadcastInterval returns the scheduler period.
func (c *Config) BroadcastInterval() time.Duration {
	return time.Duration(c.Broadcast.IntervalMillis) * time.Millisecond
}

// FeedTimeout returns the per-request timeout of the quote feed.
func (c *Config) FeedTimeout() time.Duration {
	return time.Duration(c.Feed.RequestTimeout) * time.Second
}
