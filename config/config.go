package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. FRS_DATABASE_PATH
const EnvPrefix = "FRS"

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig     `yaml:"database" mapstructure:"database"`
	Source       SourceConfig       `yaml:"source" mapstructure:"source"`
	Scanner      ScannerConfig      `yaml:"scanner" mapstructure:"scanner"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Taxonomy     TaxonomyConfig     `yaml:"taxonomy" mapstructure:"taxonomy"`
	Notification NotificationConfig `yaml:"notification" mapstructure:"notification"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

// SourceConfig holds the Reddit API settings
type SourceConfig struct {
	ClientID       string `yaml:"client_id" mapstructure:"client_id"`
	ClientSecret   string `yaml:"client_secret" mapstructure:"client_secret"`
	UserAgent      string `yaml:"user_agent" mapstructure:"user_agent"`
	Subreddit      string `yaml:"subreddit" mapstructure:"subreddit"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	TokenURL       string `yaml:"token_url" mapstructure:"token_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ScannerConfig controls the scan pipeline and its schedule
type ScannerConfig struct {
	Enabled             bool   `yaml:"enabled" mapstructure:"enabled"`
	Schedule            string `yaml:"schedule" mapstructure:"schedule"`
	InitialDelaySeconds int    `yaml:"initial_delay_seconds" mapstructure:"initial_delay_seconds"`
	MaxPosts            int    `yaml:"max_posts" mapstructure:"max_posts"`
	RiskWindowDays      int    `yaml:"risk_window_days" mapstructure:"risk_window_days"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Port           string   `yaml:"port" mapstructure:"port"`
	EnableCORS     bool     `yaml:"enable_cors" mapstructure:"enable_cors"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	EnableMetrics  bool     `yaml:"enable_metrics" mapstructure:"enable_metrics"`
}

// TaxonomyConfig points at an optional YAML taxonomy override
type TaxonomyConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// NotificationConfig represents Slack notification settings
type NotificationConfig struct {
	SlackWebhookURL string   `yaml:"slack_webhook_url" mapstructure:"slack_webhook_url"`
	SlackChannel    string   `yaml:"slack_channel" mapstructure:"slack_channel"`
	Username        string   `yaml:"username" mapstructure:"username"`
	IconEmoji       string   `yaml:"icon_emoji" mapstructure:"icon_emoji"`
	NotifyOnSuccess bool     `yaml:"notify_on_success" mapstructure:"notify_on_success"`
	MentionUsers    []string `yaml:"mention_users" mapstructure:"mention_users"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Output string `yaml:"output" mapstructure:"output"`
	File   string `yaml:"file" mapstructure:"file"`
}

// legacyEnv maps config keys to the plain environment names older deployments use
var legacyEnv = map[string]string{
	"source.client_id":     "REDDIT_CLIENT_ID",
	"source.client_secret": "REDDIT_CLIENT_SECRET",
	"source.user_agent":    "REDDIT_USER_AGENT",
	"scanner.max_posts":    "MAX_POSTS_PER_SCAN",
	"database.path":        "DATABASE_PATH",
	"server.port":          "PORT",
}

// legacyIntervalEnv holds a whole number of hours between scheduled scans
const legacyIntervalEnv = "SCAN_INTERVAL_HOURS"

// GetDSN returns the data source name for the database connection
func (dc *DatabaseConfig) GetDSN() string {
	return dc.Path
}

// Timeout returns the upstream request timeout
func (sc *SourceConfig) Timeout() time.Duration {
	return time.Duration(sc.TimeoutSeconds) * time.Second
}

// InitialDelay returns the delay before the startup scan; negative disables it
func (sc *ScannerConfig) InitialDelay() time.Duration {
	return time.Duration(sc.InitialDelaySeconds) * time.Second
}

// RiskWindow returns the trailing aggregation window
func (sc *ScannerConfig) RiskWindow() time.Duration {
	return time.Duration(sc.RiskWindowDays) * 24 * time.Hour
}

// NotificationsEnabled reports whether a Slack webhook is configured
func (nc *NotificationConfig) NotificationsEnabled() bool {
	return nc.SlackWebhookURL != ""
}

// LoadConfig loads configuration from .env, the config file and environment
// variables. An empty configPath searches the standard locations.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env file: %v", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(".firmware-risk-scanner")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.AddConfigPath("/etc/firmware-risk-scanner")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", legacy, err)
		}
	}

	if err := bindLegacyInterval(v); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateAndSetDefaults(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// bindLegacyInterval maps SCAN_INTERVAL_HOURS=N onto scanner.schedule as
// "@every Nh". An explicit FRS_SCANNER_SCHEDULE takes precedence.
func bindLegacyInterval(v *viper.Viper) error {
	raw, ok := os.LookupEnv(legacyIntervalEnv)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}
	if _, set := os.LookupEnv(EnvPrefix + "_SCANNER_SCHEDULE"); set {
		return nil
	}

	hours, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || hours <= 0 {
		return fmt.Errorf("%s must be a positive number of hours, got %q", legacyIntervalEnv, raw)
	}
	v.Set("scanner.schedule", fmt.Sprintf("@every %dh", hours))
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "./firmware_risk.db")

	v.SetDefault("source.client_id", "")
	v.SetDefault("source.client_secret", "")
	v.SetDefault("source.user_agent", "firmware-risk-scanner/1.0")
	v.SetDefault("source.subreddit", "UNIFI")
	v.SetDefault("source.base_url", "https://oauth.reddit.com")
	v.SetDefault("source.token_url", "https://www.reddit.com/api/v1/access_token")
	v.SetDefault("source.timeout_seconds", 30)

	v.SetDefault("scanner.enabled", true)
	v.SetDefault("scanner.schedule", "@every 6h")
	v.SetDefault("scanner.initial_delay_seconds", 5)
	v.SetDefault("scanner.max_posts", 200)
	v.SetDefault("scanner.risk_window_days", 30)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.enable_cors", true)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("taxonomy.file", "")

	v.SetDefault("notification.slack_webhook_url", "")
	v.SetDefault("notification.slack_channel", "")
	v.SetDefault("notification.username", "Firmware Risk Scanner")
	v.SetDefault("notification.icon_emoji", ":satellite:")
	v.SetDefault("notification.notify_on_success", false)
	v.SetDefault("notification.mention_users", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.file", "")
}

// validateAndSetDefaults validates configuration and sets computed defaults
func validateAndSetDefaults(config *Config) error {
	if config.Database.Driver != "sqlite3" {
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}

	config.Database.Path = os.ExpandEnv(config.Database.Path)
	config.Taxonomy.File = os.ExpandEnv(config.Taxonomy.File)

	if config.Database.Path != ":memory:" && !strings.HasPrefix(config.Database.Path, "file:") {
		dbDir := filepath.Dir(config.Database.Path)
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	if config.Scanner.MaxPosts <= 0 {
		return fmt.Errorf("scanner.max_posts must be positive, got %d", config.Scanner.MaxPosts)
	}
	if config.Scanner.RiskWindowDays <= 0 {
		return fmt.Errorf("scanner.risk_window_days must be positive, got %d", config.Scanner.RiskWindowDays)
	}
	if strings.TrimSpace(config.Scanner.Schedule) == "" {
		return fmt.Errorf("scanner.schedule is required")
	}
	if config.Source.TimeoutSeconds <= 0 {
		config.Source.TimeoutSeconds = 30
	}
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	return nil
}

// getMinimalConfig returns a minimal configuration with defaults
func getMinimalConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite3",
			Path:   "./firmware_risk.db",
		},
		Source: SourceConfig{
			UserAgent:      "firmware-risk-scanner/1.0",
			Subreddit:      "UNIFI",
			BaseURL:        "https://oauth.reddit.com",
			TokenURL:       "https://www.reddit.com/api/v1/access_token",
			TimeoutSeconds: 30,
		},
		Scanner: ScannerConfig{
			Enabled:             true,
			Schedule:            "@every 6h",
			InitialDelaySeconds: 5,
			MaxPosts:            200,
			RiskWindowDays:      30,
		},
		Server: ServerConfig{
			Port:           "8080",
			EnableCORS:     true,
			AllowedOrigins: []string{"*"},
			EnableMetrics:  true,
		},
		Notification: NotificationConfig{
			Username:  "Firmware Risk Scanner",
			IconEmoji: ":satellite:",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
	}
}

// SaveConfig saves the configuration to a file
func SaveConfig(config *Config, filePath string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateDefaultConfig creates a default configuration file
func GenerateDefaultConfig(filePath string) error {
	return SaveConfig(getMinimalConfig(), filePath)
}
