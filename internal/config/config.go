package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvironmentSandbox    = "sandbox"
	EnvironmentProduction = "production"

	DateLayout = "2006-01-02"

	minTimeoutMs = 10_000
	maxTimeoutMs = 15_000
	minPacingMs  = 150
	maxPacingMs  = 300
)

type Database struct {
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	SSLMode  string `mapstructure:"ssl-mode"`
}

func (d Database) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type GatewayEndpoint struct {
	BaseURL string `mapstructure:"base-url"`
	APIKey  string `mapstructure:"api-key"`
}

type Gateway struct {
	Environment  string          `mapstructure:"environment"`
	Sandbox      GatewayEndpoint `mapstructure:"sandbox"`
	Production   GatewayEndpoint `mapstructure:"production"`
	EventName    string          `mapstructure:"event-name"`
	TimeoutMs    int             `mapstructure:"timeout-ms"`
	PageSize     int             `mapstructure:"page-size"`
	HistoryLimit int             `mapstructure:"history-limit"`
}

// Endpoint returns the base URL and credential of the selected environment.
func (g Gateway) Endpoint() GatewayEndpoint {
	if g.Environment == EnvironmentProduction {
		return g.Production
	}
	return g.Sandbox
}

func (g Gateway) Timeout() time.Duration {
	return time.Duration(g.TimeoutMs) * time.Millisecond
}

type Sync struct {
	PacingMs     int `mapstructure:"pacing-ms"`
	MaxPages     int `mapstructure:"max-pages"`
	RunTimeoutMs int `mapstructure:"run-timeout-ms"`
	LookbackDays int `mapstructure:"lookback-days"`
}

func (s Sync) Pacing() time.Duration {
	return time.Duration(s.PacingMs) * time.Millisecond
}

func (s Sync) RunTimeout() time.Duration {
	return time.Duration(s.RunTimeoutMs) * time.Millisecond
}

type Correction struct {
	CutoffDate string `mapstructure:"cutoff-date"`
}

// Cutoff parses the configured cutoff date as midnight UTC.
func (c Correction) Cutoff() (time.Time, error) {
	return time.Parse(DateLayout, c.CutoffDate)
}

type Serve struct {
	Port             string `mapstructure:"port"`
	IntervalMs       int    `mapstructure:"interval-ms"`
	CorrectAfterSync bool   `mapstructure:"correct-after-sync"`
}

type KafkaWriter struct {
	BatchSize      int `mapstructure:"batch-size"`
	BatchTimeoutMs int `mapstructure:"batch-timeout-ms"`
}

type KafkaBroker struct {
	URL string `mapstructure:"url"`
}

type KafkaTopic struct {
	GatewayEvents string `mapstructure:"gateway-events"`
	StatusChanges string `mapstructure:"status-changes"`
}

type KafkaReader struct {
	GroupID string `mapstructure:"group-id"`
}

type Kafka struct {
	Writer KafkaWriter `mapstructure:"writer"`
	Broker KafkaBroker `mapstructure:"broker"`
	Topic  KafkaTopic  `mapstructure:"topic"`
	Reader KafkaReader `mapstructure:"reader"`
}

func (k Kafka) Enabled() bool {
	return k.Broker.URL != ""
}

type Metrics struct {
	URL          string `mapstructure:"url"`
	IntervalMs   int    `mapstructure:"interval-ms"`
	CommonLabels string `mapstructure:"common-labels"`
}

type Logs struct {
	URL   string `mapstructure:"url"`
	Level string `mapstructure:"level"`
}

type Config struct {
	Database   Database   `mapstructure:"database"`
	Gateway    Gateway    `mapstructure:"gateway"`
	Sync       Sync       `mapstructure:"sync"`
	Correction Correction `mapstructure:"correction"`
	Serve      Serve      `mapstructure:"serve"`
	Kafka      Kafka      `mapstructure:"kafka"`
	Metrics    Metrics    `mapstructure:"metrics"`
	Logs       Logs       `mapstructure:"logs"`
}

var defaults = map[string]any{
	"database.host":                 "localhost",
	"database.port":                 "5432",
	"database.ssl-mode":             "disable",
	"database.user":                 "",
	"database.password":             "",
	"database.name":                 "",
	"gateway.environment":           EnvironmentSandbox,
	"gateway.sandbox.base-url":      "https://api-sandbox.asaas.com/v3",
	"gateway.sandbox.api-key":       "",
	"gateway.production.base-url":   "https://api.asaas.com/v3",
	"gateway.production.api-key":    "",
	"gateway.event-name":            "",
	"gateway.timeout-ms":            10_000,
	"gateway.page-size":             100,
	"gateway.history-limit":         100,
	"sync.pacing-ms":                200,
	"sync.max-pages":                1000,
	"sync.run-timeout-ms":           120_000,
	"sync.lookback-days":            30,
	"correction.cutoff-date":        "2025-01-01",
	"serve.port":                    "8080",
	"serve.interval-ms":             900_000,
	"serve.correct-after-sync":      false,
	"kafka.broker.url":              "",
	"kafka.topic.gateway-events":    "gateway-payment-events",
	"kafka.topic.status-changes":    "registration-status-changes",
	"kafka.reader.group-id":         "payment-reconciler",
	"kafka.writer.batch-size":       100,
	"kafka.writer.batch-timeout-ms": 100,
	"metrics.url":                   "",
	"metrics.interval-ms":           10_000,
	"metrics.common-labels":         "",
	"logs.url":                      "",
	"logs.level":                    "info",
}

// LoadConfig reads config.yaml from path (when present), then applies
// environment overrides such as GATEWAY_SANDBOX_API_KEY, and validates the result.
func LoadConfig(path string) (*Config, error) {
	config, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Read loads the configuration without validating it. Commands that only
// touch the database use it so they do not require gateway credentials.
func Read(path string) (*Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &config, nil
}

func (c *Config) Validate() error {
	g := c.Gateway
	if g.Environment != EnvironmentSandbox && g.Environment != EnvironmentProduction {
		return errors.Errorf("gateway.environment must be %q or %q, got %q", EnvironmentSandbox, EnvironmentProduction, g.Environment)
	}
	endpoint := g.Endpoint()
	if strings.TrimSpace(endpoint.BaseURL) == "" {
		return errors.Errorf("gateway.%s.base-url is required", g.Environment)
	}
	if strings.TrimSpace(endpoint.APIKey) == "" {
		return errors.Errorf("gateway.%s.api-key is required", g.Environment)
	}
	if strings.TrimSpace(g.EventName) == "" {
		return errors.New("gateway.event-name is required")
	}
	if g.TimeoutMs < minTimeoutMs || g.TimeoutMs > maxTimeoutMs {
		return errors.Errorf("gateway.timeout-ms must be within [%d, %d], got %d", minTimeoutMs, maxTimeoutMs, g.TimeoutMs)
	}
	if g.PageSize <= 0 || g.HistoryLimit <= 0 {
		return errors.New("gateway.page-size and gateway.history-limit must be positive")
	}

	s := c.Sync
	if s.PacingMs < minPacingMs || s.PacingMs > maxPacingMs {
		return errors.Errorf("sync.pacing-ms must be within [%d, %d], got %d", minPacingMs, maxPacingMs, s.PacingMs)
	}
	if s.MaxPages <= 0 {
		return errors.New("sync.max-pages must be positive")
	}
	if s.RunTimeoutMs <= 0 {
		return errors.New("sync.run-timeout-ms must be positive")
	}

	if _, err := c.Correction.Cutoff(); err != nil {
		return errors.Wrapf(err, "correction.cutoff-date %q", c.Correction.CutoffDate)
	}

	if c.Serve.IntervalMs <= 0 {
		return errors.New("serve.interval-ms must be positive")
	}

	return nil
}
