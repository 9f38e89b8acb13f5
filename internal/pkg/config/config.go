package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Maps      MapsConfig      `mapstructure:"maps"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Imagery   ImageryConfig   `mapstructure:"imagery"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	ReadTimeout    int `mapstructure:"read_timeout"`
	WriteTimeout   int `mapstructure:"write_timeout"`
	ExploreTimeout int `mapstructure:"explore_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// MapsConfig configures the geocoding, directions, places and imagery APIs.
type MapsConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	ImageryBaseURL string `mapstructure:"imagery_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	RetryAttempts  int    `mapstructure:"retry_attempts"`
}

func (m MapsConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// OpenAIConfig configures the advisory, vision and safety model calls.
// An empty APIKey disables all of them.
type OpenAIConfig struct {
	APIKey                 string `mapstructure:"api_key"`
	BaseURL                string `mapstructure:"base_url"`
	AdvisoryModel          string `mapstructure:"advisory_model"`
	VisionModel            string `mapstructure:"vision_model"`
	SafetyModel            string `mapstructure:"safety_model"`
	AdvisoryTimeoutSeconds int    `mapstructure:"advisory_timeout_seconds"`
	VisionTimeoutSeconds   int    `mapstructure:"vision_timeout_seconds"`
}

func (o OpenAIConfig) Enabled() bool { return o.APIKey != "" }

func (o OpenAIConfig) AdvisoryTimeout() time.Duration {
	return time.Duration(o.AdvisoryTimeoutSeconds) * time.Second
}

func (o OpenAIConfig) VisionTimeout() time.Duration {
	return time.Duration(o.VisionTimeoutSeconds) * time.Second
}

// ImageryConfig holds the sampling and static image parameters.
type ImageryConfig struct {
	Size              string `mapstructure:"size"`
	FOV               int    `mapstructure:"fov"`
	Pitch             int    `mapstructure:"pitch"`
	StopsPerLeg       int    `mapstructure:"stops_per_leg"`
	EnrichConcurrency int    `mapstructure:"enrich_concurrency"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.explore_timeout", 120)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "urbanbuzz")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "urbanbuzz")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("maps.api_key", "")
	v.SetDefault("maps.base_url", "")
	v.SetDefault("maps.imagery_base_url", "https://maps.googleapis.com")
	v.SetDefault("maps.timeout_seconds", 10)
	v.SetDefault("maps.retry_attempts", 3)
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "https://api.openai.com")
	v.SetDefault("openai.advisory_model", "gpt-4o-mini")
	v.SetDefault("openai.vision_model", "gpt-4o")
	v.SetDefault("openai.safety_model", "gpt-3.5-turbo")
	v.SetDefault("openai.advisory_timeout_seconds", 8)
	v.SetDefault("openai.vision_timeout_seconds", 30)
	v.SetDefault("imagery.size", "640x640")
	v.SetDefault("imagery.fov", 90)
	v.SetDefault("imagery.pitch", 0)
	v.SetDefault("imagery.stops_per_leg", 8)
	v.SetDefault("imagery.enrich_concurrency", 8)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "route-analysis")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: URBANBUZZ_MAPS_API_KEY → maps.api_key
	v.SetEnvPrefix("URBANBUZZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Server.ExploreTimeout <= 0 {
		errs = append(errs, "server.explore_timeout must be positive")
	}
	if c.Maps.APIKey == "" {
		errs = append(errs, "maps.api_key is required")
	}
	if c.Maps.TimeoutSeconds <= 0 {
		errs = append(errs, "maps.timeout_seconds must be positive")
	}
	if c.Maps.RetryAttempts < 1 {
		errs = append(errs, "maps.retry_attempts must be at least 1")
	}
	if c.OpenAI.Enabled() && (c.OpenAI.AdvisoryTimeoutSeconds <= 0 || c.OpenAI.VisionTimeoutSeconds <= 0) {
		errs = append(errs, "openai timeouts must be positive")
	}
	if c.Imagery.Size == "" {
		errs = append(errs, "imagery.size is required")
	}
	if c.Imagery.FOV <= 0 || c.Imagery.FOV > 120 {
		errs = append(errs, fmt.Sprintf("imagery.fov must be 1-120, got %d", c.Imagery.FOV))
	}
	if c.Imagery.Pitch < -90 || c.Imagery.Pitch > 90 {
		errs = append(errs, fmt.Sprintf("imagery.pitch must be -90..90, got %d", c.Imagery.Pitch))
	}
	if c.Imagery.StopsPerLeg <= 0 {
		errs = append(errs, "imagery.stops_per_leg must be positive")
	}
	if c.Imagery.EnrichConcurrency <= 0 {
		errs = append(errs, "imagery.enrich_concurrency must be positive")
	}
	if c.Temporal.HostPort == "" {
		errs = append(errs, "temporal.host_port is required")
	}
	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal.task_queue is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
