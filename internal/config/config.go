// Package config loads weather-mcp configuration from an optional file, a
// .env file and WEATHER_MCP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. WEATHER_MCP_NWS_BASEURL.
const EnvPrefix = "WEATHER_MCP"

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Config holds all configuration for the application.
type Config struct {
	App       AppConfig  `mapstructure:"app"`
	Transport string     `mapstructure:"transport"`
	NWS       NWSConfig  `mapstructure:"nws"`
	Log       LogConfig  `mapstructure:"log"`
	HTTP      HTTPConfig `mapstructure:"http"`
	Auth      AuthConfig `mapstructure:"auth"`
	OTel      OTelConfig `mapstructure:"otel"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	Env string `mapstructure:"env"`
}

// NWSConfig configures the upstream API client.
type NWSConfig struct {
	BaseURL   string        `mapstructure:"baseurl"`
	UserAgent string        `mapstructure:"useragent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// HTTPConfig configures the HTTP transport.
type HTTPConfig struct {
	Port       int  `mapstructure:"port"`
	RequireTLS bool `mapstructure:"requiretls"`
}

// AuthConfig configures bearer auth on the HTTP transport. Auth is off when
// SigningKey is empty.
type AuthConfig struct {
	SigningKey string        `mapstructure:"signingkey"`
	Issuer     string        `mapstructure:"issuer"`
	Audience   string        `mapstructure:"audience"`
	TokenTTL   time.Duration `mapstructure:"tokenttl"`
}

// OTelConfig configures OpenTelemetry export.
type OTelConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// Load reads configuration. configFile may be empty, in which case
// weather-mcp.yaml is looked up in the working directory and ./config, and
// its absence is not an error.
func Load(configFile string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("weather-mcp")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}

	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("transport", TransportStdio)
	v.SetDefault("nws.baseurl", "https://api.weather.gov")
	v.SetDefault("nws.useragent", "weather-app/1.0")
	v.SetDefault("nws.timeout", 3*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.requiretls", false)
	v.SetDefault("auth.signingkey", "")
	v.SetDefault("auth.issuer", "weather-mcp")
	v.SetDefault("auth.audience", "weather-mcp")
	v.SetDefault("auth.tokenttl", 24*time.Hour)
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
}

// Validate checks values that have no usable fallback.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("invalid transport %q: must be %q or %q", c.Transport, TransportStdio, TransportHTTP)
	}

	if c.NWS.Timeout <= 0 {
		return fmt.Errorf("invalid nws.timeout %s: must be positive", c.NWS.Timeout)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http.port %d", c.HTTP.Port)
	}

	return nil
}

// ServerAddr returns the HTTP listen address in the format ":port".
func (c *Config) ServerAddr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

// NewLogger creates a zerolog.Logger writing to w. Unknown levels fall back
// to info; format "console" selects human-readable output.
func (c *Config) NewLogger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(c.Log.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := w
	if strings.EqualFold(c.Log.Format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
