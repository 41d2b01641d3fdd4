// Package config loads server configuration from a TOML or YAML file and
// applies environment variable overrides declared with `env` struct tags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ServerConfig is the configuration of the example server.
type ServerConfig struct {
	Addr            string   `toml:"addr" yaml:"addr" env:"ADDR"`
	LogLevel        string   `toml:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	Timeout         Duration `toml:"timeout" yaml:"timeout" env:"TIMEOUT"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxBodySize     int64    `toml:"max_body_size" yaml:"max_body_size" env:"MAX_BODY_SIZE"`
	EnableTraceID   bool     `toml:"enable_trace_id" yaml:"enable_trace_id" env:"ENABLE_TRACE_ID"`
	Locales         []string `toml:"locales" yaml:"locales" env:"LOCALES"`

	Auth      AuthConfig      `toml:"auth" yaml:"auth"`
	RateLimit RateLimitConfig `toml:"rate_limit" yaml:"rate_limit"`
	Metrics   MetricsConfig   `toml:"metrics" yaml:"metrics"`
}

// AuthConfig configures JWT authentication.
type AuthConfig struct {
	JWTSecret  string `toml:"jwt_secret" yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer     string `toml:"issuer" yaml:"issuer" env:"JWT_ISSUER"`
	Cookie     string `toml:"cookie" yaml:"cookie" env:"AUTH_COOKIE"`
	RedirectTo string `toml:"redirect_to" yaml:"redirect_to" env:"AUTH_REDIRECT_TO"`
}

// RateLimitConfig configures the per-client rate limit and global throttle.
type RateLimitConfig struct {
	Limit       int      `toml:"limit" yaml:"limit" env:"RATE_LIMIT"`
	Window      Duration `toml:"window" yaml:"window" env:"RATE_LIMIT_WINDOW"`
	ThrottleRPS int      `toml:"throttle_rps" yaml:"throttle_rps" env:"THROTTLE_RPS"`
}

// MetricsConfig configures Prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled" env:"METRICS_ENABLED"`
	Namespace string `toml:"namespace" yaml:"namespace" env:"METRICS_NAMESPACE"`
	Path      string `toml:"path" yaml:"path" env:"METRICS_PATH"`
}

// Default returns the configuration used when nothing is set.
func Default() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		LogLevel:        "info",
		Timeout:         Duration(30 * time.Second),
		ShutdownTimeout: Duration(10 * time.Second),
		MaxBodySize:     1 << 20,
		EnableTraceID:   true,
		Locales:         []string{"en", "fr"},
		Auth: AuthConfig{
			Cookie:     "session",
			RedirectTo: "/sign-in",
		},
		RateLimit: RateLimitConfig{
			Limit:  100,
			Window: Duration(time.Minute),
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "marble",
			Path:      "/metrics",
		},
	}
}

// Duration is a time.Duration read from strings such as "30s".
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, used by both TOML and YAML.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Loader handles loading configuration from files and environment variables.
type Loader struct {
	configPath string
	lookupEnv  func(string) (string, bool)
}

// NewLoader creates a new config loader for the given file path. The format
// is chosen by extension: .toml, .yaml or .yml.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		lookupEnv:  os.LookupEnv,
	}
}

// Load decodes the file into config, then applies environment variable
// overrides for every field with an `env` tag. A missing file is not an
// error: config keeps its current values and env overrides still apply.
// config must be a pointer to a struct.
func (l *Loader) Load(config any) error {
	rv := reflect.ValueOf(config)
	if config == nil || rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config must be a pointer to a struct, got %T", config)
	}

	if l.configPath != "" {
		if err := l.decodeFile(config); err != nil {
			return err
		}
	}

	if err := applyEnvOverrides(rv.Elem(), l.lookupEnv); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

func (l *Loader) decodeFile(config any) error {
	data, err := os.ReadFile(l.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", l.configPath, err)
	}

	switch ext := strings.ToLower(filepath.Ext(l.configPath)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), config); err != nil {
			return fmt.Errorf("failed to decode TOML file %s: %w", l.configPath, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to decode YAML file %s: %w", l.configPath, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	return nil
}

// applyEnvOverrides recursively walks through struct fields and applies env overrides.
func applyEnvOverrides(v reflect.Value, lookup func(string) (string, bool)) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		if !field.CanSet() {
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			if field.Kind() == reflect.Struct {
				if err := applyEnvOverrides(field, lookup); err != nil {
					return err
				}
			}
			continue
		}

		envValue, ok := lookup(envTag)
		if !ok || envValue == "" {
			continue
		}

		if err := setFieldFromString(field, envValue); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", fieldType.Name, envTag, err)
		}
	}

	return nil
}

var durationType = reflect.TypeOf(Duration(0))

// setFieldFromString sets a struct field value from a string based on the field's type.
func setFieldFromString(field reflect.Value, value string) error {
	if field.Type() == durationType {
		var d Duration
		if err := d.UnmarshalText([]byte(value)); err != nil {
			return err
		}
		field.Set(reflect.ValueOf(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %q as int: %w", value, err)
		}
		field.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("cannot parse %q as bool: %w", value, err)
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %v", field.Type())
		}
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %v", field.Kind())
	}
	return nil
}
