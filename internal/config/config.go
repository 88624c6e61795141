package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable. The deployment settings
// carry an envconfig tag and are also read without the prefix (ADDR,
// LOG_DIR, DATABASE_URL, the API key and rate variables). Run settings are
// only read as SITECHECK_*.
const EnvPrefix = "SITECHECK"

var validate = validator.New()

type Config struct {
	Timeout     time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Workers     int           `mapstructure:"workers" validate:"gte=0"` // 0 = one goroutine per target
	Ordered     bool          `mapstructure:"ordered"`
	TargetsFile string        `mapstructure:"targets_file" split_words:"true"`
	ResultsFile string        `mapstructure:"results_file" split_words:"true"`
	UserAgent   string        `mapstructure:"user_agent" split_words:"true"`

	LogDir   string `mapstructure:"log_dir" envconfig:"LOG_DIR" validate:"required"`
	LogLevel string `mapstructure:"log_level" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`

	Addr        string `mapstructure:"addr" envconfig:"ADDR" validate:"required"` // "127.0.0.1:8080" locally, ":8080" in Docker
	DatabaseURL string `mapstructure:"database_url" envconfig:"DATABASE_URL" validate:"omitempty,url"`
	SQLitePath  string `mapstructure:"sqlite_path" envconfig:"SQLITE_PATH"`

	PublicAPIKeys  []string `mapstructure:"public_api_keys" envconfig:"PUBLIC_API_KEYS"`
	AdminAPIKeys   []string `mapstructure:"admin_api_keys" envconfig:"ADMIN_API_KEYS"`
	AllowedOrigins []string `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	PublicRPM      int      `mapstructure:"public_rpm" envconfig:"PUBLIC_RPM" validate:"gte=0"`
	PublicBurst    int      `mapstructure:"public_burst" envconfig:"PUBLIC_BURST" validate:"gte=0"`
	AdminRPM       int      `mapstructure:"admin_rpm" envconfig:"ADMIN_RPM" validate:"gte=0"`
	AdminBurst     int      `mapstructure:"admin_burst" envconfig:"ADMIN_BURST" validate:"gte=0"`
}

func Default() Config {
	return Config{
		Timeout:     5 * time.Second,
		LogDir:      "logs",
		LogLevel:    "info",
		Addr:        "127.0.0.1:8080",
		UserAgent:   "sitecheck/1.0",
		PublicRPM:   120,
		PublicBurst: 60,
		AdminRPM:    30,
		AdminBurst:  10,
	}
}

// Load builds the configuration in layers: defaults, then .env, then the
// config file at path (or $SITECHECK_CONFIG), then environment variables.
// An empty path with no SITECHECK_CONFIG skips the file layer.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return nil, fmt.Errorf("error parsing config: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("error reading environment: %w", err)
	}
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromEnv reads defaults plus environment variables only.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("error reading environment: %w", err)
	}
	normalize(&cfg)
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func normalize(c *Config) {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.PublicAPIKeys = cleanKeys(c.PublicAPIKeys)
	c.AdminAPIKeys = cleanKeys(c.AdminAPIKeys)
	c.AllowedOrigins = cleanKeys(c.AllowedOrigins)
}

func cleanKeys(in []string) []string {
	var out []string
	for _, k := range in {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

// formatValidationErrors formats validation errors into a user-friendly error message
func formatValidationErrors(errs validator.ValidationErrors) error {
	var errMsgs []string
	for _, err := range errs {
		errMsgs = append(errMsgs, fmt.Sprintf(
			"field '%s' failed validation: %s",
			err.Field(),
			err.Tag(),
		))
	}
	return fmt.Errorf("validation errors: %v", errMsgs)
}
