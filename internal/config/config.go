// Package config loads service settings from MODCHECK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"fortio.org/struct2env"
	"github.com/go-playground/validator/v10"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "MODCHECK_"

// Config holds every tunable of the server and CLI.
type Config struct {
	Addr             string        `env:"ADDR" validate:"required"`
	DBPath           string        `env:"DB_PATH"`
	BaseURL          string        `env:"BASE_URL" validate:"required,url"`
	UseMockData      bool          `env:"USE_MOCK_DATA"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxRedirects     int           `env:"MAX_REDIRECTS" validate:"gte=0"`
	MaxRetries       int           `env:"MAX_RETRIES" validate:"gte=0"`
	RetryDelay       time.Duration `env:"RETRY_DELAY" validate:"gte=0"`
	PacingDelay      time.Duration `env:"PACING_DELAY" validate:"gte=0"`
	MaxBatch         int           `env:"MAX_BATCH" validate:"gte=1"`
	BatchesPerMinute int           `env:"BATCHES_PER_MINUTE" validate:"gte=0"`
	WatchInterval    time.Duration `env:"WATCH_INTERVAL" validate:"gte=0"`
	AdminToken       string        `env:"ADMIN_TOKEN"`
	LogLevel         string        `env:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	LogFormat        string        `env:"LOG_FORMAT" validate:"omitempty,oneof=json console"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:             ":8080",
		DBPath:           "modcheck.db",
		BaseURL:          "https://reforger.armaplatform.com",
		RequestTimeout:   30 * time.Second,
		MaxRedirects:     5,
		MaxRetries:       3,
		RetryDelay:       2 * time.Second,
		PacingDelay:      time.Second,
		MaxBatch:         500,
		BatchesPerMinute: 6,
		WatchInterval:    6 * time.Hour,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load applies environment overrides on top of Default.
func Load() (Config, error) {
	cfg := Default()
	if errs := struct2env.SetFromEnv(EnvPrefix, &cfg); len(errs) > 0 {
		return cfg, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	applyLegacy(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyLegacy honors the unprefixed switches older deployments set.
func applyLegacy(cfg *Config) {
	if truthy(os.Getenv("DEV_MODE")) || truthy(os.Getenv("USE_MOCK_DATA")) || os.Getenv("NODE_ENV") == "development" {
		cfg.UseMockData = true
	}
	if cfg.AdminToken == "" {
		cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	}
}

func truthy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes"
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return EnvPrefix + f.Tag.Get("env")
	})
	return v
}()

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config: %s fails %q", fe.Field(), fe.Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
