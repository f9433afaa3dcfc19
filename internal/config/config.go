package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/metinatakli/seatsync/internal/channel"
	appvalidator "github.com/metinatakli/seatsync/internal/validator"
	"github.com/spf13/pflag"
)

const EnvPrefix = "SEATSYNC_"

type Config struct {
	BaseURL          string        `validate:"required,base_url"`
	MatchID          int64         `validate:"gt=0"`
	UserID           int64         `validate:"gte=0"`
	BlockID          int64         `validate:"gte=0"`
	BlockName        string        `validate:"max=64"`
	Env              string        `validate:"oneof=dev staging prod"`
	LogLevel         string        `validate:"oneof=debug info warn error"`
	HTTPTimeout      time.Duration `validate:"gt=0"`
	StatusAddr       string
	OtelCollectorUrl string
	MetricInterval   time.Duration `validate:"gt=0"`
	Retry            RetryConfig
}

type RetryConfig struct {
	MaxRetries          int           `validate:"gte=1"`
	InitialInterval     time.Duration `validate:"gt=0"`
	MaxInterval         time.Duration `validate:"gtefield=InitialInterval"`
	Multiplier          float64       `validate:"gte=1"`
	RandomizationFactor float64       `validate:"gte=0,lt=1"`
}

func Default() Config {
	policy := channel.DefaultRetryPolicy()

	return Config{
		BaseURL:        "http://localhost:8080",
		Env:            "dev",
		LogLevel:       "info",
		HTTPTimeout:    10 * time.Second,
		MetricInterval: 15 * time.Second,
		Retry: RetryConfig{
			MaxRetries:          policy.MaxRetries,
			InitialInterval:     policy.InitialInterval,
			MaxInterval:         policy.MaxInterval,
			Multiplier:          policy.Multiplier,
			RandomizationFactor: policy.RandomizationFactor,
		},
	}
}

func (c Config) RetryPolicy() channel.RetryPolicy {
	return channel.RetryPolicy{
		MaxRetries:          c.Retry.MaxRetries,
		InitialInterval:     c.Retry.InitialInterval,
		MaxInterval:         c.Retry.MaxInterval,
		Multiplier:          c.Retry.Multiplier,
		RandomizationFactor: c.Retry.RandomizationFactor,
	}
}

// LoadDotEnv reads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}

	return nil
}

// LoadEnv overlays SEATSYNC_* variables onto cfg.
func LoadEnv(cfg *Config) error {
	return loadEnv(cfg, os.LookupEnv)
}

func loadEnv(cfg *Config, lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.string("BASE_URL", &cfg.BaseURL)
	e.int64("MATCH_ID", &cfg.MatchID)
	e.int64("USER_ID", &cfg.UserID)
	e.int64("BLOCK_ID", &cfg.BlockID)
	e.string("BLOCK_NAME", &cfg.BlockName)
	e.string("ENV", &cfg.Env)
	e.string("LOG_LEVEL", &cfg.LogLevel)
	e.duration("HTTP_TIMEOUT", &cfg.HTTPTimeout)
	e.string("STATUS_ADDR", &cfg.StatusAddr)
	e.string("OTEL_COLLECTOR_URL", &cfg.OtelCollectorUrl)
	e.duration("METRIC_INTERVAL", &cfg.MetricInterval)
	e.int("RETRY_MAX", &cfg.Retry.MaxRetries)
	e.duration("RETRY_INITIAL_INTERVAL", &cfg.Retry.InitialInterval)
	e.duration("RETRY_MAX_INTERVAL", &cfg.Retry.MaxInterval)
	e.float("RETRY_MULTIPLIER", &cfg.Retry.Multiplier)
	e.float("RETRY_RANDOMIZATION", &cfg.Retry.RandomizationFactor)

	return errors.Join(e.errs...)
}

// BindFlags registers a flag per setting. Flag defaults are the values in
// cfg, so flags given on the command line win over env and .env.
func BindFlags(flags *pflag.FlagSet, cfg *Config) {
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Allocation API base URL")
	flags.Int64Var(&cfg.MatchID, "match", cfg.MatchID, "Match id")
	flags.Int64Var(&cfg.UserID, "user", cfg.UserID, "Authenticated user id (0 means anonymous)")
	flags.Int64Var(&cfg.BlockID, "block", cfg.BlockID, "Block to select on start")
	flags.StringVar(&cfg.BlockName, "block-name", cfg.BlockName, "Display name of the starting block")
	flags.StringVar(&cfg.Env, "env", cfg.Env, "Environment (dev|staging|prod)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug|info|warn|error)")
	flags.DurationVar(&cfg.HTTPTimeout, "http-timeout", cfg.HTTPTimeout, "Timeout of allocation requests")
	flags.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "Address of the local status server (empty disables it)")
	flags.StringVar(&cfg.OtelCollectorUrl, "otel-collector", cfg.OtelCollectorUrl, "OpenTelemetry collector endpoint")
	flags.DurationVar(&cfg.MetricInterval, "metric-interval", cfg.MetricInterval, "Export interval of OpenTelemetry metrics")
	flags.IntVar(&cfg.Retry.MaxRetries, "retry-max", cfg.Retry.MaxRetries, "Connection errors before the channel fails")
	flags.DurationVar(&cfg.Retry.InitialInterval, "retry-initial", cfg.Retry.InitialInterval, "First reconnect delay")
	flags.DurationVar(&cfg.Retry.MaxInterval, "retry-max-interval", cfg.Retry.MaxInterval, "Upper bound of the reconnect delay")
	flags.Float64Var(&cfg.Retry.Multiplier, "retry-multiplier", cfg.Retry.Multiplier, "Reconnect delay growth factor")
	flags.Float64Var(&cfg.Retry.RandomizationFactor, "retry-jitter", cfg.Retry.RandomizationFactor, "Reconnect delay randomization factor")
}

// Load resolves the configuration from defaults, the .env file at envFile,
// SEATSYNC_* variables and finally the flags explicitly set in flags.
func Load(envFile string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := LoadDotEnv(envFile); err != nil {
			return Config{}, err
		}
	}

	if err := LoadEnv(&cfg); err != nil {
		return Config{}, err
	}

	if flags != nil {
		overlay := pflag.NewFlagSet("overlay", pflag.ContinueOnError)
		BindFlags(overlay, &cfg)

		var errs []error
		flags.Visit(func(f *pflag.Flag) {
			if overlay.Lookup(f.Name) == nil {
				return
			}
			if err := overlay.Set(f.Name, f.Value.String()); err != nil {
				errs = append(errs, fmt.Errorf("invalid value for --%s: %w", f.Name, err))
			}
		})

		if err := errors.Join(errs...); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ValidationError lists every invalid setting.
type ValidationError struct {
	Issues map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Issues))
	for field, issue := range e.Issues {
		fields = append(fields, field+" "+issue)
	}

	slices.Sort(fields)

	return "invalid configuration: " + strings.Join(fields, "; ")
}

func (c Config) Validate() error {
	err := appvalidator.NewValidator().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	verr := &ValidationError{Issues: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Issues[strings.TrimPrefix(fe.Namespace(), "Config.")] = appvalidator.ValidationMessage(fe)
	}

	return verr
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) raw(key string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}

	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, raw string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid value %q for %s%s: %w", raw, EnvPrefix, key, err))
}

func (e *envReader) string(key string, dst *string) {
	if v, ok := e.raw(key); ok {
		*dst = v
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.raw(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.raw(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.raw(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.raw(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
