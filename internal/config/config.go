package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "RiceMartAuth"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultCountryCode    = "+91"
	defaultOTPCodeLength  = 6
	defaultResendCooldown = 30 * time.Second
	defaultShutdownDelay  = 10 * time.Second
	defaultOTPMaxPerMin   = 5

	cooldownSecondsEnvVar  = "RESEND_COOLDOWN_SECONDS"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	// BackendBaseURL is the storefront backend this gateway fronts.
	BackendBaseURL string

	// ProviderBaseURL and friends configure the hosted verification
	// provider. When ProviderBaseURL is empty, codes are generated and
	// checked locally in Redis instead.
	ProviderBaseURL string
	ProviderAPIKey  string
	ProviderSiteKey string

	CountryCode    string
	OTPCodeLength  int
	ResendCooldown time.Duration
	OTPMaxPerMin   int

	DatabaseURL    string
	RedisURL       string
	ShutdownPeriod time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:         getEnv("APP_NAME", defaultAppName),
		AppEnv:          getEnv("APP_ENV", defaultAppEnv),
		Port:            getEnv("PORT", defaultPort),
		LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		BackendBaseURL:  os.Getenv("BACKEND_API_URL"),
		ProviderBaseURL: os.Getenv("PROVIDER_BASE_URL"),
		ProviderAPIKey:  os.Getenv("PROVIDER_API_KEY"),
		ProviderSiteKey: os.Getenv("PROVIDER_SITE_KEY"),
		CountryCode:     getEnv("DEFAULT_COUNTRY_CODE", defaultCountryCode),
		OTPCodeLength:   defaultOTPCodeLength,
		ResendCooldown:  defaultResendCooldown,
		OTPMaxPerMin:    defaultOTPMaxPerMin,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		ShutdownPeriod:  defaultShutdownDelay,
	}

	if v := os.Getenv("OTP_CODE_LENGTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 4 || n > 10 {
			return Config{}, fmt.Errorf("invalid OTP_CODE_LENGTH: %q", v)
		}
		cfg.OTPCodeLength = n
	}

	if v := os.Getenv("OTP_MAX_PER_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid OTP_MAX_PER_MIN: %w", err)
		}
		cfg.OTPMaxPerMin = n
	}

	if v := os.Getenv(cooldownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", cooldownSecondsEnvVar, err)
		}
		cfg.ResendCooldown = time.Duration(seconds) * time.Second
	}

	if v := os.Getenv(shutdownSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownSecondsEnvVar, err)
		}
		cfg.ShutdownPeriod = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(shutdownDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", shutdownDurationEnvVar, err)
		}
		cfg.ShutdownPeriod = d
	}

	if cfg.BackendBaseURL == "" {
		return Config{}, fmt.Errorf("BACKEND_API_URL must be set")
	}

	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("REDIS_URL must be set")
	}

	// DATABASE_URL is optional: the audit trail degrades to in-memory
	// when no Postgres is configured.

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

// HostedProvider reports whether a hosted verification provider is
// configured.
func (c Config) HostedProvider() bool {
	return c.ProviderBaseURL != ""
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
