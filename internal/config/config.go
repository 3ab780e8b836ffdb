package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix            = "PROMODORO"
	defaultHTTPAddress   = "0.0.0.0:8080"
	defaultEnvironment   = EnvironmentProduction
	defaultDBDriver      = "sqlite"
	defaultDatabasePath  = "promodoro.db"
	defaultLogLevel      = "info"
	defaultCookieName    = "token"
	defaultIssuer        = "promodoro"
	defaultTokenTTL      = 43200
	defaultAuthPerSecond = 5.0
	defaultAuthBurst     = 10
	redacted             = "[redacted]"
)

const (
	EnvironmentProduction  = "production"
	EnvironmentDevelopment = "development"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string        `yaml:"http_address"`
	Environment       string        `yaml:"environment"`
	DatabaseDriver    string        `yaml:"database_driver"`
	DatabasePath      string        `yaml:"database_path"`
	DatabaseDSN       string        `yaml:"database_dsn"`
	LogLevel          string        `yaml:"log_level"`
	SigningSecret     string        `yaml:"signing_secret"`
	Issuer            string        `yaml:"issuer"`
	CookieName        string        `yaml:"cookie_name"`
	CookieSecure      bool          `yaml:"cookie_secure"`
	TokenTTL          time.Duration `yaml:"token_ttl"`
	AllowedOrigins    []string      `yaml:"allowed_origins"`
	AuthRatePerSecond float64       `yaml:"auth_rate_per_second"`
	AuthRateBurst     int           `yaml:"auth_rate_burst"`
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("app.environment", defaultEnvironment)
	configViper.SetDefault("database.driver", defaultDBDriver)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.dsn", "")
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.issuer", defaultIssuer)
	configViper.SetDefault("auth.cookie_name", defaultCookieName)
	configViper.SetDefault("auth.cookie_secure", false)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTL)
	configViper.SetDefault("cors.allowed_origins", []string{})
	configViper.SetDefault("ratelimit.auth_per_second", defaultAuthPerSecond)
	configViper.SetDefault("ratelimit.auth_burst", defaultAuthBurst)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       configViper.GetString("http.address"),
		Environment:       strings.ToLower(strings.TrimSpace(configViper.GetString("app.environment"))),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabasePath:      configViper.GetString("database.path"),
		DatabaseDSN:       configViper.GetString("database.dsn"),
		LogLevel:          configViper.GetString("log.level"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		Issuer:            configViper.GetString("auth.issuer"),
		CookieName:        configViper.GetString("auth.cookie_name"),
		CookieSecure:      configViper.GetBool("auth.cookie_secure"),
		TokenTTL:          time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		AllowedOrigins:    splitOrigins(configViper.GetStringSlice("cors.allowed_origins")),
		AuthRatePerSecond: configViper.GetFloat64("ratelimit.auth_per_second"),
		AuthRateBurst:     configViper.GetInt("ratelimit.auth_burst"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// IsDevelopment reports whether detailed client errors are enabled.
func (c AppConfig) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// Redacted returns a copy safe to print.
func (c AppConfig) Redacted() AppConfig {
	if c.SigningSecret != "" {
		c.SigningSecret = redacted
	}
	if c.DatabaseDSN != "" {
		c.DatabaseDSN = redacted
	}
	return c
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.CookieName) == "" {
		return fmt.Errorf("auth.cookie_name is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	switch c.Environment {
	case EnvironmentProduction, EnvironmentDevelopment:
	default:
		return fmt.Errorf("app.environment must be %q or %q", EnvironmentProduction, EnvironmentDevelopment)
	}
	switch c.DatabaseDriver {
	case "sqlite":
		if strings.TrimSpace(c.DatabasePath) == "" {
			return fmt.Errorf("database.path is required")
		}
	case "postgres":
		if strings.TrimSpace(c.DatabaseDSN) == "" {
			return fmt.Errorf("database.dsn is required")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres")
	}
	if c.AuthRatePerSecond <= 0 || c.AuthRateBurst <= 0 {
		return fmt.Errorf("ratelimit settings must be positive")
	}
	return nil
}

// splitOrigins accepts both list values and a single comma separated env value.
func splitOrigins(values []string) []string {
	origins := make([]string, 0, len(values))
	for _, value := range values {
		for _, origin := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
