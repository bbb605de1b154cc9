// Package config loads the account core settings from defaults, an optional
// accounts.yaml and ACCOUNTS_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvPrefix      = "ACCOUNTS"
	ConfigName     = "accounts"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options holds every tunable of the account core.
type Options struct {
	Tokens   TokenOptions    `mapstructure:"tokens" json:"tokens"`
	Sessions SessionOptions  `mapstructure:"sessions" json:"sessions"`
	Login    LoginOptions    `mapstructure:"login" json:"login"`
	Database DatabaseOptions `mapstructure:"database" json:"database"`
	Redis    RedisOptions    `mapstructure:"redis" json:"redis"`
	Google   OAuthOptions    `mapstructure:"google" json:"google"`
	Facebook OAuthOptions    `mapstructure:"facebook" json:"facebook"`
	Phone    PhoneOptions    `mapstructure:"phone" json:"phone"`
	Metrics  MetricsOptions  `mapstructure:"metrics" json:"metrics"`
}

type TokenOptions struct {
	VerificationTTL  time.Duration `mapstructure:"verification_ttl" json:"verification_ttl"`
	PasswordResetTTL time.Duration `mapstructure:"password_reset_ttl" json:"password_reset_ttl"`
}

type SessionOptions struct {
	Cap int `mapstructure:"cap" json:"cap"`
	// StaleAfterDays is the inactivity age the session sweep removes
	StaleAfterDays int `mapstructure:"stale_after_days" json:"stale_after_days"`
}

type LoginOptions struct {
	MaxAttempts    int           `mapstructure:"max_attempts" json:"max_attempts"`
	CoolDownPeriod time.Duration `mapstructure:"cool_down_period" json:"cool_down_period"`
}

type DatabaseOptions struct {
	Driver string `mapstructure:"driver" json:"driver"`
	DSN    string `mapstructure:"dsn" json:"-"`
	Debug  bool   `mapstructure:"debug" json:"debug"`
}

type RedisOptions struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" json:"db"`
	// Queue is the list the notification outbox pushes jobs to
	Queue string `mapstructure:"queue" json:"queue"`
}

// Enabled reports whether a redis outbox was configured
func (r RedisOptions) Enabled() bool {
	return strings.TrimSpace(r.Addr) != ""
}

type OAuthOptions struct {
	ClientID     string `mapstructure:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" json:"-"`
	CallbackURL  string `mapstructure:"callback_url" json:"callback_url"`
}

// Enabled reports whether client credentials were provided
func (o OAuthOptions) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

type PhoneOptions struct {
	Region string `mapstructure:"region" json:"region"`
}

type MetricsOptions struct {
	Namespace string `mapstructure:"namespace" json:"namespace"`
}

// Load reads configuration from defaults, the optional config file and the
// environment. An empty path searches the working directory and
// /etc/accounts for accounts.yaml.
func Load(path string) (*Options, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/accounts")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindSecrets(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	return &opts, nil
}

// Validate rejects values no component can work with
func (o Options) Validate() error {
	switch {
	case o.Tokens.VerificationTTL <= 0:
		return fmt.Errorf("tokens.verification_ttl must be positive")
	case o.Tokens.PasswordResetTTL <= 0:
		return fmt.Errorf("tokens.password_reset_ttl must be positive")
	case o.Sessions.Cap < 1:
		return fmt.Errorf("sessions.cap must be at least 1")
	case o.Sessions.StaleAfterDays < 1:
		return fmt.Errorf("sessions.stale_after_days must be at least 1")
	case o.Login.MaxAttempts < 1:
		return fmt.Errorf("login.max_attempts must be at least 1")
	}

	switch o.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unsupported database driver %q", o.Database.Driver)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tokens.verification_ttl", "24h")
	v.SetDefault("tokens.password_reset_ttl", "1h")

	v.SetDefault("sessions.cap", 5)
	v.SetDefault("sessions.stale_after_days", 30)

	v.SetDefault("login.max_attempts", 5)
	v.SetDefault("login.cool_down_period", "24h")

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.dsn", "file:accounts.db?cache=shared")
	v.SetDefault("database.debug", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.queue", "accounts:notifications")

	v.SetDefault("phone.region", "AU")
	v.SetDefault("metrics.namespace", "accounts")
}

// bindSecrets registers keys without defaults so AutomaticEnv sees them
func bindSecrets(v *viper.Viper) {
	for _, key := range []string{
		"redis.password",
		"google.client_id",
		"google.client_secret",
		"google.callback_url",
		"facebook.client_id",
		"facebook.client_secret",
		"facebook.callback_url",
	} {
		_ = v.BindEnv(key)
	}
}
