package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix = "REPRO"

	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultStorageBucket     = "print_files"
	defaultGuestCookieName   = "guest_session_id"
	defaultGuestCookieMaxAge = 30 * 24 * 60 * 60
	defaultLogLevel          = "info"
	defaultEnvironment       = "development"
)

// Config captures runtime configuration for the print-order API server.
type Config struct {
	HTTPAddress string
	Environment string
	LogLevel    string

	// Supabase
	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseJWTSecret  string
	StorageBucket      string

	// Database
	DatabaseURL string

	// Web push (VAPID)
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	// Guest sessions
	GuestCookieName   string
	GuestCookieMaxAge int

	// CORS
	AllowedOrigins []string
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
	configViper.SetDefault("environment", defaultEnvironment)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("storage.bucket", defaultStorageBucket)
	configViper.SetDefault("guest.cookie_name", defaultGuestCookieName)
	configViper.SetDefault("guest.cookie_max_age", defaultGuestCookieMaxAge)
	configViper.SetDefault("cors.allowed_origins", []string{"*"})
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (Config, error) {
	cfg := Config{
		HTTPAddress: configViper.GetString("http.address"),
		Environment: configViper.GetString("environment"),
		LogLevel:    configViper.GetString("log.level"),

		SupabaseURL:        configViper.GetString("supabase.url"),
		SupabaseServiceKey: configViper.GetString("supabase.service_key"),
		SupabaseJWTSecret:  configViper.GetString("supabase.jwt_secret"),
		StorageBucket:      configViper.GetString("storage.bucket"),

		DatabaseURL: configViper.GetString("database.url"),

		VAPIDPublicKey:  configViper.GetString("vapid.public_key"),
		VAPIDPrivateKey: configViper.GetString("vapid.private_key"),
		VAPIDSubscriber: configViper.GetString("vapid.subscriber"),

		GuestCookieName:   configViper.GetString("guest.cookie_name"),
		GuestCookieMaxAge: configViper.GetInt("guest.cookie_max_age"),

		AllowedOrigins: configViper.GetStringSlice("cors.allowed_origins"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// PushEnabled reports whether VAPID keys are configured. Without them the
// server still runs, it just never dispatches notifications.
func (c Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func (c Config) validate() error {
	if strings.TrimSpace(c.SupabaseURL) == "" {
		return fmt.Errorf("supabase.url is required")
	}
	if strings.TrimSpace(c.SupabaseServiceKey) == "" {
		return fmt.Errorf("supabase.service_key is required")
	}
	if strings.TrimSpace(c.SupabaseJWTSecret) == "" {
		return fmt.Errorf("supabase.jwt_secret is required")
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("database.url is required")
	}
	if strings.TrimSpace(c.GuestCookieName) == "" {
		return fmt.Errorf("guest.cookie_name is required")
	}
	return nil
}
