package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix             = "LENDEN"
	defaultHTTPAddress    = "0.0.0.0:8085"
	defaultDatabasePath   = "lenden.db"
	defaultLogLevel       = "info"
	defaultBackoffSeconds = 30
	defaultMaxRetries     = 5
)

// AppConfig captures runtime configuration for the sync daemon.
type AppConfig struct {
	HTTPAddress    string
	DatabasePath   string
	LogLevel       string
	OwnerID        string
	SyncBackoff    time.Duration
	SyncMaxRetries int
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
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("sync.backoff_seconds", defaultBackoffSeconds)
	configViper.SetDefault("sync.max_retries", defaultMaxRetries)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		DatabasePath:   configViper.GetString("database.path"),
		LogLevel:       configViper.GetString("log.level"),
		OwnerID:        configViper.GetString("owner.id"),
		SyncBackoff:    time.Duration(configViper.GetInt("sync.backoff_seconds")) * time.Second,
		SyncMaxRetries: configViper.GetInt("sync.max_retries"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.OwnerID) == "" {
		return fmt.Errorf("owner.id is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.SyncBackoff <= 0 {
		return fmt.Errorf("sync.backoff_seconds must be positive")
	}
	if c.SyncMaxRetries <= 0 {
		return fmt.Errorf("sync.max_retries must be positive")
	}
	return nil
}
