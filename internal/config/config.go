// Package config defines the docstore configuration model and loading logic.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Cache backend types.
const (
	CacheTypeMemory = "memory"
	CacheTypeRedis  = "redis"
)

// Config is the root configuration for the docstore service.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Keycloak      KeycloakConfig      `yaml:"keycloak"`
	Auth          AuthConfig          `yaml:"auth"`
	Storage       StorageConfig       `yaml:"storage"`
	Vault         VaultConfig         `yaml:"vault"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string   `yaml:"addr"`
	ReadTimeout     Duration `yaml:"readTimeout"`
	WriteTimeout    Duration `yaml:"writeTimeout"`
	IdleTimeout     Duration `yaml:"idleTimeout"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout"`

	// MaxRequestBodySize is the maximum allowed request body size in bytes.
	// Zero disables the limit.
	MaxRequestBodySize int64 `yaml:"maxRequestBodySize"`
}

// KeycloakConfig holds identity provider settings.
type KeycloakConfig struct {
	URL      string `yaml:"url"`
	Realm    string `yaml:"realm"`
	ClientID string `yaml:"clientID"`

	// ClientSecret is used for introspection. It may instead be resolved
	// from Vault when ClientSecretVaultPath is set.
	ClientSecret           string `yaml:"clientSecret"`
	ClientSecretVaultPath  string `yaml:"clientSecretVaultPath"`
	ClientSecretVaultField string `yaml:"clientSecretVaultField"`

	// PrimaryClient is the client ID whose role grants the front-end
	// application queries directly.
	PrimaryClient string `yaml:"primaryClient"`

	Timeout Duration      `yaml:"timeout"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig holds circuit breaker settings for provider round trips.
type BreakerConfig struct {
	MaxRequests      uint32   `yaml:"maxRequests"`
	Interval         Duration `yaml:"interval"`
	Timeout          Duration `yaml:"timeout"`
	FailureThreshold uint32   `yaml:"failureThreshold"`
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	Cache CacheConfig `yaml:"cache"`
}

// CacheConfig holds verification cache settings.
type CacheConfig struct {
	Enabled    bool        `yaml:"enabled"`
	Type       string      `yaml:"type"`
	TTL        Duration    `yaml:"ttl"`
	MaxEntries int         `yaml:"maxEntries"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings for the verification cache.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// StorageConfig holds document storage settings.
type StorageConfig struct {
	// DataDir is the root of the document store; remote/, backup/ and
	// preview/ subtrees live under it.
	DataDir string `yaml:"dataDir"`
}

// VaultConfig holds Vault connection settings for secret resolution.
type VaultConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addr      string   `yaml:"addr"`
	Token     string   `yaml:"token"`
	Namespace string   `yaml:"namespace"`
	Timeout   Duration `yaml:"timeout"`
}

// ObservabilityConfig holds logging and tracing settings.
type ObservabilityConfig struct {
	LogLevel  string        `yaml:"logLevel"`
	LogFormat string        `yaml:"logFormat"`
	Tracing   TracingConfig `yaml:"tracing"`
}

// TracingConfig holds OTLP tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:               ":8000",
			ReadTimeout:        Duration(30 * time.Second),
			WriteTimeout:       Duration(30 * time.Second),
			IdleTimeout:        Duration(120 * time.Second),
			ShutdownTimeout:    Duration(15 * time.Second),
			MaxRequestBodySize: 100 << 20,
		},
		Keycloak: KeycloakConfig{
			URL:                    "http://keycloak:8080",
			Realm:                  "team_online",
			ClientID:               "benyon_be",
			ClientSecretVaultField: "clientSecret",
			PrimaryClient:          "benyon_fe",
			Timeout:                Duration(30 * time.Second),
			Breaker: BreakerConfig{
				MaxRequests:      3,
				Interval:         Duration(60 * time.Second),
				Timeout:          Duration(30 * time.Second),
				FailureThreshold: 5,
			},
		},
		Auth: AuthConfig{
			Cache: CacheConfig{
				Enabled:    false,
				Type:       CacheTypeMemory,
				TTL:        Duration(30 * time.Second),
				MaxEntries: 10000,
			},
		},
		Storage: StorageConfig{
			DataDir: "data",
		},
		Vault: VaultConfig{
			Timeout: Duration(10 * time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
			Tracing: TracingConfig{
				SamplingRate: 1.0,
			},
		},
	}
}

// Validation errors.
var (
	ErrMissingKeycloakURL    = errors.New("keycloak.url is required")
	ErrMissingKeycloakRealm  = errors.New("keycloak.realm is required")
	ErrMissingKeycloakClient = errors.New("keycloak.clientID is required")
	ErrMissingDataDir        = errors.New("storage.dataDir is required")
	ErrInvalidCacheType      = errors.New("auth.cache.type must be memory or redis")
)

// Validate checks the configuration for structural errors.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Keycloak.URL == "" {
		return ErrMissingKeycloakURL
	}
	if cfg.Keycloak.Realm == "" {
		return ErrMissingKeycloakRealm
	}
	if cfg.Keycloak.ClientID == "" {
		return ErrMissingKeycloakClient
	}
	if cfg.Storage.DataDir == "" {
		return ErrMissingDataDir
	}
	if cfg.Vault.Enabled && cfg.Vault.Addr == "" {
		return fmt.Errorf("vault.addr is required when vault is enabled")
	}
	if cfg.Auth.Cache.Enabled {
		switch cfg.Auth.Cache.Type {
		case CacheTypeMemory, CacheTypeRedis, "":
		default:
			return ErrInvalidCacheType
		}
		if cfg.Auth.Cache.Type == CacheTypeRedis && cfg.Auth.Cache.Redis.Addr == "" {
			return fmt.Errorf("auth.cache.redis.addr is required for redis cache")
		}
	}
	return nil
}
