package conf

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const maxFetchTimeoutMs = 5000

// Config application configuration structure
type Config struct {
	// Network label, informational
	Net string

	Log          LogConfig
	Server       ServerConfig
	Database     DatabaseConfig
	Verification VerificationConfig
	Points       PointsConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
}

// LogConfig logging configuration
type LogConfig struct {
	Level string // zerolog level name
}

// ServerConfig http server configuration
type ServerConfig struct {
	Port           string
	PathPrefix     string // Path prefix for reverse proxy (e.g., "/miniapp")
	SwaggerBaseUrl string // Swagger API base URL
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	Type         string // pebble, postgres
	DataDir      string // PebbleDB data directory
	Dsn          string // Postgres DSN
	MaxOpenConns int
	MaxIdleConns int
}

// VerificationConfig developer and app verification settings
type VerificationConfig struct {
	DefaultOwner      string
	FetchTimeoutMs    int
	ManifestPath      string
	IconPath          string
	ChallengePath     string
	ChallengeTTLHours int
	AllowInsecureHttp bool
	// AllowPrivateNetworks lets fetches reach loopback and private addresses
	AllowPrivateNetworks bool
}

// FetchTimeout remote fetch timeout, capped at 5s
func (v VerificationConfig) FetchTimeout() time.Duration {
	return time.Duration(v.FetchTimeoutMs) * time.Millisecond
}

// ChallengeTTL lifetime of a pending domain challenge
func (v VerificationConfig) ChallengeTTL() time.Duration {
	return time.Duration(v.ChallengeTTLHours) * time.Hour
}

// PointsConfig points ledger settings
type PointsConfig struct {
	AppSubmission int64
	QueueSize     int
}

// AuthConfig identity provider settings
type AuthConfig struct {
	JwtSecret           string
	AdminIdentities     []string // bootstrap ADMIN grants
	ModeratorIdentities []string // bootstrap MODERATOR grants
}

// RateLimitConfig per identity rate limit
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Cfg global configuration instance
var Cfg *Config

// InitConfig initialize configuration from GetYaml() and MINIAPP_* environment variables
func InitConfig() error {
	v := viper.New()
	v.SetConfigFile(GetYaml())
	v.SetEnvPrefix("MINIAPP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "read config file %s", GetYaml())
	}

	Cfg = load(v)
	return Cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("net", "mainnet")
	v.SetDefault("log.level", "info")
	v.SetDefault("server.port", "7290")
	v.SetDefault("database.type", "pebble")
	v.SetDefault("database.data_dir", "./data")
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("verification.fetch_timeout_ms", maxFetchTimeoutMs)
	v.SetDefault("verification.manifest_path", "/.well-known/farcaster.json")
	v.SetDefault("verification.icon_path", "/.well-known/icon.png")
	v.SetDefault("verification.challenge_path", "/.well-known/miniapp-verification.txt")
	v.SetDefault("verification.challenge_ttl_hours", 24)
	v.SetDefault("verification.allow_insecure_http", false)
	v.SetDefault("verification.allow_private_networks", false)
	v.SetDefault("points.app_submission", 100)
	v.SetDefault("points.queue_size", 256)
	v.SetDefault("rate_limit.requests_per_second", 5)
	v.SetDefault("rate_limit.burst", 10)
}

func load(v *viper.Viper) *Config {
	cfg := &Config{
		Net: v.GetString("net"),
		Log: LogConfig{
			Level: v.GetString("log.level"),
		},
		Server: ServerConfig{
			Port:           v.GetString("server.port"),
			PathPrefix:     strings.TrimRight(v.GetString("server.path_prefix"), "/"),
			SwaggerBaseUrl: v.GetString("server.swagger_base_url"),
		},
		Database: DatabaseConfig{
			Type:         v.GetString("database.type"),
			DataDir:      v.GetString("database.data_dir"),
			Dsn:          v.GetString("database.dsn"),
			MaxOpenConns: v.GetInt("database.max_open_conns"),
			MaxIdleConns: v.GetInt("database.max_idle_conns"),
		},
		Verification: VerificationConfig{
			DefaultOwner:         v.GetString("verification.default_owner"),
			FetchTimeoutMs:       v.GetInt("verification.fetch_timeout_ms"),
			ManifestPath:         v.GetString("verification.manifest_path"),
			IconPath:             v.GetString("verification.icon_path"),
			ChallengePath:        v.GetString("verification.challenge_path"),
			ChallengeTTLHours:    v.GetInt("verification.challenge_ttl_hours"),
			AllowInsecureHttp:    v.GetBool("verification.allow_insecure_http"),
			AllowPrivateNetworks: v.GetBool("verification.allow_private_networks"),
		},
		Points: PointsConfig{
			AppSubmission: v.GetInt64("points.app_submission"),
			QueueSize:     v.GetInt("points.queue_size"),
		},
		Auth: AuthConfig{
			JwtSecret:           v.GetString("auth.jwt_secret"),
			AdminIdentities:     v.GetStringSlice("auth.admin_identities"),
			ModeratorIdentities: v.GetStringSlice("auth.moderator_identities"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rate_limit.requests_per_second"),
			Burst:             v.GetInt("rate_limit.burst"),
		},
	}

	if cfg.Server.SwaggerBaseUrl == "" {
		cfg.Server.SwaggerBaseUrl = "localhost:" + cfg.Server.Port
	}
	if cfg.Verification.FetchTimeoutMs <= 0 || cfg.Verification.FetchTimeoutMs > maxFetchTimeoutMs {
		cfg.Verification.FetchTimeoutMs = maxFetchTimeoutMs
	}
	if cfg.Verification.ChallengeTTLHours <= 0 {
		cfg.Verification.ChallengeTTLHours = 24
	}
	return cfg
}

func (c *Config) validate() error {
	if c.Auth.JwtSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Database.Type {
	case "pebble":
		if c.Database.DataDir == "" {
			return errors.New("database.data_dir is required for pebble")
		}
	case "postgres":
		if c.Database.Dsn == "" {
			return errors.New("database.dsn is required for postgres")
		}
	default:
		return errors.Errorf("unsupported database.type %q", c.Database.Type)
	}
	return nil
}
