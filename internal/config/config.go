// Package config defines the typed configuration object the core consumes.
// How it is loaded (file format, flags, environment) is a collaborator
// concern per spec §6; this file stays a single small loader in the style
// of the teacher's server/config.go and the db-bouncer pack repo's
// internal/config package.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PoolConfig bounds the connection pool (§4.1, §3 Pool invariants).
type PoolConfig struct {
	Min            int           `yaml:"min"`
	Max            int           `yaml:"max"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	Charset        string        `yaml:"charset"`
	TZ             string        `yaml:"tz"`
}

// AuthConfig carries the OAuth 2.0 resource-server/auth-server coordinates
// (§4.6, §6).
type AuthConfig struct {
	Resource              string        `yaml:"resource"`
	AuthorizationServers  []string      `yaml:"authorization_servers"`
	ScopesSupported       []string      `yaml:"scopes_supported"`
	JWKSCacheTTL          time.Duration `yaml:"jwks_cache_ttl"`
	DiscoveryCacheTTL     time.Duration `yaml:"discovery_cache_ttl"`
	DiscoveryTimeout      time.Duration `yaml:"discovery_timeout"`
	ClockTolerance        time.Duration `yaml:"clock_tolerance"`
	AllowedAlgorithms     []string      `yaml:"allowed_algorithms"`
	ResourceDocumentation string        `yaml:"resource_documentation"`
}

// RateLimitConfig bounds per-caller request rate (ambient policy concern,
// adapted from the teacher's RateLimiterConfig).
type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         float64       `yaml:"burst_size"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// Config is the single typed object the core consumes.
type Config struct {
	MySQLDSN        string           `yaml:"mysql_dsn"`
	Pool            PoolConfig       `yaml:"pool"`
	Auth            AuthConfig       `yaml:"auth"`
	RateLimit       RateLimitConfig  `yaml:"rate_limit"`
	ListenAddr      string           `yaml:"listen_addr"`
	SchemaCacheTTL  time.Duration    `yaml:"schema_cache_ttl"`
}

// Default returns a configuration with the same defaults the teacher's
// ServerConfig/PoolConfig applied, adjusted to this spec's bounds.
func Default() Config {
	return Config{
		Pool: PoolConfig{
			Min:            2,
			Max:            20,
			AcquireTimeout: 10 * time.Second,
			IdleTimeout:    5 * time.Minute,
			Charset:        "utf8mb4",
			TZ:             "UTC",
		},
		Auth: AuthConfig{
			JWKSCacheTTL:      1 * time.Hour,
			DiscoveryCacheTTL: 1 * time.Hour,
			DiscoveryTimeout:  10 * time.Second,
			ClockTolerance:    60 * time.Second,
			AllowedAlgorithms: []string{"RS256", "ES256"},
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 10,
			BurstSize:         20,
			CleanupInterval:   5 * time.Minute,
		},
		ListenAddr:     ":8080",
		SchemaCacheTTL: 0, // not read: the schema cache has no TTL and is cleared only by explicit invalidation (§4.5)
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
