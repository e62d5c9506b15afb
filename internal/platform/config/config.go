// Copyright (c) 2026 Authgate. All rights reserved.
// Author: mark.kovardin@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, TokenCodec) via constructors.
  - Zero Hidden State: No global variables are used to store config.

This ensures the application is Twelve-Factor compliant by storing config in the env.
*/
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mkovardin/authgate/internal/platform/sec"
)

// # Configuration Schema

// Config holds all runtime configuration for the Authgate API server.
type Config struct {

	// Server settings
	ServiceHost string `env:"SERVICE_HOST" envDefault:"0.0.0.0"`
	ServicePort string `env:"SERVICE_PORT" envDefault:"8000"`

	// ServiceReload marks a development deployment: debug logging and
	// permissive CORS. Named after the original hot-reload switch.
	ServiceReload bool `env:"SERVICE_RELOAD" envDefault:"false"`

	// Relational Database (PostgreSQL), assembled from parts via DatabaseURL.
	DBName     string `env:"POSTGRES_DB,required"`
	DBUser     string `env:"POSTGRES_USER,required"`
	DBPassword string `env:"POSTGRES_PASSWORD,required"`
	DBHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	DBPort     int    `env:"POSTGRES_PORT"     envDefault:"5432"`

	// Echo enables SQL statement tracing on the pgx pool.
	Echo bool `env:"ECHO" envDefault:"false"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value store for volatile password-reset tokens (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// JWT signing configuration
	JWTAlg            string `env:"JWT_ALG"              envDefault:"RS256"`
	JWTTypeField      string `env:"JWT_TYPE_FIELD"       envDefault:"type"`
	JWTAccessType     string `env:"JWT_ACCESS_TYPE"      envDefault:"access"`
	JWTRefreshType    string `env:"JWT_REFRESH_TYPE"     envDefault:"refresh"`
	JWTAccessTTLMin   int    `env:"JWT_ACCESS_TTL_MIN"   envDefault:"15"`
	JWTRefreshTTLMin  int    `env:"JWT_REFRESH_TTL_MIN"  envDefault:"20160"`
	JWTPrivateKeyPath string `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./certs/private.pem"`
	JWTPublicKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"  envDefault:"./certs/public.pem"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	return cfg, nil
}

// DatabaseURL assembles a postgres:// URL from the POSTGRES_* parts.
// Credentials are URL-escaped so passwords with reserved characters survive.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(c.DBUser),
		url.QueryEscape(c.DBPassword),
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return c.ServiceHost + ":" + c.ServicePort
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.ServiceReload
}

// CodecConfig maps the JWT settings into the token codec's configuration.
func (c *Config) CodecConfig() sec.CodecConfig {
	return sec.CodecConfig{
		Algorithm:   c.JWTAlg,
		TypeField:   c.JWTTypeField,
		AccessType:  c.JWTAccessType,
		RefreshType: c.JWTRefreshType,
		AccessTTL:   time.Duration(c.JWTAccessTTLMin) * time.Minute,
		RefreshTTL:  time.Duration(c.JWTRefreshTTLMin) * time.Minute,
	}
}
