// Package config loads server configuration from a YAML file and
// AUTHPIPE_-prefixed environment variables, environment winning.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Issuer        string              `koanf:"issuer"`
	Authenticator AuthenticatorConfig `koanf:"authenticator"`
	Degraded      DegradedConfig      `koanf:"degraded"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// AuthenticatorConfig selects how bearer tokens are validated.
type AuthenticatorConfig struct {
	// Mode is one of local, store, introspection.
	Mode string `koanf:"mode"`

	Store         StoreConfig         `koanf:"store"`
	Introspection IntrospectionConfig `koanf:"introspection"`
}

type StoreConfig struct {
	// DSN is the SQLite data source name for the reference-token table.
	DSN string `koanf:"dsn"`
}

type IntrospectionConfig struct {
	Endpoint     string `koanf:"endpoint"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	Audience     string `koanf:"audience"`
}

// DegradedConfig describes the fabricated default identity used when no
// backing store is available.
type DegradedConfig struct {
	Enabled   bool     `koanf:"enabled"`
	Subject   string   `koanf:"subject"`
	Name      string   `koanf:"name"`
	Scopes    []string `koanf:"scopes"`
	Audiences []string `koanf:"audiences"`
}

// Load reads configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("AUTHPIPE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "AUTHPIPE_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("issuer") {
		k.Set("issuer", "http://localhost:8080")
	}
	if !k.Exists("authenticator.mode") {
		k.Set("authenticator.mode", "local")
	}
	if !k.Exists("degraded.subject") {
		k.Set("degraded.subject", "default-user")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	switch cfg.Authenticator.Mode {
	case "local", "store", "introspection":
	default:
		return nil, fmt.Errorf("unknown authenticator mode %q", cfg.Authenticator.Mode)
	}

	return &cfg, nil
}
