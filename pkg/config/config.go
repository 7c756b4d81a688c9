// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package config provides the YAML configuration model for the gatehouse
// server and its validation.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corvidae/gatehouse/pkg/auth"
	"github.com/corvidae/gatehouse/pkg/session"
)

// Storage backend types.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the full server configuration.
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Session SessionConfig  `yaml:"session"`
	Scripts ScriptsConfig  `yaml:"scripts"`
	Filters []FilterConfig `yaml:"authentication_filters"`
	Issuers []IssuerConfig `yaml:"upstream_issuers"`

	// Clients and Users populate the built-in directories. A deployment
	// backed by an external directory leaves these empty and swaps the
	// directory implementations in code.
	Clients []ClientConfig `yaml:"clients"`
	Users   []UserConfig   `yaml:"users"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Realm is announced in WWW-Authenticate challenges.
	Realm string `yaml:"realm"`
}

// SessionConfig selects and configures the session store.
type SessionConfig struct {
	TTL   time.Duration `yaml:"ttl"`
	Store string        `yaml:"store"`
	Redis *RedisConfig  `yaml:"redis,omitempty"`
}

// RedisConfig carries the Redis connection options.
type RedisConfig struct {
	Address      string        `yaml:"address"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	KeyPrefix    string        `yaml:"key_prefix"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ScriptsConfig governs the script-driven workflow engine.
type ScriptsConfig struct {
	Enabled    *bool  `yaml:"enabled"`
	DefaultACR string `yaml:"default_acr"`
}

// FilterConfig is one client authentication filter: a parameter name, a
// pattern over its value, and a DN template with a "{}" placeholder.
type FilterConfig struct {
	Parameter  string `yaml:"parameter"`
	Pattern    string `yaml:"pattern"`
	DNTemplate string `yaml:"dn_template"`
}

// IssuerConfig names one upstream issuer the server fetches a service
// credential from.
type IssuerConfig struct {
	Name         string   `yaml:"name"`
	TokenURL     string   `yaml:"token_url"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	Scopes       []string `yaml:"scopes"`
}

// ClientConfig is one statically registered OAuth client.
type ClientConfig struct {
	ID      string `yaml:"id"`
	Secret  string `yaml:"secret"`
	Method  string `yaml:"method"`
	DN      string `yaml:"dn,omitempty"`
	JWKSURI string `yaml:"jwks_uri,omitempty"`
}

// UserConfig is one statically registered end user.
type UserConfig struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads a YAML config file, applies defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML config, applies defaults and validates it.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Realm == "" {
		c.Server.Realm = "gatehouse"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = session.DefaultTTL
	}
	if c.Session.Store == "" {
		c.Session.Store = StoreMemory
	}
	if c.Scripts.Enabled == nil {
		enabled := true
		c.Scripts.Enabled = &enabled
	}
}

// Validate reports the first configuration error found.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case StoreMemory:
	case StoreRedis:
		if c.Session.Redis == nil || c.Session.Redis.Address == "" {
			return fmt.Errorf("session store %q requires a redis address", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown session store %q", c.Session.Store)
	}

	for i, f := range c.Filters {
		if f.Parameter == "" {
			return fmt.Errorf("authentication filter %d: parameter is required", i)
		}
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("authentication filter %d: invalid pattern: %w", i, err)
		}
		if f.DNTemplate == "" {
			return fmt.Errorf("authentication filter %d: dn_template is required", i)
		}
	}

	for i, iss := range c.Issuers {
		if iss.Name == "" || iss.TokenURL == "" || iss.ClientID == "" {
			return fmt.Errorf("upstream issuer %d: name, token_url and client_id are required", i)
		}
	}

	for i, cl := range c.Clients {
		if cl.ID == "" {
			return fmt.Errorf("client %d: id is required", i)
		}
	}
	for i, u := range c.Users {
		if u.Username == "" {
			return fmt.Errorf("user %d: username is required", i)
		}
	}
	return nil
}

// ScriptsEnabled reports whether the workflow engine may invoke scripts.
func (c *Config) ScriptsEnabled() bool {
	return c.Scripts.Enabled == nil || *c.Scripts.Enabled
}

// ListenAddr is the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// BuildFilters compiles the configured authentication filters into a chain.
// Validate must have accepted the patterns first.
func (c *Config) BuildFilters() *auth.FilterChain {
	filters := make([]auth.Filter, 0, len(c.Filters))
	for _, f := range c.Filters {
		filters = append(filters, auth.Filter{
			Param:      f.Parameter,
			Pattern:    regexp.MustCompile(f.Pattern),
			DNTemplate: f.DNTemplate,
		})
	}
	return auth.NewFilterChain(filters)
}

// RedisSessionConfig maps the YAML Redis options onto the session store's
// configuration. Only meaningful when the store is "redis".
func (c *Config) RedisSessionConfig() session.RedisConfig {
	r := c.Session.Redis
	if r == nil {
		return session.RedisConfig{}
	}
	return session.RedisConfig{
		Addr:         r.Address,
		Username:     r.Username,
		Password:     r.Password,
		DB:           r.DB,
		KeyPrefix:    r.KeyPrefix,
		DialTimeout:  r.DialTimeout,
		ReadTimeout:  r.ReadTimeout,
		WriteTimeout: r.WriteTimeout,
	}
}
