// Package config hydrates server configuration (listen address, logging,
// rule sources, result cache, accessor backend) and the rule documents that
// populate the Rule Engine, honoring an env > file > default precedence.
// Shape grounded on the teacher's internal/config package (Loader,
// RuleBundle aggregation, fsnotify-based RulesWatcher), generalized from
// gateway endpoint/rule-forwarding definitions to collection rule documents.
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds every server-level option plus the rule documents once loaded.
type Config struct {
	Server ServerConfig `koanf:"server"`

	// Collections holds one raw rule document per collection name, as decoded
	// from YAML/JSON (spec.md §6: rule file top-level keys are collection
	// names, "$schema" reserved). Each value is handed to engine.Engine.Load
	// or engine.Engine.Set, not kept compiled here — config aggregates and
	// deduplicates source documents and drops any that fail a trial compile.
	Collections map[string]map[string]any `koanf:"-"`

	InlineCollections map[string]map[string]any `koanf:"collections"`

	// RuleSources records which files contributed collection definitions.
	RuleSources []string `koanf:"-"`
	// SkippedDefinitions captures duplicate or invalid collection documents
	// the loader intentionally dropped.
	SkippedDefinitions []DefinitionSkip `koanf:"-"`
}

// ServerConfig collects the bootstrap knobs for the gatewayctl process.
type ServerConfig struct {
	Listen   ListenConfig    `koanf:"listen"`
	Logging  LoggingConfig   `koanf:"logging"`
	Rules    RulesConfig     `koanf:"rules"`
	Report   ReportConfig    `koanf:"report"`
	Cache    ResultCacheConfig `koanf:"cache"`
	Accessor AccessorConfig  `koanf:"accessor"`
}

// ListenConfig instructs the metrics HTTP listener about bind address and port.
type ListenConfig struct {
	Address string `koanf:"address"`
	Port    int    `koanf:"port"`
}

// LoggingConfig expresses log level and format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// RulesConfig announces how collection rule documents are sourced.
type RulesConfig struct {
	RulesFolder string `koanf:"rulesFolder"`
	RulesFile   string `koanf:"rulesFile"`
}

// ReportConfig captures the explain-template sandbox root (SPEC_FULL.md §10.5).
type ReportConfig struct {
	TemplatesFolder string `koanf:"templatesFolder"`
}

// ResultCacheConfig controls the optional result-cache layer in front of Validate.
type ResultCacheConfig struct {
	Backend    string          `koanf:"backend"` // "", "memory", "redis"
	TTLSeconds int             `koanf:"ttlSeconds"`
	KeySalt    string          `koanf:"keySalt"`
	Redis      RedisCacheConfig `koanf:"redis"`
}

type RedisCacheConfig struct {
	Address  string        `koanf:"address"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TLS      RedisTLSConfig `koanf:"tls"`
}

type RedisTLSConfig struct {
	Enabled bool   `koanf:"enabled"`
	CAFile  string `koanf:"caFile"`
}

// AccessorConfig selects and configures the accessor.Port implementation the
// Entry Facade forwards matched requests to.
type AccessorConfig struct {
	Backend string      `koanf:"backend"` // "memory" or "mongo"
	Mongo   MongoConfig `koanf:"mongo"`
}

type MongoConfig struct {
	Address       string `koanf:"address"`
	Database      string `koanf:"database"`
	TimeoutSeconds int   `koanf:"timeoutSeconds"`
}

// DefinitionSkip describes a collection document the loader intentionally
// ignored because it violated invariants (for example duplicate collection
// names across files).
type DefinitionSkip struct {
	Kind    string   `json:"kind"`
	Name    string   `json:"name"`
	Reason  string   `json:"reason"`
	Sources []string `json:"sources"`
}

// Validate enforces invariants that keep the runtime predictable before serving traffic.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config: nil")
	}
	if c.Server.Listen.Port <= 0 || c.Server.Listen.Port > 65535 {
		return fmt.Errorf("config: listen.port invalid: %d", c.Server.Listen.Port)
	}
	if c.Server.Rules.RulesFolder != "" && c.Server.Rules.RulesFile != "" {
		return errors.New("config: rulesFolder and rulesFile are mutually exclusive")
	}
	if c.Server.Cache.TTLSeconds < 0 {
		return fmt.Errorf("config: server.cache.ttlSeconds invalid: %d", c.Server.Cache.TTLSeconds)
	}
	switch strings.ToLower(strings.TrimSpace(c.Server.Cache.Backend)) {
	case "", "memory":
	case "redis":
		if strings.TrimSpace(c.Server.Cache.Redis.Address) == "" {
			return errors.New("config: server.cache.redis.address required for redis backend")
		}
	default:
		return fmt.Errorf("config: server.cache.backend unsupported: %s", c.Server.Cache.Backend)
	}
	switch strings.ToLower(strings.TrimSpace(c.Server.Accessor.Backend)) {
	case "", "memory":
	case "mongo":
		if strings.TrimSpace(c.Server.Accessor.Mongo.Address) == "" {
			return errors.New("config: server.accessor.mongo.address required for mongo backend")
		}
		if strings.TrimSpace(c.Server.Accessor.Mongo.Database) == "" {
			return errors.New("config: server.accessor.mongo.database required for mongo backend")
		}
	default:
		return fmt.Errorf("config: server.accessor.backend unsupported: %s", c.Server.Accessor.Backend)
	}
	return nil
}

// DefaultConfig returns the baseline values a freshly installed gatewayctl runs with.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Listen: ListenConfig{
				Address: "0.0.0.0",
				Port:    8080,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
			},
			Rules: RulesConfig{
				RulesFolder: "./rules",
			},
			Report: ReportConfig{
				TemplatesFolder: "./templates",
			},
			Cache: ResultCacheConfig{
				Backend:    "memory",
				TTLSeconds: 30,
			},
			Accessor: AccessorConfig{
				Backend: "memory",
			},
		},
	}
}
