package config

import "testing"

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Listen.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestValidateRejectsMutuallyExclusiveRuleSources(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Rules.RulesFile = "rules.yaml"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when both rulesFolder and rulesFile set")
	}
}

func TestValidateRejectsRedisBackendWithoutAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Cache.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for redis backend without address")
	}
}

func TestValidateRejectsMongoBackendWithoutDatabase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Accessor.Backend = "mongo"
	cfg.Server.Accessor.Mongo.Address = "mongodb://localhost:27017"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for mongo backend without database")
	}
}
