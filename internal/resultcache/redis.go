package resultcache

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	valkey "github.com/valkey-io/valkey-go"
)

// RedisTLSConfig mirrors the teacher's decision-cache TLS knobs.
type RedisTLSConfig struct {
	Enabled bool
	CAFile  string
}

// RedisConfig configures the Valkey/Redis-backed result cache.
type RedisConfig struct {
	Address  string
	Username string
	Password string
	DB       int
	TLS      RedisTLSConfig
}

type redisCache struct {
	client valkey.Client
}

// NewRedis builds a result cache backed by a Valkey/Redis-compatible
// server, grounded on the teacher's decision-cache Redis backend. It pings
// on connect so a misconfigured backend fails fast at startup rather than
// on the first cache miss.
func NewRedis(cfg RedisConfig) (Cache, error) {
	if cfg.Address == "" {
		return nil, errors.New("resultcache: redis address required")
	}

	option := valkey.ClientOption{
		InitAddress:       []string{cfg.Address},
		Username:          cfg.Username,
		Password:          cfg.Password,
		SelectDB:          cfg.DB,
		AlwaysRESP2:       true,
		ForceSingleClient: true,
		DisableCache:      true,
	}

	if cfg.TLS.Enabled {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if cfg.TLS.CAFile != "" {
			caData, err := os.ReadFile(cfg.TLS.CAFile)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil, fmt.Errorf("resultcache: read redis ca file: %w", err)
				}
				return nil, fmt.Errorf("resultcache: read redis ca file: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(caData) {
				return nil, errors.New("resultcache: redis ca file contains no certificates")
			}
			tlsConfig.RootCAs = pool
		}
		option.TLSConfig = tlsConfig
	}

	client, err := valkey.NewClient(option)
	if err != nil {
		return nil, fmt.Errorf("resultcache: redis client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("resultcache: redis ping: %w", err)
	}

	return &redisCache{client: client}, nil
}

func (c *redisCache) Lookup(ctx context.Context, key string) (Outcome, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if errors.Is(err, valkey.Nil) {
			return Outcome{}, false, nil
		}
		return Outcome{}, false, fmt.Errorf("resultcache: redis get: %w", err)
	}
	payload, err := resp.AsBytes()
	if err != nil {
		return Outcome{}, false, fmt.Errorf("resultcache: redis get bytes: %w", err)
	}
	var outcome Outcome
	if err := json.Unmarshal(payload, &outcome); err != nil {
		return Outcome{}, false, fmt.Errorf("resultcache: redis unmarshal: %w", err)
	}
	return outcome, true, nil
}

func (c *redisCache) Store(ctx context.Context, key string, outcome Outcome) error {
	if outcome.StoredAt.IsZero() {
		outcome.StoredAt = time.Now().UTC()
	}
	if outcome.ExpiresAt.IsZero() || outcome.ExpiresAt.Before(outcome.StoredAt) {
		return errors.New("resultcache: redis entry expiry required")
	}
	ttl := time.Until(outcome.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	payload, err := json.Marshal(outcome)
	if err != nil {
		return fmt.Errorf("resultcache: redis marshal: %w", err)
	}
	cmd := c.client.B().Set().Key(key).Value(string(payload)).Px(ttl).Build()
	if err := c.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("resultcache: redis set: %w", err)
	}
	return nil
}

// InvalidateAll flushes the selected database. Result-cache entries carry
// no collection/action prefix in their key (the key is a content hash), so
// unlike the teacher's prefix-scoped decision cache, a reload invalidates
// by flushing rather than scanning for a prefix.
func (c *redisCache) InvalidateAll(ctx context.Context) error {
	if err := c.client.Do(ctx, c.client.B().Flushdb().Build()).Error(); err != nil {
		return fmt.Errorf("resultcache: redis flushdb: %w", err)
	}
	return nil
}

func (c *redisCache) Close(context.Context) error {
	c.client.Close()
	return nil
}
