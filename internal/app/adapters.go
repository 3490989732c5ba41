package app

import (
	"strings"

	"github.com/charlesng35/inspectd/internal/cache"
	"github.com/charlesng35/inspectd/internal/push"
	"github.com/charlesng35/inspectd/internal/storage"
)

// RedisClientConfig is the cache package view of cache.redis.
func (c CacheConfig) RedisClientConfig() cache.RedisConfig {
	r := c.Redis
	return cache.RedisConfig{
		Address:  strings.TrimSpace(r.Address),
		Username: strings.TrimSpace(r.Username),
		Password: r.Password,
		DB:       r.DB,
		TLS:      r.TLS,
		Timeout:  r.Timeout,
	}
}

// StoreConfig selects the media store. Credentials are passed untrimmed.
func (c StorageConfig) StoreConfig() storage.Config {
	return storage.Config{
		Type:      strings.ToLower(strings.TrimSpace(c.Type)),
		BasePath:  strings.TrimSpace(c.BasePath),
		BaseURL:   strings.TrimSpace(c.BaseURL),
		Bucket:    strings.TrimSpace(c.Bucket),
		Region:    strings.TrimSpace(c.Region),
		Endpoint:  strings.TrimSpace(c.Endpoint),
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
	}
}

// GatewayConfig is the Firebase project used when push is enabled.
func (c PushConfig) GatewayConfig() push.Config {
	return push.Config{
		ProjectID:       strings.TrimSpace(c.ProjectID),
		CredentialsFile: strings.TrimSpace(c.CredentialsFile),
	}
}
