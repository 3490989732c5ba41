package app

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	jwtSecretBytes = 48

	fallbackUploadConcurrency = 4
	fallbackSweepBatchSize    = 500
	fallbackSweepInterval     = time.Hour
)

// ApplyRuntimeDefaults fills what a config file may leave unusable. A missing
// JWT secret is generated; the returned set names generated keys so callers
// can warn without logging values. Non-positive worker sizes and intervals
// fall back to their defaults.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	generated := make(map[string]bool)
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := randomHex(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if cfg.Storage.UploadConcurrency <= 0 {
		cfg.Storage.UploadConcurrency = fallbackUploadConcurrency
	}
	if cfg.Sweeper.BatchSize <= 0 {
		cfg.Sweeper.BatchSize = fallbackSweepBatchSize
	}
	if cfg.Sweeper.IntervalMS <= 0 {
		cfg.Sweeper.IntervalMS = fallbackSweepInterval.Milliseconds()
	}

	return generated, nil
}

func randomHex(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
