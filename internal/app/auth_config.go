package app

import (
	"strings"
	"time"

	"github.com/charlesng35/inspectd/internal/auth"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         strings.TrimSpace(c.JWT.Issuer),
		AccessTokenTTL: c.JWT.AccessTokenTTL,
	}
}

// SessionTTL is the device session lifetime used by the sweeper.
func (c AuthConfig) SessionTTL() time.Duration {
	return auth.ParseSessionTTL(c.JWT.AccessTokenTTL)
}

// BootstrapAdmin reports whether an administrator should be seeded.
func (c AuthConfig) BootstrapAdmin() bool {
	return strings.TrimSpace(c.Admin.Email) != "" && c.Admin.Password != ""
}
