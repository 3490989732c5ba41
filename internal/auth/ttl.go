package auth

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultSessionTTL applies when the configured TTL cannot be parsed.
const DefaultSessionTTL = 7 * 24 * time.Hour

var ttlPattern = regexp.MustCompile(`^(\d+)([smhdw])$`)

var ttlUnits = map[string]time.Duration{
	"s": time.Second,
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseSessionTTL converts strings such as "7d", "24h", "15m", "1w" or "30s"
// into a duration. Anything else, including zero, yields DefaultSessionTTL.
func ParseSessionTTL(raw string) time.Duration {
	match := ttlPattern.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
	if match == nil {
		return DefaultSessionTTL
	}
	n, err := strconv.Atoi(match[1])
	if err != nil || n <= 0 {
		return DefaultSessionTTL
	}
	return time.Duration(n) * ttlUnits[match[2]]
}
