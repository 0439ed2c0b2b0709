package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware. When
// Enabled is false or no Redis client is configured, caching is disabled.
// KeyStrategy decides which parts of the request form the cache key.
type CacheConfig struct {
	Enabled      bool          `envconfig:"ENABLED" default:"true"`
	Methods      []string      `envconfig:"METHODS" default:"GET"`
	TTL          time.Duration `envconfig:"TTL" default:"30s"`
	KeyStrategy  string        `envconfig:"KEY_STRATEGY" default:"route_query"`
	Prefix       string        `envconfig:"PREFIX" default:"cache"`
	MaxBodyBytes int           `envconfig:"MAX_BODY_BYTES" default:"1048576"`

	methods map[string]bool
}

// Caches reports whether responses to method may be cached.
func (c CacheConfig) Caches(method string) bool {
	if c.methods == nil {
		return strings.EqualFold(method, "GET")
	}
	return c.methods[strings.ToUpper(method)]
}

func (c *CacheConfig) normalize() {
	c.methods = make(map[string]bool, len(c.Methods))
	for _, m := range c.Methods {
		if m = strings.TrimSpace(strings.ToUpper(m)); m != "" {
			c.methods[m] = true
		}
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
}
