package config

import "time"

// RateLimitConfig configures the token bucket applied to the /api routes.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	KeyStrategy    string
	Prefix         string
	Debug          bool
}

func loadRateLimit(l *loader) RateLimitConfig {
	def := RateLimitConfig{
		Enabled:        l.envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       l.envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   l.envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: l.envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            l.envDur("RATE_LIMIT_TTL", 10*time.Minute),
		KeyStrategy:    l.envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user"),
		Prefix:         l.envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          l.envBool("RATE_LIMIT_DEBUG", false),
	}
	if b := l.envInt("RATE_LIMIT_BURST", -1); b > 0 {
		def.Capacity = b
	}
	if every := l.envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
		def.RefillTokens = 1
		def.RefillInterval = every
	}
	if def.Capacity < 1 {
		def.Capacity = 1
	}
	if def.RefillTokens < 1 {
		def.RefillTokens = 1
	}
	if def.RefillInterval <= 0 {
		def.RefillInterval = time.Second
	}
	minTTL := 5 * def.RefillInterval
	if def.TTL < minTTL {
		def.TTL = minTTL
	}
	return def
}
