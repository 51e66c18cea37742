package config

// Redis backs distributed rate limiting and access token revocation.  When
// the server is unreachable at startup NewRedisClient returns nil and callers
// degrade to in-process implementations.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds connection settings.  REDIS_HOST and REDIS_PORT take
// precedence over REDIS_ADDR when both are set.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TLS      bool
}

func loadRedis(l *loader) RedisConfig {
	addr := l.envStr("REDIS_ADDR", "localhost:6379")
	host, hostOK := l.lookup("REDIS_HOST")
	port, portOK := l.lookup("REDIS_PORT")
	if hostOK && portOK {
		addr = host + ":" + port
	}
	return RedisConfig{
		Enabled:  l.envBool("REDIS_ENABLED", true),
		Addr:     addr,
		Password: l.envStr("REDIS_PASSWORD", ""),
		DB:       l.envInt("REDIS_DB", 0),
		TLS:      l.envBool("REDIS_TLS", false),
	}
}

// NewRedisClient instantiates a Redis client and pings it with a short
// timeout.  The returned client is nil when Redis is disabled or the ping
// fails.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	var tlsConf *tls.Config
	if cfg.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      cfg.Addr,
		Password:  cfg.Password,
		DB:        cfg.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil
	}
	return client
}
