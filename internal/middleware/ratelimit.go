package middleware

import (
    "context"
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "sync"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"
    "golang.org/x/time/rate"

    "github.com/iliyamo/movieflix/internal/config"
)

// bucket takes one token for key.  retry is how long until the next token
// when the request is refused.
type bucket interface {
    take(ctx context.Context, key string, now time.Time) (allowed bool, remaining int64, retry time.Duration, err error)
}

// NewTokenBucket returns a token bucket middleware.  Buckets live in Redis
// when rdb is non-nil so that every replica shares them; otherwise (and
// whenever a Redis call fails) an in-process limiter per key is used.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.SugaredLogger) echo.MiddlewareFunc {
    if !cfg.Enabled {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    local := newLocalBucket(cfg)
    var primary bucket = local
    if rdb != nil {
        primary = &redisBucket{cfg: cfg, rdb: rdb}
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            now := time.Now()

            allowed, remaining, retry, err := primary.take(c.Request().Context(), key, now)
            if err != nil {
                if cfg.Debug && log != nil {
                    log.Warnw("ratelimit: redis error, using local bucket", "key", key, "error", err)
                }
                allowed, remaining, retry, _ = local.take(c.Request().Context(), key, now)
            }

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

            if !allowed {
                secs := int(math.Ceil(retry.Seconds()))
                if secs < 0 {
                    secs = 0
                }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug && log != nil {
                    log.Infow("ratelimit: block", "key", key, "remaining", remaining, "retry_ms", retry.Milliseconds())
                }
                return c.JSON(http.StatusTooManyRequests, map[string]any{
                    "error":       "too_many_requests",
                    "message":     "rate limit exceeded",
                    "retry_after": secs,
                })
            }

            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

var limiterScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])

    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    if interval_ms > 0 and refill_tokens > 0 then
        local elapsed = math.max(0, now_ms - last_refill)
        local intervals = math.floor(elapsed / interval_ms)
        if intervals > 0 then
            tokens = math.min(capacity, tokens + (intervals * refill_tokens))
            last_refill = last_refill + (intervals * interval_ms)
        end
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        local until_next = interval_ms - (now_ms - last_refill)
        if until_next < 0 then until_next = 0 end
        retry_after_ms = until_next
    end

    redis.call('HMSET', key, 'tokens', tokens, 'last_refill_ms', last_refill, 'capacity', capacity)
    redis.call('EXPIRE', key, ttl_seconds)

    return { allowed, tokens, retry_after_ms }
`)

type redisBucket struct {
    cfg config.RateLimitConfig
    rdb *redis.Client
}

func (b *redisBucket) take(ctx context.Context, key string, now time.Time) (bool, int64, time.Duration, error) {
    args := []interface{}{
        now.UnixMilli(),
        b.cfg.Capacity,
        b.cfg.RefillTokens,
        b.cfg.RefillInterval.Milliseconds(),
        int64(b.cfg.TTL / time.Second),
    }
    vals, err := limiterScript.Run(ctx, b.rdb, []string{key}, args...).Result()
    if err != nil {
        return false, 0, 0, err
    }
    arr, ok := vals.([]interface{})
    if !ok || len(arr) != 3 {
        return false, 0, 0, fmt.Errorf("unexpected script result %#v", vals)
    }
    allowed := asInt64(arr[0]) == 1
    return allowed, asInt64(arr[1]), time.Duration(asInt64(arr[2])) * time.Millisecond, nil
}

// localBucket keeps one rate.Limiter per key.  Keys idle for longer than the
// configured TTL are dropped on the next sweep.
type localBucket struct {
    cfg       config.RateLimitConfig
    limit     rate.Limit
    mu        sync.Mutex
    limiters  map[string]*localEntry
    lastSweep time.Time
}

type localEntry struct {
    lim      *rate.Limiter
    lastSeen time.Time
}

func newLocalBucket(cfg config.RateLimitConfig) *localBucket {
    per := cfg.RefillInterval / time.Duration(cfg.RefillTokens)
    return &localBucket{
        cfg:      cfg,
        limit:    rate.Every(per),
        limiters: map[string]*localEntry{},
    }
}

func (b *localBucket) take(_ context.Context, key string, now time.Time) (bool, int64, time.Duration, error) {
    b.mu.Lock()
    if now.Sub(b.lastSweep) > b.cfg.TTL {
        for k, e := range b.limiters {
            if now.Sub(e.lastSeen) > b.cfg.TTL {
                delete(b.limiters, k)
            }
        }
        b.lastSweep = now
    }
    e, ok := b.limiters[key]
    if !ok {
        e = &localEntry{lim: rate.NewLimiter(b.limit, b.cfg.Capacity)}
        b.limiters[key] = e
    }
    e.lastSeen = now
    b.mu.Unlock()

    if e.lim.AllowN(now, 1) {
        return true, int64(e.lim.TokensAt(now)), 0, nil
    }
    r := e.lim.ReserveN(now, 1)
    retry := r.DelayFrom(now)
    r.CancelAt(now)
    return false, 0, retry, nil
}

func asInt64(v interface{}) int64 {
    switch t := v.(type) {
    case int64:
        return t
    case int32:
        return int64(t)
    case int:
        return int64(t)
    case float64:
        return int64(t)
    case float32:
        return int64(t)
    case string:
        if n, err := strconv.ParseInt(t, 10, 64); err == nil {
            return n
        }
    }
    return 0
}

func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    parts := []string{cfg.Prefix}
    strategy := strings.ToLower(cfg.KeyStrategy)
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    uid := userKey(c)
    route := c.Request().Method + " " + c.Path()

    switch strategy {
    case "ip":
        parts = append(parts, "ip", ip)
    case "user":
        parts = append(parts, "user", uid)
    case "route":
        parts = append(parts, "route", route)
    case "ip_user":
        parts = append(parts, "ip", ip, "user", uid)
    case "ip_route":
        parts = append(parts, "ip", ip, "route", route)
    case "user_route":
        parts = append(parts, "user", uid, "route", route)
    default:
        parts = append(parts, "ip", ip, "user", uid, "route", route)
    }
    return strings.Join(parts, ":")
}
