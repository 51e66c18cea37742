package config // package config loads application configuration from the environment

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Values can also come from an optional TOML file;
// environment variables always win over the file.
type Config struct {
	Env            string // application environment (e.g. "dev", "prod")
	Port           string // HTTP port to listen on
	DBDriver       string // mysql | postgres | sqlite
	DBUser         string // database username
	DBPass         string // database password (optional)
	DBHost         string // database host address
	DBPort         string // database port number
	DBName         string // database name
	DBSSLMode      string // postgres sslmode
	DBPath         string // sqlite file path (":memory:" allowed)
	JWTSecret      string // secret used to sign access tokens
	AccessTTLMin   int    // access token time-to-live in minutes
	RefreshTTLDays int    // refresh token time-to-live in days
	BcryptCost     int    // bcrypt cost for password hashing
	CookieSecure   bool   // mark the session cookie Secure
	PageSize       int    // default entries page size
	MaxPageSize    int    // upper bound for the limit query parameter
	TokenSweepSpec string // cron spec for the refresh token sweeper

	Redis     RedisConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
}

// fileConfig mirrors the optional TOML file.  Every key maps onto the
// environment variable of the same meaning.
type fileConfig struct {
	App struct {
		Env          string `toml:"env"`
		Port         string `toml:"port"`
		JWTSecret    string `toml:"jwt_secret"`
		CookieSecure *bool  `toml:"cookie_secure"`
	} `toml:"app"`
	Database struct {
		Driver   string `toml:"driver"`
		User     string `toml:"user"`
		Password string `toml:"password"`
		Host     string `toml:"host"`
		Port     string `toml:"port"`
		Name     string `toml:"name"`
		SSLMode  string `toml:"sslmode"`
		Path     string `toml:"path"`
	} `toml:"database"`
	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       *int   `toml:"db"`
	} `toml:"redis"`
	Events struct {
		Backend      string   `toml:"backend"`
		RabbitMQURL  string   `toml:"rabbitmq_url"`
		KafkaBrokers []string `toml:"kafka_brokers"`
		KafkaTopic   string   `toml:"kafka_topic"`
	} `toml:"events"`
}

// ErrInvalidConfig is returned (wrapped) when required keys are missing or
// values cannot be parsed.
var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads configuration values and returns a Config.  A .env file in the
// working directory is loaded first when present.  path names an optional
// TOML file; an empty path skips it.  Missing required values and
// unparsable numbers are collected and reported together.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // a missing .env is fine, real env vars still apply

	l := &loader{file: map[string]string{}}
	if path != "" {
		if err := l.readFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg := Config{
		Env:            l.envStr("APP_ENV", "dev"),
		Port:           l.envStr("APP_PORT", "8080"),
		DBDriver:       strings.ToLower(l.envStr("DB_DRIVER", "mysql")),
		DBUser:         l.envStr("DB_USER", ""),
		DBPass:         l.envStr("DB_PASS", ""),
		DBHost:         l.envStr("DB_HOST", "localhost"),
		DBPort:         l.envStr("DB_PORT", ""),
		DBName:         l.envStr("DB_NAME", "movieflix"),
		DBSSLMode:      l.envStr("DB_SSLMODE", "disable"),
		DBPath:         l.envStr("DB_PATH", "movieflix.db"),
		JWTSecret:      l.must("JWT_SECRET"),
		AccessTTLMin:   l.envInt("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTTLDays: l.envInt("REFRESH_TOKEN_TTL_DAYS", 30),
		BcryptCost:     l.envInt("BCRYPT_COST", 10),
		CookieSecure:   l.envBool("COOKIE_SECURE", false),
		PageSize:       l.envInt("ENTRIES_PAGE_SIZE", 20),
		MaxPageSize:    l.envInt("ENTRIES_MAX_PAGE_SIZE", 100),
		TokenSweepSpec: l.envStr("TOKEN_SWEEP_SPEC", "@hourly"),
	}
	switch cfg.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		l.invalid = append(l.invalid, "DB_DRIVER")
	}
	if cfg.DBDriver != "sqlite" && cfg.DBUser == "" {
		l.missing = append(l.missing, "DB_USER")
	}
	if cfg.PageSize < 1 {
		cfg.PageSize = 20
	}
	if cfg.MaxPageSize < cfg.PageSize {
		cfg.MaxPageSize = cfg.PageSize
	}
	cfg.Redis = loadRedis(l)
	cfg.RateLimit = loadRateLimit(l)
	cfg.Events = loadEvents(l)

	if err := l.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsProd reports whether the service runs in the production environment.
func (c Config) IsProd() bool { return c.Env == "prod" || c.Env == "production" }

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL returns the refresh token lifetime.
func (c Config) RefreshTTL() time.Duration { return time.Duration(c.RefreshTTLDays) * 24 * time.Hour }

// loader resolves keys from the environment first and the TOML file second.
type loader struct {
	file    map[string]string
	missing []string
	invalid []string
}

func (l *loader) readFile(path string) error {
	var fc fileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	set := func(key, v string) {
		if v != "" {
			l.file[key] = v
		}
	}
	set("APP_ENV", fc.App.Env)
	set("APP_PORT", fc.App.Port)
	set("JWT_SECRET", fc.App.JWTSecret)
	if fc.App.CookieSecure != nil {
		set("COOKIE_SECURE", strconv.FormatBool(*fc.App.CookieSecure))
	}
	set("DB_DRIVER", fc.Database.Driver)
	set("DB_USER", fc.Database.User)
	set("DB_PASS", fc.Database.Password)
	set("DB_HOST", fc.Database.Host)
	set("DB_PORT", fc.Database.Port)
	set("DB_NAME", fc.Database.Name)
	set("DB_SSLMODE", fc.Database.SSLMode)
	set("DB_PATH", fc.Database.Path)
	set("REDIS_ADDR", fc.Redis.Addr)
	set("REDIS_PASSWORD", fc.Redis.Password)
	if fc.Redis.DB != nil {
		set("REDIS_DB", strconv.Itoa(*fc.Redis.DB))
	}
	set("EVENTS_BACKEND", fc.Events.Backend)
	set("RABBITMQ_URL", fc.Events.RabbitMQURL)
	set("KAFKA_BROKERS", strings.Join(fc.Events.KafkaBrokers, ","))
	set("KAFKA_TOPIC", fc.Events.KafkaTopic)
	return nil
}

func (l *loader) lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, true
	}
	v, ok := l.file[key]
	return v, ok && v != ""
}

// must retrieves the value of a required key and records it as missing
// when unset or empty.
func (l *loader) must(key string) string {
	v, ok := l.lookup(key)
	if !ok {
		l.missing = append(l.missing, key)
	}
	return v
}

func (l *loader) envStr(key, def string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return def
}

func (l *loader) envInt(key string, def int) int {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		l.invalid = append(l.invalid, key)
		return def
	}
	return n
}

func (l *loader) envBool(key string, def bool) bool {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	l.invalid = append(l.invalid, key)
	return def
}

func (l *loader) envDur(key string, def time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		l.invalid = append(l.invalid, key)
		return def
	}
	return d
}

func (l *loader) envList(key string) []string {
	v, ok := l.lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (l *loader) err() error {
	var parts []string
	if len(l.missing) > 0 {
		parts = append(parts, "missing "+strings.Join(l.missing, ", "))
	}
	if len(l.invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(l.invalid, ", "))
	}
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}
