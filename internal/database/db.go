package database

import (
	"context"
	"fmt"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/iliyamo/movieflix/internal/config"
	"github.com/iliyamo/movieflix/internal/model"
)

// Open connects to the configured database through GORM and verifies the
// connection.  Supported drivers are mysql, postgres and sqlite.  GORM's
// own log lines go to log; a nil log discards them.
func Open(cfg config.Config, log *zap.SugaredLogger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,                                         // duplicate keys surface as gorm.ErrDuplicatedKey
		NowFunc:        func() time.Time { return time.Now().UTC() }, // timestamps are stored in UTC
		Logger:         newGormLogger(log, cfg.IsProd()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// Pool settings
	if cfg.DBDriver == "sqlite" {
		// one connection keeps ":memory:" databases alive and avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(25)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// zapWriter feeds GORM's formatted lines into zap.  GORM only emits slow
// queries and failed statements at the levels configured below.
type zapWriter struct{ log *zap.SugaredLogger }

func (w zapWriter) Printf(format string, args ...any) { w.log.Warnf(format, args...) }

func newGormLogger(log *zap.SugaredLogger, prod bool) gormlogger.Interface {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	level := gormlogger.Warn
	if prod {
		level = gormlogger.Error
	}
	return gormlogger.New(zapWriter{log: log.Named("gorm")}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true, // misses are answered with 404, not logged
	})
}

// Migrate creates or updates the tables for users, refresh tokens and entries.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.User{}, &model.RefreshToken{}, &model.Entry{})
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(cfg config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case "mysql":
		port := cfg.DBPort
		if port == "" {
			port = "3306"
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		mc := gomysql.NewConfig()
		mc.User = cfg.DBUser
		mc.Passwd = cfg.DBPass
		mc.Net = "tcp"
		mc.Addr = cfg.DBHost + ":" + port
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Loc = time.UTC
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mysql.Open(mc.FormatDSN()), nil
	case "postgres":
		port := cfg.DBPort
		if port == "" {
			port = "5432"
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.DBHost, cfg.DBUser, cfg.DBPass, cfg.DBName, port, cfg.DBSSLMode)
		return postgres.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(cfg.DBPath), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}
