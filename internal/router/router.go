package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/iliyamo/movieflix/internal/config"
	"github.com/iliyamo/movieflix/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/movieflix/internal/middleware" // session auth, logging and rate limiting
	"github.com/iliyamo/movieflix/internal/repository"
	"github.com/iliyamo/movieflix/internal/service"
	"github.com/iliyamo/movieflix/internal/session"
	"github.com/iliyamo/movieflix/internal/validation"
)

// Deps are the collaborators the HTTP layer is built from.  Redis may be
// nil; Events, Sessions and Log fall back to no-op or in-memory versions.
type Deps struct {
	Cfg      config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Sessions session.Store
	Events   service.Publisher
	Log      *zap.SugaredLogger
	Now      func() time.Time // clock for validation; nil means time.Now
}

// New builds the Echo instance with the global middleware chain, the
// validator and every route.
func New(d Deps) *echo.Echo {
	if d.Sessions == nil {
		d.Sessions = session.NewStore(d.Redis)
	}
	if d.Events == nil {
		d.Events = service.NopPublisher{}
	}
	if d.Log == nil {
		d.Log = zap.NewNop().Sugar()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.New(d.Now)
	e.Use(middleware.RequestID(), middleware.RequestLogger(d.Log), middleware.Recover(d.Log))

	users := repository.NewUserRepo(d.DB)
	tokens := repository.NewTokenRepo(d.DB)
	entries := repository.NewEntryRepo(d.DB)

	auth := middleware.SessionAuth(d.Cfg.JWTSecret, d.Sessions, d.Log)
	limit := middleware.NewTokenBucket(d.Cfg.RateLimit, d.Redis, d.Log)

	RegisterRoutes(e, d.DB)
	RegisterAuth(e, handler.NewAuthHandler(d.Cfg, users, tokens, d.Sessions, d.Log), auth, limit)
	RegisterEntries(e, handler.NewEntryHandler(entries, d.Events, d.Log, d.Cfg.PageSize, d.Cfg.MaxPageSize), auth, limit)
	return e
}

// RegisterRoutes registers routes that do not require authentication:
// liveness and readiness probes.
func RegisterRoutes(e *echo.Echo, db *gorm.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers all authentication-related routes.  sign-up,
// sign-in and refresh need no session; sign-out and session do.  The
// session check runs before the rate limiter so buckets can be keyed by
// user.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, auth, limit echo.MiddlewareFunc) {
	g := e.Group("/api/auth")
	g.POST("/sign-up", a.SignUp, limit)
	g.POST("/sign-in", a.SignIn, limit)
	g.POST("/refresh", a.Refresh, limit)

	g.POST("/sign-out", a.SignOut, auth, limit)
	g.GET("/session", a.Session, auth, limit)
}

// RegisterEntries registers the collection endpoints.  Every route requires
// a session.
func RegisterEntries(e *echo.Echo, h *handler.EntryHandler, auth, limit echo.MiddlewareFunc) {
	g := e.Group("/api/entries", auth, limit)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}
