package handler // declare the package name; contains HTTP handlers

import (
    "context"  // bounded database ping
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
    "gorm.io/gorm"
)

// Health is a liveness endpoint used by load balancers and monitoring
// systems to verify that the process is running.  It returns a plain text
// "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready returns a readiness handler that also pings the database.  It
// answers 503 while the database is unreachable.
func Ready(db *gorm.DB) echo.HandlerFunc {
    return func(c echo.Context) error {
        sqlDB, err := db.DB()
        if err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := sqlDB.PingContext(ctx); err != nil {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
        }
        return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
    }
}
