package middleware

import (
	"bytes"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// RequestID ensures every request has a request id available in headers and
// context.  An incoming X-Request-ID header is reused.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(echo.HeaderXRequestID)
			if rid == "" {
				rid = uuid.New().String()
			}
			c.Set(ContextRequestID, rid)
			c.Response().Header().Set(echo.HeaderXRequestID, rid)
			return next(c)
		}
	}
}

type bodyLogWriter struct {
	http.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyLogWriter) Write(b []byte) (int, error) {
	if w.body != nil && w.body.Len() < 4096 {
		w.body.Write(b)
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger logs request start/finish and any error responses with
// context fields.
func RequestLogger(logger *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			blw := &bodyLogWriter{ResponseWriter: c.Response().Writer, body: &bytes.Buffer{}}
			c.Response().Writer = blw

			logger.Debugw("request started",
				"request_id", RequestIDOf(c),
				"method", req.Method,
				"path", req.URL.Path,
				"query", req.URL.RawQuery,
				"client_ip", c.RealIP(),
				"user_agent", req.UserAgent(),
			)

			err := next(c)
			if err != nil {
				c.Error(err) // commit the error response so the status is known
			}

			status := c.Response().Status
			fields := []interface{}{
				"request_id", RequestIDOf(c),
				"method", req.Method,
				"path", req.URL.Path,
				"query", req.URL.RawQuery,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"client_ip", c.RealIP(),
				"user_id", userKey(c),
			}
			switch {
			case status >= 500:
				logger.Errorw("request completed with server error", append(fields, "response", blw.body.String())...)
			case status >= 400:
				logger.Warnw("request completed with client error", append(fields, "response", blw.body.String())...)
			default:
				logger.Infow("request completed", fields...)
			}
			return nil
		}
	}
}

// Recover converts panics to 500 responses and logs stack traces with
// context.
func Recover(logger *zap.SugaredLogger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				if r == http.ErrAbortHandler {
					panic(r)
				}
				logger.Errorw("panic recovered",
					"request_id", RequestIDOf(c),
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
					"method", c.Request().Method,
					"path", c.Request().URL.Path,
					"client_ip", c.RealIP(),
				)
				if c.Response().Committed {
					return
				}
				err = c.JSON(http.StatusInternalServerError, echo.Map{
					"error":      "Internal server error",
					"request_id": RequestIDOf(c),
				})
			}()
			return next(c)
		}
	}
}
