package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movieflix/internal/config"
	"github.com/iliyamo/movieflix/internal/logger"
	"github.com/iliyamo/movieflix/internal/session"
	"github.com/iliyamo/movieflix/internal/utils"
)

const testSecret = "middleware-secret"

func whoami(c echo.Context) error {
	id, ok := UserID(c)
	if !ok {
		return c.String(http.StatusTeapot, "no user")
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id})
}

func TestSessionAuth(t *testing.T) {
	store := session.NewMemoryStore()
	e := echo.New()
	e.GET("/me", whoami, SessionAuth(testSecret, store, logger.Nop()))

	do := func(mod func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		if mod != nil {
			mod(req)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	tok, err := utils.NewAccessToken(testSecret, 9, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("missing token", func(t *testing.T) {
		rec := do(nil)
		if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), `"Unauthorized"`) {
			t.Errorf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("bad token", func(t *testing.T) {
		rec := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") })
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("got %d", rec.Code)
		}
	})

	t.Run("bearer", func(t *testing.T) {
		rec := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok.Token) })
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":9`) {
			t.Errorf("got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("cookie", func(t *testing.T) {
		rec := do(func(r *http.Request) { r.AddCookie(&http.Cookie{Name: SessionCookie, Value: tok.Token}) })
		if rec.Code != http.StatusOK {
			t.Errorf("got %d", rec.Code)
		}
	})

	t.Run("revoked", func(t *testing.T) {
		if err := store.Revoke(context.Background(), tok.ID, tok.Exp); err != nil {
			t.Fatal(err)
		}
		rec := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok.Token) })
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("got %d", rec.Code)
		}
	})
}

func TestTokenBucketLocal(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") }, NewTokenBucket(cfg, nil, logger.Nop()))

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		last = httptest.NewRecorder()
		e.ServeHTTP(last, req)
		codes = append(codes, last.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if last.Header().Get("Retry-After") == "" || last.Header().Get("X-RateLimit-Limit") != "2" {
		t.Errorf("headers = %v", last.Header())
	}
	if !strings.Contains(last.Body.String(), "too_many_requests") {
		t.Errorf("body = %s", last.Body.String())
	}

	t.Run("other ip has its own bucket", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("got %d", rec.Code)
		}
	})
}

func TestRequestIDAndRecover(t *testing.T) {
	e := echo.New()
	e.Use(RequestID(), RequestLogger(logger.Nop()), Recover(logger.Nop()))
	e.GET("/boom", func(c echo.Context) error { panic("kaboom") })
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, RequestIDOf(c)) })

	t.Run("generates id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))
		rid := rec.Header().Get(echo.HeaderXRequestID)
		if rid == "" || rec.Body.String() != rid {
			t.Errorf("request id header %q body %q", rid, rec.Body.String())
		}
	})

	t.Run("keeps incoming id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ok", nil)
		req.Header.Set(echo.HeaderXRequestID, "abc")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		if rec.Body.String() != "abc" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("panic becomes 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("got %d", rec.Code)
		}
	})
}
