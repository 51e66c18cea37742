package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers
    "go.uber.org/zap"

    "github.com/iliyamo/movieflix/internal/session"
    "github.com/iliyamo/movieflix/internal/utils"
)

// SessionCookie is the cookie that mirrors the access token for browser
// clients.
const SessionCookie = "session_token"

// SessionAuth returns an Echo middleware that resolves the caller's session
// before any other processing.  The access token is read from the
// Authorization header ("Bearer <jwt>") and, when that is absent, from the
// session cookie.  The token must verify against secret, be unexpired and
// not revoked in store.  On success the user id, token id and expiry are
// stored in the context; otherwise the request ends with 401.
func SessionAuth(secret string, store session.Store, log *zap.SugaredLogger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw := bearerOrCookie(c)
            if raw == "" {
                return unauthorized(c)
            }
            claims, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return unauthorized(c)
            }
            revoked, err := store.IsRevoked(c.Request().Context(), claims.ID)
            if err != nil {
                // without the revocation list we cannot tell a signed-out token apart
                if log != nil {
                    log.Errorw("session store lookup failed", "request_id", RequestIDOf(c), "error", err)
                }
                return unauthorized(c)
            }
            if revoked {
                return unauthorized(c)
            }

            c.Set(ContextUserID, claims.UserID)
            c.Set(ContextTokenID, claims.ID)
            c.Set(ContextTokenExp, claims.ExpiresAt)
            return next(c)
        }
    }
}

func bearerOrCookie(c echo.Context) string {
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if strings.HasPrefix(auth, "Bearer ") {
        return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
    }
    if ck, err := c.Cookie(SessionCookie); err == nil {
        return ck.Value
    }
    return ""
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Unauthorized"})
}
