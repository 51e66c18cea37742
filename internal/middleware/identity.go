package middleware

// identity.go defines the context keys shared by the middleware and the
// handlers, plus helpers to read them back.  SessionAuth stores the caller's
// id as a uint64 under ContextUserID; RequestID stores the request id.

import (
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
)

const (
    ContextUserID    = "user_id"    // uint64 id of the authenticated user
    ContextTokenID   = "token_id"   // jti of the access token in use
    ContextTokenExp  = "token_exp"  // expiry of the access token in use
    ContextRequestID = "request_id" // per-request correlation id
)

// UserID returns the authenticated user's id.  ok is false when the
// request did not pass SessionAuth.
func UserID(c echo.Context) (uint64, bool) {
    switch v := c.Get(ContextUserID).(type) {
    case uint64:
        return v, v != 0
    case int:
        return uint64(v), v > 0
    case int64:
        return uint64(v), v > 0
    case float64:
        return uint64(v), v > 0
    case string:
        n, err := strconv.ParseUint(v, 10, 64)
        return n, err == nil && n != 0
    }
    return 0, false
}

// TokenID returns the jti and expiry of the access token that authenticated
// the request.
func TokenID(c echo.Context) (string, time.Time) {
    jti, _ := c.Get(ContextTokenID).(string)
    exp, _ := c.Get(ContextTokenExp).(time.Time)
    return jti, exp
}

// RequestIDOf returns the request id set by RequestID, or "".
func RequestIDOf(c echo.Context) string {
    rid, _ := c.Get(ContextRequestID).(string)
    return rid
}

// userKey renders the caller for rate limit keys and logs.  Unauthenticated
// callers are "anon".
func userKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "anon"
}
