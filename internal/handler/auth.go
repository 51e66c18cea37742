package handler

import (
    "context"  // provides context with cancellation for DB calls
    "errors"   // sentinel error matching
    "net/http" // HTTP status codes and primitives
    "strings"  // string manipulation utilities
    "time"     // timeouts for DB calls

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing
    "go.uber.org/zap"

    "github.com/iliyamo/movieflix/internal/config"     // app configuration
    "github.com/iliyamo/movieflix/internal/middleware" // session cookie name and context helpers
    "github.com/iliyamo/movieflix/internal/model"
    "github.com/iliyamo/movieflix/internal/repository" // DB repositories
    "github.com/iliyamo/movieflix/internal/session"    // access token revocation
    "github.com/iliyamo/movieflix/internal/utils"      // helper functions (hashing, token issuing)
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
    Cfg      config.Config
    Users    *repository.UserRepo
    Tokens   *repository.TokenRepo
    Sessions session.Store
    Log      *zap.SugaredLogger
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, s session.Store, log *zap.SugaredLogger) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Sessions: s, Log: log}
}

// ----- DTOs -----

type signUpReq struct {
    Name     string `json:"name" validate:"required,notblank,max=120"`
    Email    string `json:"email" validate:"required,email,max=255"`
    Password string `json:"password" validate:"required,min=6,max=72"`
}
type signInReq struct {
    Email      string `json:"email" validate:"required,email"`
    Password   string `json:"password" validate:"required"`
    RememberMe bool   `json:"rememberMe"`
}
type refreshReq struct {
    RefreshToken string `json:"refreshToken" validate:"required,notblank"`
}
type signOutReq struct {
    RefreshToken string `json:"refreshToken"`
}

type userPart struct {
    ID        uint64    `json:"id"`
    Name      string    `json:"name"`
    Email     string    `json:"email"`
    CreatedAt time.Time `json:"createdAt"`
}
type tokenResp struct {
    User             *userPart `json:"user,omitempty"`
    Token            string    `json:"token"`
    ExpiresAt        time.Time `json:"expiresAt"`
    RefreshToken     string    `json:"refreshToken"`
    RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func toUserPart(u *model.User) *userPart {
    return &userPart{ID: u.ID, Name: u.Name, Email: u.Email, CreatedAt: u.CreatedAt}
}

// SignUp creates an account.  It does not sign the user in.
func (h *AuthHandler) SignUp(c echo.Context) error {
    var req signUpReq
    if err := decodeJSON(c, &req); err != nil {
        return validationFailed(c, bindError(err))
    }
    req.Email = repository.NormalizeEmail(req.Email)
    if err := c.Validate(&req); err != nil {
        return validationFailed(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.Create(ctx, req.Name, req.Email, req.Password, h.Cfg.BcryptCost)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return c.JSON(http.StatusConflict, echo.Map{"error": "User already exists"})
        }
        logError(h.Log, c, err, "create user failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create user"})
    }
    return c.JSON(http.StatusCreated, echo.Map{"user": toUserPart(u)})
}

// SignIn verifies credentials and returns a new token pair.  The access
// token is mirrored into the session cookie, which only persists across
// browser restarts when rememberMe is set.
func (h *AuthHandler) SignIn(c echo.Context) error {
    var req signInReq
    if err := decodeJSON(c, &req); err != nil {
        return validationFailed(c, bindError(err))
    }
    req.Email = repository.NormalizeEmail(req.Email)
    if err := c.Validate(&req); err != nil {
        return validationFailed(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return invalidCredentials(c)
        }
        logError(h.Log, c, err, "load user failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to sign in"})
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return invalidCredentials(c)
    }
    if utils.NeedsRehash(u.PasswordHash, h.Cfg.BcryptCost) {
        h.rehash(ctx, c, u.ID, req.Password)
    }

    resp, err := h.issue(ctx, u.ID)
    if err != nil {
        logError(h.Log, c, err, "issue tokens failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to sign in"})
    }
    resp.User = toUserPart(u)
    h.setSessionCookie(c, resp.Token, resp.ExpiresAt, req.RememberMe)
    return c.JSON(http.StatusOK, resp)
}

// Refresh validates a refresh token by hash, revokes it and issues a new
// pair (rotation).  A refresh token can be used exactly once.
func (h *AuthHandler) Refresh(c echo.Context) error {
    var req refreshReq
    if err := bindBody(c, &req); err != nil {
        return validationFailed(c, err)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    newRef, err := utils.NewRefreshToken(h.Cfg.RefreshTTL())
    if err != nil {
        logError(h.Log, c, err, "issue refresh failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to refresh session"})
    }
    oldHash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))
    userID, err := h.Tokens.Rotate(ctx, oldHash, utils.HashRefreshRaw(newRef.Raw), newRef.Exp)
    if err != nil {
        if errors.Is(err, repository.ErrTokenInvalid) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid refresh token"})
        }
        logError(h.Log, c, err, "rotate refresh failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to refresh session"})
    }
    u, err := h.Users.GetByID(ctx, userID)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid refresh token"})
        }
        logError(h.Log, c, err, "load user failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to refresh session"})
    }
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, h.Cfg.AccessTTL())
    if err != nil {
        logError(h.Log, c, err, "issue access failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to refresh session"})
    }
    h.setSessionCookie(c, access.Token, access.Exp, false)
    return c.JSON(http.StatusOK, tokenResp{
        User:             toUserPart(u),
        Token:            access.Token,
        ExpiresAt:        access.Exp,
        RefreshToken:     newRef.Raw,
        RefreshExpiresAt: newRef.Exp,
    })
}

// SignOut ends the current session.  The access token id is revoked until
// the token expires.  A refreshToken in the body revokes just that token;
// without one, every refresh token of the user is revoked.
func (h *AuthHandler) SignOut(c echo.Context) error {
    uid, ok := getUserID(c)
    if !ok {
        return unauthorized(c)
    }
    var req signOutReq
    if err := decodeJSON(c, &req); err != nil {
        return validationFailed(c, bindError(err))
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    jti, exp := middleware.TokenID(c)
    if jti != "" {
        if err := h.Sessions.Revoke(ctx, jti, exp); err != nil {
            logError(h.Log, c, err, "revoke access token failed")
            return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to sign out"})
        }
    }

    var err error
    if raw := strings.TrimSpace(req.RefreshToken); raw != "" {
        err = h.Tokens.RevokeByHash(ctx, uid, utils.HashRefreshRaw(raw))
    } else {
        err = h.Tokens.RevokeAllForUser(ctx, uid)
    }
    if err != nil {
        logError(h.Log, c, err, "revoke refresh failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to sign out"})
    }

    h.clearSessionCookie(c)
    return c.NoContent(http.StatusNoContent)
}

// Session returns the profile of the signed-in user.
func (h *AuthHandler) Session(c echo.Context) error {
    uid, ok := getUserID(c)
    if !ok {
        return unauthorized(c)
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if errors.Is(err, repository.ErrUserNotFound) {
            return unauthorized(c)
        }
        logError(h.Log, c, err, "load user failed")
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load session"})
    }
    return c.JSON(http.StatusOK, echo.Map{"user": toUserPart(u)})
}

// rehash re-hashes the password with the configured cost.  Failure is
// logged and does not fail the sign-in.
func (h *AuthHandler) rehash(ctx context.Context, c echo.Context, userID uint64, password string) {
    hash, err := utils.HashPassword(password, h.Cfg.BcryptCost)
    if err == nil {
        err = h.Users.UpdatePasswordHash(ctx, userID, hash)
    }
    if err != nil && h.Log != nil {
        h.Log.Warnw("password rehash failed", append(requestFields(c), "error", err)...)
    }
}

// issue creates an access token and a stored refresh token for userID.
func (h *AuthHandler) issue(ctx context.Context, userID uint64) (tokenResp, error) {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, h.Cfg.AccessTTL())
    if err != nil {
        return tokenResp{}, err
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTL())
    if err != nil {
        return tokenResp{}, err
    }
    if err := h.Tokens.StoreRefresh(ctx, userID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
        return tokenResp{}, err
    }
    return tokenResp{
        Token:            access.Token,
        ExpiresAt:        access.Exp,
        RefreshToken:     refresh.Raw, // raw back to client
        RefreshExpiresAt: refresh.Exp,
    }, nil
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, exp time.Time, persistent bool) {
    ck := &http.Cookie{
        Name:     middleware.SessionCookie,
        Value:    token,
        Path:     "/",
        HttpOnly: true,
        Secure:   h.Cfg.CookieSecure,
        SameSite: http.SameSiteLaxMode,
    }
    if persistent {
        ck.Expires = exp
        ck.MaxAge = int(time.Until(exp).Seconds())
    }
    c.SetCookie(ck)
}

func (h *AuthHandler) clearSessionCookie(c echo.Context) {
    c.SetCookie(&http.Cookie{
        Name:     middleware.SessionCookie,
        Value:    "",
        Path:     "/",
        HttpOnly: true,
        Secure:   h.Cfg.CookieSecure,
        SameSite: http.SameSiteLaxMode,
        MaxAge:   -1,
        Expires:  time.Unix(0, 0),
    })
}

func invalidCredentials(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "Invalid email or password"})
}
