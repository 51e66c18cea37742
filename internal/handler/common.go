package handler

// common.go holds the helpers shared by the entry and auth handlers: caller
// lookup, path id parsing, body binding with validation, and the logging
// helpers that attach request context to unexpected errors.

import (
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/movieflix/internal/middleware"
    "github.com/iliyamo/movieflix/internal/validation"
)

// errValidation is the top-level message of every 400 response.
const errValidation = "Validation failed"

// getUserID extracts the authenticated user's ID from the context.  The
// session middleware stores it as uint64.
func getUserID(c echo.Context) (uint64, bool) {
    return middleware.UserID(c)
}

// parseID reads the :id path parameter.  Only positive integers can name a
// row; anything else reports ok=false.
func parseID(c echo.Context) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return 0, false
    }
    return id, true
}

// decodeJSON reads the body as JSON whatever its Content-Type.  An empty
// body leaves dst untouched.
func decodeJSON(c echo.Context, dst interface{}) error {
    req := c.Request()
    if req.Body == nil || req.ContentLength == 0 {
        return nil
    }
    err := c.Echo().JSONSerializer.Deserialize(c, dst)
    if errors.Is(err, io.EOF) {
        return nil
    }
    return err
}

// bindBody decodes the JSON body into dst and validates it.  The returned
// error is always a validation.Errors when the payload is at fault.
func bindBody(c echo.Context, dst interface{}) error {
    if err := decodeJSON(c, dst); err != nil {
        return bindError(err)
    }
    return c.Validate(dst)
}

// bindError turns a body decoding failure into field details.  Type
// mismatches name the offending field; anything else is reported against
// the body as a whole.
func bindError(err error) validation.Errors {
    var he *echo.HTTPError
    if errors.As(err, &he) && he.Internal != nil {
        err = he.Internal
    }
    var ute *json.UnmarshalTypeError
    if errors.As(err, &ute) && ute.Field != "" {
        return validation.Errors{{Field: ute.Field, Message: ute.Field + " must be a " + jsonKind(ute.Type.Kind().String())}}
    }
    return validation.Errors{{Field: "body", Message: "body must be a valid JSON object"}}
}

func jsonKind(goKind string) string {
    switch goKind {
    case "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
        return "integer"
    case "float32", "float64":
        return "number"
    case "bool":
        return "boolean"
    case "ptr":
        return "valid value"
    }
    return goKind
}

// validationFailed writes the 400 response for err.  Non-validation errors
// still produce a 400 with a generic body detail.
func validationFailed(c echo.Context, err error) error {
    var ve validation.Errors
    if !errors.As(err, &ve) {
        ve = validation.Errors{{Field: "body", Message: err.Error()}}
    }
    return c.JSON(http.StatusBadRequest, echo.Map{"error": errValidation, "details": ve})
}

func requestFields(c echo.Context) []interface{} {
    uid, _ := getUserID(c)
    return []interface{}{
        "request_id", middleware.RequestIDOf(c),
        "method", c.Request().Method,
        "path", c.Request().URL.Path,
        "user_id", uid,
    }
}

// logError records an unexpected failure together with the request context.
func logError(log *zap.SugaredLogger, c echo.Context, err error, msg string, fields ...interface{}) {
    if log == nil {
        return
    }
    all := append(requestFields(c), fields...)
    log.Errorw(msg, append(all, "error", err)...)
}
