// Package validation adapts go-playground/validator to echo and turns its
// errors into field/message pairs suitable for API responses.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// MinReleaseYear is the earliest accepted release year.  The upper bound is
// the current year plus MaxYearsAhead, evaluated on every call.
const (
	MinReleaseYear = 1900
	MaxYearsAhead  = 5
)

// FieldError describes one violated field.  Field uses the JSON name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is the list of every violated field of a payload.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Validator implements echo.Validator.
type Validator struct {
	v   *validator.Validate
	now func() time.Time
}

// New builds a Validator.  now supplies the clock for the release year
// bound; nil means time.Now.
func New(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	cv := &Validator{v: validator.New(validator.WithRequiredStructEnabled()), now: now}
	cv.v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	// registration only fails for empty tags or nil funcs
	_ = cv.v.RegisterValidation("notblank", notBlank)
	_ = cv.v.RegisterValidation("releaseyear", cv.releaseYear)
	return cv
}

// MaxReleaseYear returns the latest accepted release year right now.
func (cv *Validator) MaxReleaseYear() int { return cv.now().UTC().Year() + MaxYearsAhead }

// Validate checks i and returns Errors listing every violated field, or nil.
func (cv *Validator) Validate(i interface{}) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}
	out := make(Errors, 0, len(ves))
	seen := map[string]bool{}
	for _, fe := range ves {
		if seen[fe.Field()] {
			continue
		}
		seen[fe.Field()] = true
		out = append(out, FieldError{Field: fe.Field(), Message: cv.message(fe)})
	}
	return out
}

func (cv *Validator) message(fe validator.FieldError) string {
	f := fe.Field()
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required", "notblank":
		return f + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", f, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return f + " must be a valid email address"
	case "url", "http_url":
		return f + " must be a valid URL"
	case "releaseyear":
		return fmt.Sprintf("%s must be between %d and %d", f, MinReleaseYear, cv.MaxReleaseYear())
	case "min", "gte":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", f, fe.Param())
	case "max", "lte":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", f, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", f, fe.Param())
	}
	return f + " is invalid"
}

func notBlank(fl validator.FieldLevel) bool {
	v := fl.Field()
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.String {
		return true
	}
	return strings.TrimSpace(v.String()) != ""
}

func (cv *Validator) releaseYear(fl validator.FieldLevel) bool {
	v := fl.Field()
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return false
		}
		v = v.Elem()
	}
	var year int64
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		year = v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		year = int64(v.Uint())
	default:
		return false
	}
	return year >= MinReleaseYear && year <= int64(cv.MaxReleaseYear())
}
