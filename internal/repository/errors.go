// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios with
// errors.Is. Database driver errors never leak through them.
package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrEntryNotFound is returned when no entry matches both the id and the
// owner.  Missing rows and rows owned by someone else are reported the same
// way so callers cannot probe for foreign ids.
var ErrEntryNotFound = errors.New("entry not found")

// ErrUserNotFound is returned when a user lookup matches nothing.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrTokenInvalid is returned for refresh tokens that are unknown, revoked
// or expired.
var ErrTokenInvalid = errors.New("refresh token invalid")

// isDuplicate reports whether err is a unique constraint violation.  GORM
// translates most drivers' errors; the string checks cover drivers that
// do not implement the translator.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
