// Package repository implements the durable stores behind the service:
// accounts, payment cards, redemption history and token state. Sentinel
// errors defined here let handlers translate storage outcomes into HTTP
// statuses without inspecting driver errors.
package repository

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a requested entity or card code does not
// exist. Handlers translate it into HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is the generic uniqueness violation. More specific variants
// below wrap it so errors.Is(err, ErrConflict) matches all of them.
var ErrConflict = errors.New("conflict")

// Specific uniqueness violations surfaced by Create operations.
var (
	ErrUsernameExists = wrapConflict("username already exists")
	ErrPhoneExists    = wrapConflict("phone already exists")
	ErrIPExists       = wrapConflict("ip already exists")
	ErrCardCodeExists = wrapConflict("card code already exists")
)

func wrapConflict(msg string) error {
	return conflictError(msg)
}

type conflictError string

func (e conflictError) Error() string { return string(e) }
func (e conflictError) Is(target error) bool {
	return target == ErrConflict
}

// isDuplicate reports whether err is a MySQL duplicate-key error (1062),
// optionally scoped to a named unique key.
func isDuplicate(err error, key string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "1062") {
		return false
	}
	return key == "" || strings.Contains(msg, key)
}
