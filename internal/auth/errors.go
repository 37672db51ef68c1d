// Package auth provides the session primitives of the API: password hashing,
// signed session tokens and the cookie attributes that carry them.
package auth

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes attached to oops errors raised by this package.
const (
	CodeHashingFailed = "AUTH_HASHING_FAILED"
	CodeCorruptHash   = "AUTH_CORRUPT_HASH"
	CodeEmptyPassword = "AUTH_EMPTY_PASSWORD"
	CodeWeakSecret    = "AUTH_WEAK_SECRET"
	CodeSigningFailed = "AUTH_SIGNING_FAILED"
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code(CodeEmptyPassword).Errorf("password cannot be empty")

// HasCode reports whether err, or any error it wraps, is an oops error
// carrying code. Joined errors are searched too.
func HasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if oopsErr, ok := oops.AsOops(err); ok && oopsErr.Code() == code {
		return true
	}
	switch u := err.(type) {
	case interface{ Unwrap() []error }:
		for _, inner := range u.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
		return false
	default:
		return HasCode(errors.Unwrap(err), code)
	}
}

// IsCorruptHash reports whether err signals a structurally invalid stored digest.
func IsCorruptHash(err error) bool {
	return HasCode(err, CodeCorruptHash)
}
