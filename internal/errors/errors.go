package errors

import (
	"errors"
	"fmt"
)

// Common error types for the gateway
var (
	// Input errors
	ErrValidation         = errors.New("validation failed")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvalidRedirectURI = errors.New("invalid redirect URI")
	ErrInvalidClient      = errors.New("invalid client")

	// Authentication errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")

	// Authorization flow errors, surfaced as invalid_grant
	ErrInvalidGrant = errors.New("invalid grant")

	// Backing store errors
	ErrStoreUnavailable = errors.New("store unavailable")

	// Protocol errors
	ErrProtocol = errors.New("protocol error")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join combines errors so that each remains matchable with Is
func Join(errs ...error) error {
	return errors.Join(errs...)
}
