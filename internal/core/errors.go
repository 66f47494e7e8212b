package core

import (
	"errors"
	"fmt"
)

var (
	// Operational errors for control flow.
	ErrNotFound            = errors.New("short code not found")
	ErrExpired             = fmt.Errorf("%w: link expired", ErrNotFound)
	ErrInvalidURL          = errors.New("invalid url: must be an absolute http or https url")
	ErrInvalidExpiry       = fmt.Errorf("invalid expiry: expiresInDays must be at most %d", MaxExpiryDays)
	ErrAliasConflict       = errors.New("custom short code already exists")
	ErrGenerationExhausted = errors.New("failed to generate a unique short code")

	// ErrDuplicateKey is returned by a Store when the short code is taken.
	ErrDuplicateKey = errors.New("duplicate short code")
)

// IsNotFound reports whether err is a not-found condition. Expired links count.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsExpired reports whether err indicates an expired link.
func IsExpired(err error) bool { return errors.Is(err, ErrExpired) }

// IsInvalidInput reports whether err rejects the caller's request.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidURL) || errors.Is(err, ErrInvalidExpiry)
}

// IsConflict reports whether err indicates a taken custom alias.
func IsConflict(err error) bool { return errors.Is(err, ErrAliasConflict) }

// IsDuplicateKey reports whether err is a store-level uniqueness violation.
func IsDuplicateKey(err error) bool { return errors.Is(err, ErrDuplicateKey) }
