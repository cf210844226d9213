package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrBadRequest      = errors.New("bad request")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Specific failures. Each one wraps exactly one category above so callers can test
// either the precise cause or the category with errors.Is.
var (
	ErrDuplicateEmail      = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrWeakPassword        = fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, ErrBadRequest)
	ErrInvalidCredentials  = fmt.Errorf("invalid credentials: %w", ErrUnauthorized)
	ErrInvalidToken        = fmt.Errorf("invalid or expired token: %w", ErrUnauthorized)
	ErrInvalidOTP          = fmt.Errorf("invalid or expired OTP: %w", ErrBadRequest)
	ErrUserNotFound        = fmt.Errorf("user not found: %w", ErrNotFound)
	ErrFileNotFound        = fmt.Errorf("file not found: %w", ErrNotFound)
	ErrFileTooLarge        = fmt.Errorf("file exceeds upload limit: %w", ErrPayloadTooLarge)
	ErrMetadataWriteFailed = errors.New("failed to record file metadata")
)
