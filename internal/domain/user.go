package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Password length bounds. bcrypt ignores everything past 72 bytes, so longer inputs are refused.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

// User is a registered account. The OTP fields carry the single active password
// recovery challenge; both are nil when no challenge is outstanding.
type User struct {
	UserID       string    `json:"id" dynamodbav:"user_id"`
	Email        string    `json:"email" dynamodbav:"email"`
	Username     string    `json:"username" dynamodbav:"username"`
	PasswordHash string    `json:"-" dynamodbav:"password_hash"`
	OTPCode      *string   `json:"-" dynamodbav:"otp_code,omitempty"`
	OTPExpiresAt *int64    `json:"-" dynamodbav:"otp_expires_at,omitempty"` // epoch millis
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}

// OTPExpired reports whether the outstanding challenge (if any) is no longer usable at now.
// A challenge is usable up to and including its expiry instant.
func (u *User) OTPExpired(now time.Time) bool {
	if u.OTPCode == nil || u.OTPExpiresAt == nil {
		return true
	}
	return now.UnixMilli() > *u.OTPExpiresAt
}

type CreateUserRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Username        string `json:"username" validate:"required,max=64"`
	Password        string `json:"password" validate:"required,max=72"`
	ConfirmPassword string `json:"confirmPassword"`
}

// CheckPassword applies the password acceptance policy used at registration and reset.
func CheckPassword(p string) error {
	if utf8.RuneCountInString(p) < MinPasswordLength {
		return ErrWeakPassword
	}
	if len(p) > MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes: %w", MaxPasswordBytes, ErrBadRequest)
	}
	return nil
}

// NormalizeEmail is applied before every lookup and insert so addresses compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
