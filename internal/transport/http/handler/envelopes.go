package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/pkg/validate"
)

// Error kinds reported in ErrorEnvelope.Kind.
const (
	KindValidation      = "validation_error"
	KindConflict        = "conflict"
	KindAuthentication  = "authentication_error"
	KindNotFound        = "not_found"
	KindPayloadTooLarge = "payload_too_large"
	KindStorage         = "storage_error"
)

// ErrorEnvelope is the single error shape returned by every endpoint.
type ErrorEnvelope struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// MessageEnvelope is the generic success wrapper.
type MessageEnvelope struct {
	Message string `json:"message"`
}

// SafeUser is the public projection of a user; credentials and OTP state never leave the server.
type SafeUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

type RegisterEnvelope struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

type LoginEnvelope struct {
	Message   string   `json:"message"`
	Token     string   `json:"token"`
	ExpiresAt int64    `json:"expiresAt"` // epoch seconds
	User      SafeUser `json:"user"`
}

type VerifyTokenEnvelope struct {
	Valid bool            `json:"valid"`
	User  domain.Identity `json:"user"`
}

type VerifyOTPEnvelope struct {
	Message  string `json:"message"`
	Verified bool   `json:"verified"`
}

type UploadEnvelope struct {
	Message string       `json:"message"`
	FileID  string       `json:"fileId"`
	File    *domain.File `json:"file"`
}

type FileListEnvelope struct {
	Files []domain.File `json:"files"`
}

type FileEnvelope struct {
	File *domain.File `json:"file"`
}

func toSafeUser(u *domain.User) SafeUser {
	return SafeUser{ID: u.UserID, Email: u.Email, Username: u.Username}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, ErrorEnvelope{Kind: kind, Message: msg})
}

// httpError maps a service error to its status and kind. Anything outside the domain
// categories is logged and reported with a generic message.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusBadRequest, KindConflict, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, KindAuthentication, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, KindNotFound, err.Error())
	case errors.Is(err, domain.ErrPayloadTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, KindPayloadTooLarge, err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, KindStorage, "internal storage error")
	}
}

// decodeJSON reads a JSON body and validates it with its validate tags.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, KindValidation, err.Error())
		return false
	}
	return true
}
