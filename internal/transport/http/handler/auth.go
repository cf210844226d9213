package handler

import (
	"net/http"

	"github.com/go-file-vault/internal/application/auth"
	"github.com/go-file-vault/internal/application/session"
	"github.com/go-file-vault/internal/application/user"
	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/transport/http/middleware"
)

// AuthHandler serves registration, login, token verification and OTP password recovery.
type AuthHandler struct {
	users    user.Service
	sessions session.Service
	recovery auth.Service
}

func NewAuthHandler(users user.Service, sessions session.Service, recovery auth.Service) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions, recovery: recovery}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.users.Register(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterEnvelope{Message: "User created successfully", UserID: u.UserID})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req session.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Message:   "Login successful",
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt.Unix(),
		User:      toSafeUser(res.User),
	})
}

// Verify echoes the identity carried by an already-authenticated request.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, KindAuthentication, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, VerifyTokenEnvelope{Valid: true, User: identity})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ForgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.recovery.RequestOTP(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent to your email"})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.recovery.VerifyOTP(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, VerifyOTPEnvelope{Message: "OTP verified", Verified: true})
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req auth.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.recovery.ResetPassword(r.Context(), req); err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Password reset successfully"})
}
