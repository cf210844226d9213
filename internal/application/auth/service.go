package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/infrastructure/smtp"
	"golang.org/x/crypto/bcrypt"
)

// OTP codes are six digits in [otpMin, otpMin+otpSpan).
const (
	otpMin  = 100000
	otpSpan = 900000
)

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email,max=254"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required,max=72"`
}

type Service interface {
	RequestOTP(ctx context.Context, req ForgotPasswordRequest) error
	VerifyOTP(ctx context.Context, req VerifyOTPRequest) error
	ResetPassword(ctx context.Context, req ResetPasswordRequest) error
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	SetOTP(ctx context.Context, email, code string, expiresAt time.Time) error
	ConsumeOTP(ctx context.Context, email, code, newHash string, now time.Time) error
}

type service struct {
	repo       userStore
	mailer     smtp.Mailer
	ttl        time.Duration
	bcryptCost int
	now        func() time.Time
	generate   func() (string, error)
}

type ServiceDeps struct {
	UserRepo   userStore
	Mailer     smtp.Mailer
	OTPTTL     time.Duration
	BcryptCost int
	Now        func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		repo:       deps.UserRepo,
		mailer:     deps.Mailer,
		ttl:        deps.OTPTTL,
		bcryptCost: deps.BcryptCost,
		now:        deps.Now,
		generate:   generateOTP,
	}
	if s.ttl <= 0 {
		s.ttl = 10 * time.Minute
	}
	if s.bcryptCost == 0 {
		s.bcryptCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// RequestOTP issues a fresh code, replacing any outstanding one, and mails it.
// A delivery failure is logged together with the code and does not fail the call.
func (s *service) RequestOTP(ctx context.Context, req ForgotPasswordRequest) error {
	email := domain.NormalizeEmail(req.Email)
	code, err := s.generate()
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	expiresAt := s.now().Add(s.ttl)
	if err := s.repo.SetOTP(ctx, email, code, expiresAt); err != nil {
		return err
	}

	body := fmt.Sprintf("Your password reset code is %s. It expires in %d minutes.", code, int(s.ttl.Minutes()))
	if err := s.mailer.SendEmail(email, "Password reset code", body); err != nil {
		slog.Warn("otp email delivery failed", "email", email, "otp", code, "err", err)
	}
	return nil
}

// VerifyOTP checks the code without consuming it.
func (s *service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) error {
	_, err := s.check(ctx, domain.NormalizeEmail(req.Email), req.OTP)
	return err
}

// ResetPassword re-checks the code, then swaps the password hash and clears the challenge
// atomically so a code can be spent only once.
func (s *service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	email := domain.NormalizeEmail(req.Email)
	if _, err := s.check(ctx, email, req.OTP); err != nil {
		return err
	}
	if err := domain.CheckPassword(req.NewPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.ConsumeOTP(ctx, email, req.OTP, string(hash), s.now())
}

func (s *service) check(ctx context.Context, email, code string) (*domain.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrInvalidOTP
		}
		return nil, err
	}
	if u.OTPExpired(s.now()) {
		return nil, domain.ErrInvalidOTP
	}
	if subtle.ConstantTimeCompare([]byte(*u.OTPCode), []byte(code)) != 1 {
		return nil, domain.ErrInvalidOTP
	}
	return u, nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpSpan))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
