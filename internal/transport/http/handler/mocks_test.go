package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-file-vault/internal/application/auth"
	fileapp "github.com/go-file-vault/internal/application/file"
	"github.com/go-file-vault/internal/application/session"
	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/transport/http/middleware"
	"github.com/stretchr/testify/mock"
)

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockSessionSvc struct{ mock.Mock }

func (m *mockSessionSvc) Login(ctx context.Context, req session.LoginRequest) (*session.LoginResult, error) {
	args := m.Called(ctx, req)
	if res, _ := args.Get(0).(*session.LoginResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockSessionSvc) Authenticate(ctx context.Context, token string) (*domain.Identity, error) {
	args := m.Called(ctx, token)
	if id, _ := args.Get(0).(*domain.Identity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockRecoverySvc struct{ mock.Mock }

func (m *mockRecoverySvc) RequestOTP(ctx context.Context, req auth.ForgotPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRecoverySvc) VerifyOTP(ctx context.Context, req auth.VerifyOTPRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockRecoverySvc) ResetPassword(ctx context.Context, req auth.ResetPasswordRequest) error {
	return m.Called(ctx, req).Error(0)
}

// mockFileSvc records the uploaded bytes so tests can assert on what reached the service.
type mockFileSvc struct {
	mock.Mock
	uploaded []byte
}

func (m *mockFileSvc) Upload(ctx context.Context, owner domain.Identity, input fileapp.UploadInput) (*domain.File, error) {
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, input.Reader)
	m.uploaded = buf.Bytes()
	input.Reader = nil
	args := m.Called(ctx, owner, input)
	if f, _ := args.Get(0).(*domain.File); f != nil {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFileSvc) List(ctx context.Context, owner domain.Identity) ([]domain.File, error) {
	args := m.Called(ctx, owner)
	files, _ := args.Get(0).([]domain.File)
	return files, args.Error(1)
}

func (m *mockFileSvc) Download(ctx context.Context, owner domain.Identity, fileID string) (io.ReadCloser, *domain.File, error) {
	args := m.Called(ctx, owner, fileID)
	rc, _ := args.Get(0).(io.ReadCloser)
	f, _ := args.Get(1).(*domain.File)
	return rc, f, args.Error(2)
}

func (m *mockFileSvc) Delete(ctx context.Context, owner domain.Identity, fileID string) error {
	return m.Called(ctx, owner, fileID).Error(0)
}

func (m *mockFileSvc) Info(ctx context.Context, owner domain.Identity, fileID string) (*domain.File, error) {
	args := m.Called(ctx, owner, fileID)
	if f, _ := args.Get(0).(*domain.File); f != nil {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

var alice = domain.Identity{UserID: "01HUSERALICE", Email: "alice@example.com"}

// asUser injects identity the way the auth middleware does.
func asUser(identity domain.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), identity)))
		})
	}
}

func authRouter(users *mockUserSvc, sessions *mockSessionSvc, recovery *mockRecoverySvc) http.Handler {
	h := NewAuthHandler(users, sessions, recovery)
	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/forgot-password", h.ForgotPassword)
	r.Post("/auth/verify-otp", h.VerifyOTP)
	r.Post("/auth/reset-password", h.ResetPassword)
	r.With(asUser(alice)).Get("/auth/verify", h.Verify)
	return r
}

func fileRouter(svc *mockFileSvc, maxSize int64) http.Handler {
	h := NewFileHandler(svc, maxSize)
	r := chi.NewRouter()
	r.Route("/files", func(r chi.Router) {
		r.Use(asUser(alice))
		r.Post("/upload", h.Upload)
		r.Get("/list", h.List)
		r.Get("/download/{id}", h.Download)
		r.Delete("/delete/{id}", h.Delete)
		r.Get("/info/{id}", h.Info)
	})
	return r
}
