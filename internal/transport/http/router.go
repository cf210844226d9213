package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-file-vault/internal/application/auth"
	fileapp "github.com/go-file-vault/internal/application/file"
	"github.com/go-file-vault/internal/application/session"
	"github.com/go-file-vault/internal/application/user"
	"github.com/go-file-vault/internal/config"
	"github.com/go-file-vault/internal/transport/http/handler"
	appmiddleware "github.com/go-file-vault/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds the application services the router dispatches to.
type Deps struct {
	Users    user.Service
	Sessions session.Service
	Recovery auth.Service
	Files    fileapp.Service
	Store    handler.Pinger
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	if cfg.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.Sessions)
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)

	healthH := handler.NewHealthHandler(deps.Store)
	authH := handler.NewAuthHandler(deps.Users, deps.Sessions, deps.Recovery)
	fileH := handler.NewFileHandler(deps.Files, cfg.MaxUploadSize)

	// ── Public routes (no auth) ──────────────────────────────────────────
	r.Get("/health-check/{action}", healthH.Check)

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sensitiveRL.Limit)
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.Post("/forgot-password", authH.ForgotPassword)
			r.Post("/verify-otp", authH.VerifyOTP)
			r.Post("/reset-password", authH.ResetPassword)
		})
		r.With(authMw).Get("/verify", authH.Verify)
	})

	// ── Authenticated routes ─────────────────────────────────────────────
	r.Route("/files", func(r chi.Router) {
		r.Use(authMw)
		r.Post("/upload", fileH.Upload)
		r.Get("/list", fileH.List)
		r.Get("/download/{id}", fileH.Download)
		r.Delete("/delete/{id}", fileH.Delete)
		r.Get("/info/{id}", fileH.Info)
	})

	return r
}
