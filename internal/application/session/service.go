package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-file-vault/internal/domain"
	jwtinfra "github.com/go-file-vault/internal/infrastructure/jwt"
	"golang.org/x/crypto/bcrypt"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResult is returned on a successful login. The token expires at ExpiresAt.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*domain.Identity, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

type tokenProvider interface {
	Sign(identity domain.Identity) (string, time.Time, error)
	Verify(token string) (*jwtinfra.Claims, error)
}

type service struct {
	repo       userStore
	tokens     tokenProvider
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

type ServiceDeps struct {
	UserRepo      userStore
	TokenProvider tokenProvider
	BcryptCost    int
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{repo: deps.UserRepo, tokens: deps.TokenProvider, bcryptCost: cost}
}

// Login fails with the same error whether the email is unknown or the password is
// wrong, and spends a bcrypt comparison in both cases.
func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	u, err := s.repo.GetByEmail(ctx, domain.NormalizeEmail(req.Email))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummy(), []byte(req.Password))
		return nil, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	token, exp, err := s.tokens.Sign(domain.Identity{UserID: u.UserID, Email: u.Email})
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

func (s *service) Authenticate(_ context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrInvalidToken
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	return &domain.Identity{UserID: claims.UserID, Email: claims.Email}, nil
}

func (s *service) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), s.bcryptCost)
	})
	return s.dummyHash
}
