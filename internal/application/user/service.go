package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-file-vault/internal/domain"
	"github.com/go-file-vault/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

type Service interface {
	Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
}

type service struct {
	repo       userStore
	bcryptCost int
	now        func() time.Time
}

type ServiceDeps struct {
	UserRepo   userStore
	BcryptCost int
	Now        func() time.Time // defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	cost := deps.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.UserRepo, bcryptCost: cost, now: now}
}

// Register creates an account. The plaintext password only lives long enough to be hashed.
func (s *service) Register(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email := domain.NormalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if email == "" || username == "" {
		return nil, fmt.Errorf("email and username are required: %w", domain.ErrBadRequest)
	}
	if err := domain.CheckPassword(req.Password); err != nil {
		return nil, err
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		return nil, fmt.Errorf("passwords do not match: %w", domain.ErrBadRequest)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.NewAt(now),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    now.Truncate(time.Millisecond),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}
