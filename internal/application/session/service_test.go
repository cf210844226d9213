package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-file-vault/internal/domain"
	jwtinfra "github.com/go-file-vault/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

type mockUserStore struct{ mock.Mock }

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newService(t *testing.T, us *mockUserStore, c *clock) Service {
	t.Helper()
	p, err := jwtinfra.NewProvider([]byte("test-secret"), 24*time.Hour, jwtinfra.WithClock(c.Now))
	require.NoError(t, err)
	return NewService(ServiceDeps{UserRepo: us, TokenProvider: p, BcryptCost: bcrypt.MinCost})
}

func storedUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{UserID: "u1", Email: "alice@example.com", Username: "alice", PasswordHash: string(hash)}
}

// --- Login tests ---

func TestLogin_Success(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(storedUser(t, "password123"), nil)
	svc := newService(t, us, &clock{now: epoch})

	res, err := svc.Login(context.Background(), LoginRequest{Email: "Alice@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, epoch.Add(24*time.Hour), res.ExpiresAt)
	assert.Equal(t, "u1", res.User.UserID)
}

func TestLogin_WrongPasswordAndUnknownEmailAreIndistinguishable(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, "alice@example.com").Return(storedUser(t, "password123"), nil)
	us.On("GetByEmail", mock.Anything, "nobody@example.com").Return(nil, domain.ErrUserNotFound)
	svc := newService(t, us, &clock{now: epoch})

	_, errWrong := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "nope-nope"})
	_, errUnknown := svc.Login(context.Background(), LoginRequest{Email: "nobody@example.com", Password: "password123"})

	assert.ErrorIs(t, errWrong, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, domain.ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestLogin_StoreFailureIsNotMaskedAsCredentials(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	svc := newService(t, us, &clock{now: epoch})

	_, err := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUnauthorized))
}

// --- Authenticate tests ---

func TestAuthenticate_ValidForTwentyFourHours(t *testing.T) {
	us := &mockUserStore{}
	us.On("GetByEmail", mock.Anything, mock.Anything).Return(storedUser(t, "password123"), nil)
	c := &clock{now: epoch}
	svc := newService(t, us, c)

	res, err := svc.Login(context.Background(), LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)

	c.now = epoch.Add(24*time.Hour - time.Second)
	id, err := svc.Authenticate(context.Background(), res.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: "u1", Email: "alice@example.com"}, *id)

	c.now = epoch.Add(24 * time.Hour)
	_, err = svc.Authenticate(context.Background(), res.Token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthenticate_RejectsGarbage(t *testing.T) {
	svc := newService(t, &mockUserStore{}, &clock{now: epoch})
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := svc.Authenticate(context.Background(), tok)
		assert.ErrorIs(t, err, domain.ErrInvalidToken, tok)
	}
}
