package auth

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-file-vault/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- mocks ---

// memUserStore keeps one user in memory and mirrors the conditional semantics of the
// real stores, so the recovery state machine can be exercised end to end.
type memUserStore struct {
	user *domain.User
}

func (m *memUserStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, domain.ErrUserNotFound
	}
	cp := *m.user
	return &cp, nil
}

func (m *memUserStore) SetOTP(_ context.Context, email, code string, expiresAt time.Time) error {
	if m.user == nil || m.user.Email != email {
		return domain.ErrUserNotFound
	}
	exp := expiresAt.UnixMilli()
	m.user.OTPCode, m.user.OTPExpiresAt = &code, &exp
	return nil
}

func (m *memUserStore) ConsumeOTP(_ context.Context, email, code, newHash string, now time.Time) error {
	if m.user == nil || m.user.Email != email || m.user.OTPExpired(now) || *m.user.OTPCode != code {
		return domain.ErrInvalidOTP
	}
	m.user.PasswordHash = newHash
	m.user.OTPCode, m.user.OTPExpiresAt = nil, nil
	return nil
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

// --- helpers ---

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memUserStore
	mailer *mockMailer
	now    time.Time
	codes  []string
	svc    *service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  &memUserStore{user: &domain.User{UserID: "u1", Email: "a@x.com", PasswordHash: "old"}},
		mailer: &mockMailer{},
		now:    epoch,
	}
	f.svc = NewService(ServiceDeps{
		UserRepo:   f.store,
		Mailer:     f.mailer,
		OTPTTL:     10 * time.Minute,
		BcryptCost: bcrypt.MinCost,
		Now:        func() time.Time { return f.now },
	}).(*service)
	f.svc.generate = func() (string, error) {
		code := strconv.Itoa(111111 * (len(f.codes) + 1))
		f.codes = append(f.codes, code)
		return code, nil
	}
	return f
}

// --- tests ---

func TestGenerateOTP_SixDigitsInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestRequestOTP_StoresAndMailsCode(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", "a@x.com", mock.Anything, mock.MatchedBy(func(body string) bool {
		return len(f.codes) == 1 && strings.Contains(body, f.codes[0])
	})).Return(nil)

	require.NoError(t, f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "A@x.com"}))
	assert.Equal(t, "111111", *f.store.user.OTPCode)
	assert.Equal(t, epoch.Add(10*time.Minute).UnixMilli(), *f.store.user.OTPExpiresAt)
	f.mailer.AssertExpectations(t)
}

func TestRequestOTP_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	err := f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "nobody@x.com"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.mailer.AssertNotCalled(t, "SendEmail", mock.Anything, mock.Anything, mock.Anything)
}

func TestRequestOTP_DeliveryFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	require.NoError(t, f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "a@x.com"}))
	assert.NoError(t, f.svc.VerifyOTP(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: "111111"}))
}

func TestVerifyOTP_ExpiryBoundary(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "a@x.com"}))
	req := VerifyOTPRequest{Email: "a@x.com", OTP: "111111"}

	f.now = epoch.Add(10 * time.Minute)
	assert.NoError(t, f.svc.VerifyOTP(context.Background(), req))

	f.now = epoch.Add(10*time.Minute + time.Millisecond)
	assert.ErrorIs(t, f.svc.VerifyOTP(context.Background(), req), domain.ErrInvalidOTP)
}

func TestVerifyOTP_NoChallengeOrUnknownEmail(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.svc.VerifyOTP(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: "111111"}), domain.ErrInvalidOTP)
	assert.ErrorIs(t, f.svc.VerifyOTP(context.Background(), VerifyOTPRequest{Email: "nobody@x.com", OTP: "111111"}), domain.ErrInvalidOTP)
}

func TestVerifyOTP_SupersededCodeFails(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "a@x.com"}))
	require.NoError(t, f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "a@x.com"}))

	assert.ErrorIs(t, f.svc.VerifyOTP(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: f.codes[0]}), domain.ErrInvalidOTP)
	assert.NoError(t, f.svc.VerifyOTP(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: f.codes[1]}))
}

func TestRecoveryScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.svc.RequestOTP(ctx, ForgotPasswordRequest{Email: "a@x.com"}))
	code := f.codes[0]

	assert.ErrorIs(t, f.svc.VerifyOTP(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: "000000"}), domain.ErrInvalidOTP)
	require.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: code}))
	// verification does not consume the code
	require.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPRequest{Email: "a@x.com", OTP: code}))

	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordRequest{Email: "a@x.com", OTP: code, NewPassword: "newpass"}))
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.store.user.PasswordHash), []byte("newpass")))
	assert.Nil(t, f.store.user.OTPCode)
	assert.Nil(t, f.store.user.OTPExpiresAt)

	err := f.svc.ResetPassword(ctx, ResetPasswordRequest{Email: "a@x.com", OTP: code, NewPassword: "another"})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
}

func TestResetPassword_WeakPasswordKeepsChallenge(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "a@x.com"}))

	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: "a@x.com", OTP: "111111", NewPassword: "123"})
	assert.ErrorIs(t, err, domain.ErrWeakPassword)
	assert.Equal(t, "old", f.store.user.PasswordHash)
	assert.NotNil(t, f.store.user.OTPCode)
}

func TestResetPassword_ExpiredCode(t *testing.T) {
	f := newFixture(t)
	f.mailer.On("SendEmail", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	require.NoError(t, f.svc.RequestOTP(context.Background(), ForgotPasswordRequest{Email: "a@x.com"}))

	f.now = epoch.Add(11 * time.Minute)
	err := f.svc.ResetPassword(context.Background(), ResetPasswordRequest{Email: "a@x.com", OTP: "111111", NewPassword: "newpass"})
	assert.ErrorIs(t, err, domain.ErrInvalidOTP)
	assert.Equal(t, "old", f.store.user.PasswordHash)
}
