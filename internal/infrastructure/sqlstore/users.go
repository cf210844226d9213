package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-file-vault/internal/domain"
	"github.com/jmoiron/sqlx"
)

type userRow struct {
	ID           string         `db:"id"`
	Email        string         `db:"email"`
	Username     string         `db:"username"`
	PasswordHash string         `db:"password_hash"`
	OTPCode      sql.NullString `db:"otp_code"`
	OTPExpiresAt sql.NullInt64  `db:"otp_expires_at"`
	CreatedAt    int64          `db:"created_at"`
}

func (r userRow) toDomain() *domain.User {
	u := &domain.User{
		UserID:       r.ID,
		Email:        r.Email,
		Username:     r.Username,
		PasswordHash: r.PasswordHash,
		CreatedAt:    time.UnixMilli(r.CreatedAt).UTC(),
	}
	if r.OTPCode.Valid {
		code := r.OTPCode.String
		u.OTPCode = &code
	}
	if r.OTPExpiresAt.Valid {
		exp := r.OTPExpiresAt.Int64
		u.OTPExpiresAt = &exp
	}
	return u
}

const userColumns = `id, email, username, password_hash, otp_code, otp_expires_at, created_at`

// UserRepo stores credentials and the embedded OTP challenge.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Create inserts a new user. A taken email yields domain.ErrDuplicateEmail.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	query := r.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, NULL, NULL, ?)`)
	_, err := r.db.ExecContext(ctx, query, u.UserID, u.Email, u.Username, u.PasswordHash, u.CreatedAt.UnixMilli())
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg string) (*domain.User, error) {
	var row userRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(query), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return row.toDomain(), nil
}

// SetOTP overwrites any existing challenge for email.
func (r *UserRepo) SetOTP(ctx context.Context, email, code string, expiresAt time.Time) error {
	query := r.db.Rebind(`UPDATE users SET otp_code = ?, otp_expires_at = ? WHERE email = ?`)
	res, err := r.db.ExecContext(ctx, query, code, expiresAt.UnixMilli(), email)
	if err != nil {
		return fmt.Errorf("set otp: %w", err)
	}
	return requireOneRow(res, domain.ErrUserNotFound)
}

// ConsumeOTP stores newHash and clears the challenge in one statement, but only while the
// stored code equals code and has not expired at now. A lost race or a superseded code
// yields domain.ErrInvalidOTP.
func (r *UserRepo) ConsumeOTP(ctx context.Context, email, code, newHash string, now time.Time) error {
	query := r.db.Rebind(`UPDATE users
		SET password_hash = ?, otp_code = NULL, otp_expires_at = NULL
		WHERE email = ? AND otp_code = ? AND otp_expires_at >= ?`)
	res, err := r.db.ExecContext(ctx, query, newHash, email, code, now.UnixMilli())
	if err != nil {
		return fmt.Errorf("consume otp: %w", err)
	}
	return requireOneRow(res, domain.ErrInvalidOTP)
}

func requireOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
