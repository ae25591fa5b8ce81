package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"auth-service/internal/domain"
)

// ErrEmailTaken indica violación del índice único de email.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository define el contrato de persistencia para usuarios.
// Los lookups sin resultado devuelven pgx.ErrNoRows.
type UserRepository interface {
	Create(ctx context.Context, user NewUser) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateOTP(ctx context.Context, id int64, state domain.VerificationState) error
	IncrementOTPAttempts(ctx context.Context, id int64) (int, error)
	MarkEmailVerified(ctx context.Context, id int64) error
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// NewUser son los campos que fija el registro; id y created_at los asigna la base.
type NewUser struct {
	Email        string
	FullName     string
	PasswordHash string
}

// DBTX es el subconjunto de pgxpool.Pool que usa el repositorio (permite pgxmock en tests).
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool DBTX
}

func NewPgUserRepository(pool DBTX) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

const userColumns = `
	id, email, COALESCE(full_name, ''), hashed_password, is_email_verified,
	COALESCE(email_otp_hash, ''), email_otp_expires_at, email_otp_attempts,
	email_otp_last_sent_at, created_at`

func (r *PgUserRepository) Create(ctx context.Context, user NewUser) (domain.User, error) {
	const query = `
		INSERT INTO users (email, full_name, hashed_password)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query,
		user.Email,
		strings.TrimSpace(user.FullName),
		user.PasswordHash,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return domain.User{}, ErrEmailTaken
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `SELECT` + userColumns + `
		FROM users
		WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// UpdateOTP escribe los cuatro campos del ciclo de verificación en un único UPDATE.
func (r *PgUserRepository) UpdateOTP(ctx context.Context, id int64, state domain.VerificationState) error {
	const query = `
		UPDATE users
		SET email_otp_hash = NULLIF($2, ''),
			email_otp_expires_at = $3,
			email_otp_attempts = $4,
			email_otp_last_sent_at = $5
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query,
		id,
		state.OTPHash,
		state.OTPExpiresAt,
		state.OTPAttempts,
		state.OTPLastSentAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IncrementOTPAttempts suma un intento fallido y devuelve el contador resultante.
func (r *PgUserRepository) IncrementOTPAttempts(ctx context.Context, id int64) (int, error) {
	const query = `
		UPDATE users
		SET email_otp_attempts = email_otp_attempts + 1
		WHERE id = $1
		RETURNING email_otp_attempts`
	var attempts int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		return 0, err
	}
	return attempts, nil
}

// MarkEmailVerified activa el flag y limpia el estado OTP en la misma sentencia.
func (r *PgUserRepository) MarkEmailVerified(ctx context.Context, id int64) error {
	const query = `
		UPDATE users
		SET is_email_verified = TRUE,
			email_otp_hash = NULL,
			email_otp_expires_at = NULL,
			email_otp_attempts = 0,
			email_otp_last_sent_at = NULL
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *PgUserRepository) UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error {
	const query = `UPDATE users SET hashed_password = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u          domain.User
		expiresAt  *time.Time
		lastSentAt *time.Time
	)
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.FullName,
		&u.PasswordHash,
		&u.IsEmailVerified,
		&u.Verification.OTPHash,
		&expiresAt,
		&u.Verification.OTPAttempts,
		&lastSentAt,
		&u.CreatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	u.Verification.OTPExpiresAt = expiresAt
	u.Verification.OTPLastSentAt = lastSentAt
	return u, nil
}
