package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/sharebox/internal/db"
	"github.com/templui/sharebox/internal/model"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already exists")
)

const userColumns = `id, username, email, password_hash, is_admin, is_blocked, max_login_attempts,
	session_timeout_minutes, two_factor_enabled, ip_restriction, allowed_ips, created_at, updated_at, last_activity_at`

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByUsername(ctx context.Context, username string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	Update(ctx context.Context, user *model.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetBlocked(ctx context.Context, id string, blocked bool) error
	TouchActivity(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	WithTx(tx *sqlx.Tx) UserRepository
}

type userRepository struct {
	db sqlx.ExtContext
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx *sqlx.Tx) UserRepository {
	return &userRepository{db: tx}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, email, password_hash, is_admin, is_blocked, max_login_attempts,
		session_timeout_minutes, two_factor_enabled, ip_restriction, allowed_ips, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.IsAdmin,
		user.IsBlocked,
		user.MaxLoginAttempts,
		user.SessionTimeoutMinutes,
		user.TwoFactorEnabled,
		user.IPRestriction,
		user.AllowedIPs,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return err
	}

	return nil
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) ByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	err := sqlx.GetContext(ctx, r.db, user, query, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT ` + userColumns + ` FROM users ORDER BY username`

	err := sqlx.SelectContext(ctx, r.db, &users, query)
	if err != nil {
		return nil, err
	}

	return users, nil
}

// Update writes profile and security settings. Passwords and the blocked flag
// have dedicated methods.
func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET email = $1, is_admin = $2, max_login_attempts = $3, session_timeout_minutes = $4,
		two_factor_enabled = $5, ip_restriction = $6, allowed_ips = $7, updated_at = $8 WHERE id = $9`

	result, err := r.db.ExecContext(ctx, query,
		user.Email,
		user.IsAdmin,
		user.MaxLoginAttempts,
		user.SessionTimeoutMinutes,
		user.TwoFactorEnabled,
		user.IPRestriction,
		user.AllowedIPs,
		user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrUserNotFound)
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrUserNotFound)
}

func (r *userRepository) SetBlocked(ctx context.Context, id string, blocked bool) error {
	query := `UPDATE users SET is_blocked = $1, updated_at = $2 WHERE id = $3`

	result, err := r.db.ExecContext(ctx, query, blocked, time.Now().UTC(), id)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrUserNotFound)
}

func (r *userRepository) TouchActivity(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_activity_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}

	return requireAffected(result, ErrUserNotFound)
}

// requireAffected maps a zero row count to notFound.
func requireAffected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return notFound
	}

	return nil
}
