package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-contacts-api/internal/model"
)

const userColumns = `id, username, email, password_hash, avatar, refresh_token, role, confirmed, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Avatar,
		&u.RefreshToken, &u.Role, &u.Confirmed, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	return u, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email)))
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}
	return u, err
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, err
}

func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	if u.Role == "" {
		u.Role = model.RoleUser
	}

	created, err := scanUser(r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, avatar, role, confirmed)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+userColumns,
		u.Username, u.Email, u.PasswordHash, u.Avatar, u.Role, u.Confirmed))
	if isUniqueViolation(err) {
		return model.User{}, fmt.Errorf("%w: %s", model.ErrUserAlreadyExists, u.Email)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// SetRefreshToken stores digest, or clears the column when digest is nil.
func (r *UserRepository) SetRefreshToken(ctx context.Context, userID int64, digest *string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $2, updated_at = now() WHERE id = $1`,
		userID, digest)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// RotateRefreshToken swaps oldDigest for newDigest in one statement. It
// reports false when the stored value no longer matches oldDigest.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, userID int64, oldDigest string, newDigest string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET refresh_token = $3, updated_at = now()
		 WHERE id = $1 AND refresh_token = $2`,
		userID, oldDigest, newDigest)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *UserRepository) ConfirmEmail(ctx context.Context, email string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET confirmed = TRUE, updated_at = now() WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("confirm email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateAvatar(ctx context.Context, email string, url string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET avatar = $2, updated_at = now()
		 WHERE lower(email) = lower($1)
		 RETURNING `+userColumns,
		strings.TrimSpace(email), url))
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("update avatar: %w", err)
	}
	return u, err
}

func (r *UserRepository) UpdateRole(ctx context.Context, id int64, role model.Role) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET role = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, role))
	if err != nil && !errors.Is(err, model.ErrUserNotFound) {
		return model.User{}, fmt.Errorf("update role: %w", err)
	}
	return u, err
}
