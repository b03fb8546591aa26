package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const userColumns = `id, created_at, updated_at, username, email, password_hash, refresh_token`

const userInfoColumns = `id, created_at, updated_at, username, email`

const createUser = `-- name: CreateUser
INSERT INTO users (id, username, email, password_hash)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

func (r *UserRepo) CreateUser(ctx context.Context, username string, email string, hashedPassword string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), username, email, hashedPassword)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		if isUniqueViolation(err) {
			return user, apperrors.ErrUserAlreadyExists
		}

		return user, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

const getUserByID = `-- name: GetUserByID
SELECT ` + userColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	return collectUser(rows)
}

const getUserForUpdate = `-- name: GetUserForUpdate
SELECT ` + userColumns + ` FROM users
WHERE id = $1
FOR UPDATE
`

func (r *UserRepo) GetUserForUpdate(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserForUpdate, id)
	return collectUser(rows)
}

const getUserByEmail = `-- name: GetUserByEmail
SELECT ` + userColumns + ` FROM users
WHERE email = $1
`

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmail, email)
	return collectUser(rows)
}

const getUserInfoByID = `-- name: GetUserInfoByID
SELECT ` + userInfoColumns + ` FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserInfoByID(ctx context.Context, id uuid.UUID) (models.UserInfo, error) {
	rows, _ := r.DB.Query(ctx, getUserInfoByID, id)
	info, err := pgx.CollectOneRow(rows, rowToUserInfo)

	switch {
	case err == nil:
		return info, nil
	case errors.Is(err, pgx.ErrNoRows):
		return info, apperrors.ErrUserNotFound
	default:
		return info, fmt.Errorf("db error: %w", err)
	}
}

// IS NOT DISTINCT FROM treats two NULLs as equal, so clearing an already cleared token matches
const swapRefreshToken = `-- name: SwapRefreshToken
UPDATE users
SET refresh_token = $3, updated_at = now()
WHERE id = $1 AND refresh_token IS NOT DISTINCT FROM $2
`

const userExists = `-- name: UserExists
SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)
`

func (r *UserRepo) SwapRefreshToken(ctx context.Context, userID uuid.UUID, current *string, next *string) error {
	tag, err := r.DB.Exec(ctx, swapRefreshToken, userID, current, next)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	// Nothing updated: either user is gone or the token was changed by someone else
	var exists bool
	err = r.DB.QueryRow(ctx, userExists, userID).Scan(&exists)
	switch {
	case err != nil:
		return fmt.Errorf("db error: %w", err)
	case !exists:
		return apperrors.ErrUserNotFound
	default:
		return apperrors.ErrRefreshMismatch
	}
}

const updatePassword = `-- name: UpdatePassword
UPDATE users
SET password_hash = $2, refresh_token = NULL, updated_at = now()
WHERE id = $1
`

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	tag, err := r.DB.Exec(ctx, updatePassword, userID, hashedPassword)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

const updateDetails = `-- name: UpdateDetails
UPDATE users
SET username = COALESCE($2, username), email = COALESCE($3, email), updated_at = now()
WHERE id = $1
RETURNING ` + userInfoColumns

func (r *UserRepo) UpdateDetails(ctx context.Context, userID uuid.UUID, username *string, email *string) (models.UserInfo, error) {
	rows, _ := r.DB.Query(ctx, updateDetails, userID, username, email)
	info, err := pgx.CollectOneRow(rows, rowToUserInfo)

	switch {
	case err == nil:
		return info, nil
	case errors.Is(err, pgx.ErrNoRows):
		return info, apperrors.ErrUserNotFound
	case isUniqueViolation(err):
		return info, apperrors.ErrUserAlreadyExists
	default:
		return info, fmt.Errorf("db error: %w", err)
	}
}

func collectUser(rows pgx.Rows) (models.User, error) {
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &u.Email, &u.HashedPassword, &u.RefreshToken)
	return u, err
}

func rowToUserInfo(row pgx.CollectableRow) (models.UserInfo, error) {
	var u models.UserInfo
	err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &u.Email)
	return u, err
}
