package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/models"
)

// User repository interface
// Credential store consumed by auth and user services
type UserRepo interface {
	// Create user
	// If user with username or email exists already has to return error apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, username string, email string, hashedPassword string) (models.User, error)

	// Get user by it's id or email
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	// Same as GetUserByID but locks the row until transaction ends
	// Outside of transaction behaves like GetUserByID
	GetUserForUpdate(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Projection without password hash and refresh token
	GetUserInfoByID(ctx context.Context, userID uuid.UUID) (models.UserInfo, error)

	// Conditionally replace stored refresh token: 'next' is written only if stored value equals 'current'
	// Nil means "no token" on both sides
	// Has to return apperrors.ErrRefreshMismatch if stored token differs
	// Has to return apperrors.ErrUserNotFound if user not exists
	SwapRefreshToken(ctx context.Context, userID uuid.UUID, current *string, next *string) error

	// Set new password hash and clear refresh token
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error

	// Update username and/or email. Nil values are kept unchanged
	// Has to return apperrors.ErrUserAlreadyExists on username or email conflict
	UpdateDetails(ctx context.Context, userID uuid.UUID, username *string, email *string) (models.UserInfo, error)
}

type Storage interface {
	User() UserRepo

	// Run fn in transaction
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}
