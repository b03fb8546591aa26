package user

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
	"github.com/nkiryanov/videotube/internal/service/auth"
)

// Account operations: registration, profile and password management
type UserService struct {
	hasher  auth.PasswordHasher
	storage repository.Storage
}

func NewService(hasher auth.PasswordHasher, storage repository.Storage) *UserService {
	if hasher == nil {
		hasher = auth.DefaultHasher
	}

	return &UserService{
		hasher:  hasher,
		storage: storage,
	}
}

type CreateUserParams struct {
	Username string
	Email    string
	Password string
}

// Register new user. No tokens issued, user has to login
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (models.UserInfo, error) {
	username := normalize(params.Username)
	email := normalize(params.Email)

	if username == "" || email == "" || params.Password == "" {
		return models.UserInfo{}, fmt.Errorf("%w: username, email and password are required", apperrors.ErrInvalidInput)
	}

	hash, err := s.hasher.Hash(params.Password)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	user, err := s.storage.User().CreateUser(ctx, username, email, hash)
	if err != nil {
		return models.UserInfo{}, fmt.Errorf("can't create user. Err: %w", err)
	}

	return user.Info(), nil
}

func (s *UserService) GetUser(ctx context.Context, userID uuid.UUID) (models.UserInfo, error) {
	return s.storage.User().GetUserInfoByID(ctx, userID)
}

// Nil fields are kept unchanged
type UpdateDetailsParams struct {
	Username *string
	Email    *string
}

func (s *UserService) UpdateDetails(ctx context.Context, userID uuid.UUID, params UpdateDetailsParams) (models.UserInfo, error) {
	username, err := normalizeOptional(params.Username)
	if err != nil {
		return models.UserInfo{}, err
	}

	email, err := normalizeOptional(params.Email)
	if err != nil {
		return models.UserInfo{}, err
	}

	if username == nil && email == nil {
		return models.UserInfo{}, fmt.Errorf("%w: username or email is required", apperrors.ErrInvalidInput)
	}

	return s.storage.User().UpdateDetails(ctx, userID, username, email)
}

// ChangePassword verifies current password and stores new one
// Stored refresh token is revoked: other sessions have to login again
func (s *UserService) ChangePassword(ctx context.Context, userID uuid.UUID, current string, next string) error {
	if next == "" {
		return fmt.Errorf("%w: new password is required", apperrors.ErrInvalidInput)
	}

	return s.storage.InTx(ctx, func(tx repository.Storage) error {
		user, err := tx.User().GetUserForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if !s.hasher.Check(user.HashedPassword, current) {
			return apperrors.ErrInvalidCredentials
		}

		hash, err := s.hasher.Hash(next)
		if err != nil {
			return fmt.Errorf("can't use this as password, Err: %w", err)
		}

		return tx.User().UpdatePassword(ctx, userID, hash)
	})
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func normalizeOptional(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}

	v := normalize(*value)
	if v == "" {
		return nil, fmt.Errorf("%w: value must not be blank", apperrors.ErrInvalidInput)
	}

	return &v, nil
}
