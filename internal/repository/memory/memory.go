// Package memory keeps users in process memory.
// Test double for service and router tests; shares the contract of the postgres storage.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
)

type Storage struct {
	users *UserRepo

	// Serializes transactions. Changes made before error are not rolled back
	txMu *sync.Mutex
}

func NewStorage() *Storage {
	return &Storage{
		users: NewUserRepo(),
		txMu:  &sync.Mutex{},
	}
}

func (s *Storage) User() repository.UserRepo {
	return s.users
}

func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	return fn(s)
}

type UserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[uuid.UUID]models.User)}
}

func (r *UserRepo) CreateUser(ctx context.Context, username string, email string, hashedPassword string) (models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.taken(uuid.Nil, &username, &email) {
		return models.User{}, apperrors.ErrUserAlreadyExists
	}

	now := time.Now().UTC()
	user := models.User{
		ID:             uuid.New(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Username:       username,
		Email:          email,
		HashedPassword: hashedPassword,
	}
	r.users[user.ID] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[userID]
	if !ok {
		return models.User{}, apperrors.ErrUserNotFound
	}

	return copyUser(user), nil
}

// Rows are not locked in memory; use Storage.InTx to serialize
func (r *UserRepo) GetUserForUpdate(ctx context.Context, userID uuid.UUID) (models.User, error) {
	return r.GetUserByID(ctx, userID)
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if user.Email == email {
			return copyUser(user), nil
		}
	}

	return models.User{}, apperrors.ErrUserNotFound
}

func (r *UserRepo) GetUserInfoByID(ctx context.Context, userID uuid.UUID) (models.UserInfo, error) {
	user, err := r.GetUserByID(ctx, userID)
	if err != nil {
		return models.UserInfo{}, err
	}

	return user.Info(), nil
}

func (r *UserRepo) SwapRefreshToken(ctx context.Context, userID uuid.UUID, current *string, next *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}

	if !sameToken(user.RefreshToken, current) {
		return apperrors.ErrRefreshMismatch
	}

	user.RefreshToken = copyString(next)
	user.UpdatedAt = time.Now().UTC()
	r.users[userID] = user

	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}

	user.HashedPassword = hashedPassword
	user.RefreshToken = nil
	user.UpdatedAt = time.Now().UTC()
	r.users[userID] = user

	return nil
}

func (r *UserRepo) UpdateDetails(ctx context.Context, userID uuid.UUID, username *string, email *string) (models.UserInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[userID]
	if !ok {
		return models.UserInfo{}, apperrors.ErrUserNotFound
	}

	if r.taken(userID, username, email) {
		return models.UserInfo{}, apperrors.ErrUserAlreadyExists
	}

	if username != nil {
		user.Username = *username
	}
	if email != nil {
		user.Email = *email
	}
	user.UpdatedAt = time.Now().UTC()
	r.users[userID] = user

	return user.Info(), nil
}

// Whether username or email used by any user except 'self'. Caller must hold the lock
func (r *UserRepo) taken(self uuid.UUID, username *string, email *string) bool {
	for id, u := range r.users {
		if id == self {
			continue
		}
		if username != nil && u.Username == *username {
			return true
		}
		if email != nil && u.Email == *email {
			return true
		}
	}
	return false
}

func sameToken(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Stored users must not share refresh token pointer with callers
func copyUser(u models.User) models.User {
	u.RefreshToken = copyString(u.RefreshToken)
	return u
}
