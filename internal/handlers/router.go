package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/handlers/middleware"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/service/auth"
	"github.com/nkiryanov/videotube/internal/service/user"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	userService userService,
	logger logger.Logger,
	corsOrigins []string,
) http.Handler {
	withAuth := middleware.RequireAuth(authService, logger)

	apiusers := http.NewServeMux()

	apiusers.Handle("POST /register", handleRegister(userService, logger))
	apiusers.Handle("POST /login", handleLogin(authService, logger))
	apiusers.Handle("POST /refresh", handleTokenRefresh(authService, logger))

	apiusers.Handle("POST /logout", withAuth(handleLogout(authService, logger)))
	apiusers.Handle("POST /change-password", withAuth(handleChangePassword(authService, userService, logger)))
	apiusers.Handle("GET /current", withAuth(handleCurrentUser(userService, logger)))
	apiusers.Handle("PATCH /update", withAuth(handleUpdateDetails(userService, logger)))

	root := http.NewServeMux()
	root.Handle("GET /{$}", handleRoot())
	root.Handle("/api/v1/users/", http.StripPrefix("/api/v1/users", apiusers))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
		middleware.CORS(corsOrigins),
	)

	return handler
}

type authService interface {
	// Verify access token from request and return its user
	// Has to return one of token errors or apperrors.ErrUserNotFound if rejected
	Authenticate(ctx context.Context, r *http.Request) (models.UserInfo, error)

	// Login user with email and password
	// Has to return apperrors.ErrInvalidCredentials if email unknown or password wrong
	Login(ctx context.Context, params auth.LoginParams) (models.TokenPair, models.UserInfo, error)

	// Rotate tokens using refresh token
	// Has to return apperrors.ErrRefreshMismatch if token is not the current one
	Refresh(ctx context.Context, refresh string) (models.TokenPair, models.UserInfo, error)

	// Revoke stored refresh token
	Logout(ctx context.Context, userID uuid.UUID) error

	// Set auth tokens (access, refresh) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Drop auth tokens from client
	ClearTokens(w http.ResponseWriter)

	// Get refresh token from request
	GetRefreshString(r *http.Request) (string, error)
}

type userService interface {
	CreateUser(ctx context.Context, params user.CreateUserParams) (models.UserInfo, error)
	GetUser(ctx context.Context, userID uuid.UUID) (models.UserInfo, error)
	UpdateDetails(ctx context.Context, userID uuid.UUID, params user.UpdateDetailsParams) (models.UserInfo, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current string, next string) error
}
