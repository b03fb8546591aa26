package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/repository"
)

const (
	defaultAccessCookieName  = "accessToken"
	defaultRefreshCookieName = "refreshToken"
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultCookieSameSite    = http.SameSiteStrictMode

	// Concurrent logins or logouts of the same user may move stored refresh token under us
	swapAttempts = 3
)

type tokenManager interface {
	IssuePair(user models.UserInfo) (models.TokenPair, error)
	ParseAccess(access string) (models.TokenClaims, error)
	ParseRefresh(refresh string) (models.TokenClaims, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// Login attempts throttle. Optional
type loginLimiter interface {
	Check(ctx context.Context, email string, ip string) error
	Fail(ctx context.Context, email string, ip string) error
	Reset(ctx context.Context, email string, ip string) error
}

type Config struct {
	// Cookies names. Default "accessToken" and "refreshToken"
	AccessCookieName  string
	RefreshCookieName string

	// Send cookies over plain http too. Must be false in production
	CookieInsecure bool

	// SameSite cookie attribute. Strict if not set
	CookieSameSite http.SameSite

	// Hasher to use during login process. BcryptHasher if not set
	Hasher PasswordHasher

	// Failed login throttle. Not throttled if nil
	Limiter loginLimiter

	Logger logger.Logger
}

type AuthService struct {
	tokens   tokenManager
	hasher   PasswordHasher
	userRepo repository.UserRepo
	limiter  loginLimiter
	logger   logger.Logger

	accessCookieName  string
	refreshCookieName string
	accessHeaderName  string
	accessAuthScheme  string
	cookieSecure      bool
	cookieSameSite    http.SameSite

	// Hash compared on unknown email, so response time does not reveal whether user exists
	dummyHash string
}

func NewService(cfg Config, tokens tokenManager, userRepo repository.UserRepo) (*AuthService, error) {
	setDefault := func(field *string, def string) {
		if *field == "" {
			*field = def
		}
	}
	setDefault(&cfg.AccessCookieName, defaultAccessCookieName)
	setDefault(&cfg.RefreshCookieName, defaultRefreshCookieName)

	switch cfg.CookieSameSite {
	case 0, http.SameSiteDefaultMode:
		cfg.CookieSameSite = defaultCookieSameSite
	case http.SameSiteNoneMode:
		return nil, errors.New("SameSite=None cookies are not allowed for auth tokens")
	}

	if cfg.Hasher == nil {
		cfg.Hasher = DefaultHasher
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoOpLogger()
	}

	// Prepared up front: first unknown email login must cost the same as any other
	dummyHash, err := cfg.Hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("can't prepare dummy password hash. Err: %w", err)
	}

	return &AuthService{
		tokens:            tokens,
		hasher:            cfg.Hasher,
		userRepo:          userRepo,
		limiter:           cfg.Limiter,
		logger:            cfg.Logger,
		accessCookieName:  cfg.AccessCookieName,
		refreshCookieName: cfg.RefreshCookieName,
		accessHeaderName:  defaultAccessHeaderName,
		accessAuthScheme:  defaultAccessAuthScheme,
		cookieSecure:      !cfg.CookieInsecure,
		cookieSameSite:    cfg.CookieSameSite,
		dummyHash:         dummyHash,
	}, nil
}

// Authenticate is the session gate: verify access token from request and load its user
// Does not mutate any token state
func (s *AuthService) Authenticate(ctx context.Context, r *http.Request) (models.UserInfo, error) {
	access := s.getAccessString(r)
	if access == "" {
		return models.UserInfo{}, apperrors.ErrNoCredential
	}

	claims, err := s.tokens.ParseAccess(access)
	if err != nil {
		return models.UserInfo{}, err
	}

	user, err := s.userRepo.GetUserInfoByID(ctx, claims.UserID)
	if err != nil {
		return models.UserInfo{}, err
	}

	return user, nil
}

type LoginParams struct {
	Email    string
	Password string

	// Used by throttle only, may be empty
	ClientIP string
}

// Login checks credentials, issues new token pair and makes its refresh token the only valid one
// Unknown email and wrong password are not distinguished
func (s *AuthService) Login(ctx context.Context, params LoginParams) (models.TokenPair, models.UserInfo, error) {
	email := strings.ToLower(strings.TrimSpace(params.Email))

	if s.limiter != nil {
		if err := s.limiter.Check(ctx, email, params.ClientIP); err != nil {
			return models.TokenPair{}, models.UserInfo{}, err
		}
	}

	user, err := s.userRepo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.hasher.Check(s.dummyHash, params.Password)
		s.registerFailure(ctx, email, params.ClientIP)
		return models.TokenPair{}, models.UserInfo{}, apperrors.ErrInvalidCredentials
	default:
		return models.TokenPair{}, models.UserInfo{}, err
	}

	if !s.hasher.Check(user.HashedPassword, params.Password) {
		s.registerFailure(ctx, email, params.ClientIP)
		return models.TokenPair{}, models.UserInfo{}, apperrors.ErrInvalidCredentials
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email, params.ClientIP); err != nil {
			s.logger.Warn("can't reset login attempts", "error", err)
		}
	}

	pair, err := s.tokens.IssuePair(user.Info())
	if err != nil {
		return models.TokenPair{}, models.UserInfo{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	// Rotation must complete even if client disconnected meanwhile
	storeCtx := context.WithoutCancel(ctx)
	current := user.RefreshToken

	for attempt := 1; ; attempt++ {
		err = s.userRepo.SwapRefreshToken(storeCtx, user.ID, current, &pair.Refresh.Value)
		if !errors.Is(err, apperrors.ErrRefreshMismatch) || attempt == swapAttempts {
			break
		}

		// Someone else changed stored token, use the fresh one as expected value
		fresh, err := s.userRepo.GetUserByID(storeCtx, user.ID)
		if err != nil {
			return models.TokenPair{}, models.UserInfo{}, err
		}
		current = fresh.RefreshToken
	}

	if err != nil {
		return models.TokenPair{}, models.UserInfo{}, fmt.Errorf("can't store refresh token. Err: %w", err)
	}

	return pair, user.Info(), nil
}

// Refresh exchanges valid refresh token for a new pair
// Presented token must be the one stored for the user; it becomes invalid after successful call
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, models.UserInfo, error) {
	if refresh == "" {
		return models.TokenPair{}, models.UserInfo{}, apperrors.ErrNoCredential
	}

	claims, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return models.TokenPair{}, models.UserInfo{}, err
	}

	user, err := s.userRepo.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return models.TokenPair{}, models.UserInfo{}, err
	}

	if user.RefreshToken == nil || *user.RefreshToken != refresh {
		return models.TokenPair{}, models.UserInfo{}, apperrors.ErrRefreshMismatch
	}

	pair, err := s.tokens.IssuePair(user.Info())
	if err != nil {
		return models.TokenPair{}, models.UserInfo{}, fmt.Errorf("token could not generated, sorry. %w", err)
	}

	// Compare-and-set: of concurrent refreshes with the same token only one wins
	err = s.userRepo.SwapRefreshToken(context.WithoutCancel(ctx), user.ID, &refresh, &pair.Refresh.Value)
	if err != nil {
		return models.TokenPair{}, models.UserInfo{}, err
	}

	return pair, user.Info(), nil
}

// Logout revokes stored refresh token. Idempotent
// Access tokens already issued stay valid until they expire
func (s *AuthService) Logout(ctx context.Context, userID uuid.UUID) error {
	storeCtx := context.WithoutCancel(ctx)

	for range swapAttempts {
		user, err := s.userRepo.GetUserByID(storeCtx, userID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			return nil
		case err != nil:
			return err
		case user.RefreshToken == nil:
			return nil
		}

		err = s.userRepo.SwapRefreshToken(storeCtx, userID, user.RefreshToken, nil)
		switch {
		case err == nil, errors.Is(err, apperrors.ErrUserNotFound):
			return nil
		case errors.Is(err, apperrors.ErrRefreshMismatch):
			continue
		default:
			return err
		}
	}

	return fmt.Errorf("can't clear refresh token. Err: %w", apperrors.ErrRefreshMismatch)
}

// Set auth tokens (access, refresh) to response as cookies
func (s *AuthService) SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair) {
	http.SetCookie(w, s.cookie(s.accessCookieName, pair.Access.Value, int(s.tokens.AccessTTL().Seconds())))
	http.SetCookie(w, s.cookie(s.refreshCookieName, pair.Refresh.Value, int(s.tokens.RefreshTTL().Seconds())))
}

// Ask client to drop both auth cookies
func (s *AuthService) ClearTokens(w http.ResponseWriter) {
	http.SetCookie(w, s.cookie(s.accessCookieName, "", -1))
	http.SetCookie(w, s.cookie(s.refreshCookieName, "", -1))
}

// Get refresh token from request cookie
func (s *AuthService) GetRefreshString(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil || cookie.Value == "" {
		return "", apperrors.ErrNoCredential
	}

	return cookie.Value, nil
}

// Access token from cookie, else from 'Authorization: Bearer <token>' header
func (s *AuthService) getAccessString(r *http.Request) string {
	if cookie, err := r.Cookie(s.accessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := r.Header.Get(s.accessHeaderName)
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, s.accessAuthScheme) {
		return ""
	}

	return strings.TrimSpace(token)
}

func (s *AuthService) cookie(name string, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: s.cookieSameSite,
	}
}

func (s *AuthService) registerFailure(ctx context.Context, email string, ip string) {
	if s.limiter == nil {
		return
	}

	if err := s.limiter.Fail(ctx, email, ip); err != nil {
		s.logger.Warn("can't register failed login attempt", "error", err)
	}
}
