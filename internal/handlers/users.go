package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/nkiryanov/videotube/internal/apperrors"
	"github.com/nkiryanov/videotube/internal/handlers/middleware"
	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/logger"
	"github.com/nkiryanov/videotube/internal/models"
	"github.com/nkiryanov/videotube/internal/service/auth"
	"github.com/nkiryanov/videotube/internal/service/user"
)

const maxBodySize = 1 << 16

type messageResponse struct {
	Message string `json:"message"`
}

type userResponse struct {
	Message string          `json:"message"`
	User    models.UserInfo `json:"user"`
}

type tokensResponse struct {
	Message      string           `json:"message"`
	User         *models.UserInfo `json:"user,omitempty"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

func handleRoot() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Backend is running"))
	})
}

func handleRegister(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,max=50"`
		Email    string `json:"email" validate:"required,email,max=254"`
		Password string `json:"password" validate:"required,min=6,max=72"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		info, err := userService.CreateUser(r.Context(), user.CreateUserParams{
			Username: data.Username,
			Email:    data.Email,
			Password: data.Password,
		})
		switch {
		case err == nil:
			render.JSONStatus(w, userResponse{Message: "User registered successfully", User: info}, http.StatusCreated)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with email or username already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrInvalidInput):
			render.ServiceError(w, "Username, email and password are required", http.StatusBadRequest)
		default:
			l.Error("user registration failed", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, info, err := authService.Login(r.Context(), auth.LoginParams{
			Email:    data.Email,
			Password: data.Password,
			ClientIP: middleware.ClientIP(r),
		})
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrInvalidCredentials):
				render.AuthError(w, render.ReasonPasswordMismatch, "Invalid email or password")
			case errors.Is(err, apperrors.ErrTooManyAttempts):
				render.ServiceError(w, "Too many failed login attempts, try again later", http.StatusTooManyRequests)
			default:
				l.Error("user login failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, tokensResponse{
			Message:      "User logged in successfully",
			User:         &info,
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

// Refresh token is read from cookie, or from JSON body for clients without cookies
func handleTokenRefresh(authService authService, l logger.Logger) http.Handler {
	type request struct {
		RefreshToken string `json:"refreshToken"`
	}

	messages := map[string]string{
		render.ReasonNoCredential:     "Please login to continue",
		render.ReasonTokenExpired:     "Invalid or expired refresh token",
		render.ReasonSignatureInvalid: "Invalid or expired refresh token",
		render.ReasonMalformedToken:   "Invalid or expired refresh token",
		render.ReasonUserNotFound:     "User not found",
		render.ReasonRefreshMismatch:  "Refresh token mismatch",
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := authService.GetRefreshString(r)
		if err != nil {
			var data request
			r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
			err = json.NewDecoder(r.Body).Decode(&data)
			if err != nil && !errors.Is(err, io.EOF) {
				render.DecodeError(w, err)
				return
			}
			refresh = data.RefreshToken
		}

		pair, _, err := authService.Refresh(r.Context(), refresh)
		if err != nil {
			reason, ok := render.AuthReason(err)
			if !ok {
				l.Error("token refresh failed", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
				return
			}
			render.AuthError(w, reason, messages[reason])
			return
		}

		authService.SetTokenPairToResponse(w, pair)
		render.JSON(w, tokensResponse{
			Message:      "Tokens refreshed successfully",
			AccessToken:  pair.Access.Value,
			RefreshToken: pair.Refresh.Value,
		})
	})
}

func handleLogout(authService authService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		if err := authService.Logout(r.Context(), current.ID); err != nil {
			l.Error("user logout failed", "error", err, "user_id", current.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		authService.ClearTokens(w)
		render.JSON(w, messageResponse{Message: "User logged out successfully"})
	})
}

func handleChangePassword(authService authService, userService userService, l logger.Logger) http.Handler {
	type request struct {
		OldPassword string `json:"oldPassword" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = userService.ChangePassword(r.Context(), current.ID, data.OldPassword, data.NewPassword)
		switch {
		case err == nil:
			// Stored refresh token is revoked with password change
			authService.ClearTokens(w)
			render.JSON(w, messageResponse{Message: "Password changed successfully"})
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			render.ServiceError(w, "Invalid current password", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrInvalidInput):
			render.ServiceError(w, "Both current and new passwords are required", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("password change failed", "error", err, "user_id", current.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleCurrentUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		// Gate user may be stale after update, reload
		info, err := userService.GetUser(r.Context(), current.ID)
		switch {
		case err == nil:
			render.JSON(w, userResponse{Message: "Current user details fetched successfully", User: info})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("can't get current user", "error", err, "user_id", current.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleUpdateDetails(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Username *string `json:"username" validate:"omitempty,max=50"`
		Email    *string `json:"email" validate:"omitempty,email,max=254"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current, _ := userctx.FromContext(r.Context())

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		info, err := userService.UpdateDetails(r.Context(), current.ID, user.UpdateDetailsParams{
			Username: data.Username,
			Email:    data.Email,
		})
		switch {
		case err == nil:
			render.JSON(w, userResponse{Message: "Account details updated successfully", User: info})
		case errors.Is(err, apperrors.ErrInvalidInput):
			render.ServiceError(w, "At least one of username or email is required", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User with email or username already exists", http.StatusConflict)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		default:
			l.Error("can't update user details", "error", err, "user_id", current.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
