package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/videotube/internal/handlers/render"
	"github.com/nkiryanov/videotube/internal/handlers/userctx"
	"github.com/nkiryanov/videotube/internal/models"
)

type authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) (models.UserInfo, error)
}

type errorLogger interface {
	Error(msg string, args ...any)
}

// User facing messages of session gate rejections
var gateMessages = map[string]string{
	render.ReasonNoCredential:     "Unauthorized request",
	render.ReasonTokenExpired:     "Access token expired",
	render.ReasonSignatureInvalid: "Invalid access token",
	render.ReasonMalformedToken:   "Invalid access token",
	render.ReasonUserNotFound:     "User not found",
}

// RequireAuth lets request through only with valid access token
// Authenticated user is available to next handler with userctx.FromContext
func RequireAuth(as authenticator, l errorLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Authenticate(r.Context(), r)
			if err != nil {
				reason, ok := render.AuthReason(err)
				if !ok {
					l.Error("authentication failed", "error", err)
					render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
					return
				}

				message, known := gateMessages[reason]
				if !known {
					message = "Unauthorized request"
				}
				render.AuthError(w, reason, message)
				return
			}

			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
