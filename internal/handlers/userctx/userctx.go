// Package userctx carries authenticated user through request context.
package userctx

import (
	"context"

	"github.com/nkiryanov/videotube/internal/models"
)

type ctxKey string

const userKey ctxKey = "user"

// Create a new context with the user
// Only the non-sensitive projection is stored: no password hash, no refresh token
func New(ctx context.Context, u models.UserInfo) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// Extract the user from the context
func FromContext(ctx context.Context) (models.UserInfo, bool) {
	u, ok := ctx.Value(userKey).(models.UserInfo)
	return u, ok
}
