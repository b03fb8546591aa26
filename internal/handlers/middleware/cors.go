package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

const corsMaxAge = 12 * 60 * 60

// CORS allows credentialed cross-origin requests from listed origins only
// Empty list means same origin only: no CORS headers are sent at all
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		MaxAge:           corsMaxAge,
	})

	return c.Handler
}
