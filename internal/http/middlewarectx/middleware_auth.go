// Package middlewarectx contains the HTTP middleware of the billing API.
//
// JWTMiddleware checks the token in the Authorization header, validates
// it locally with the shared signing key and, on success, puts the
// username, the role and the school id into the request context for the
// handlers. On failure it replies 401 Unauthorized.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/swadiqdev/school-billing/internal/http/response"
	jwtlib "github.com/swadiqdev/school-billing/internal/lib/jwt"
	"github.com/swadiqdev/school-billing/internal/lib/sl"
)

// Key is the type of the request-context keys set by the middleware.
type Key string

const (
	// User is the context key of the username.
	User Key = "username"
	// Role is the context key of the user role.
	Role Key = "role"
	// SchoolID is the context key of the school the token belongs to.
	SchoolID Key = "school_id"
)

// TokenParser validates a JWT and returns its claims.
type TokenParser interface {
	ParseToken(tokenStr string) (*jwtlib.CustomClaims, error)
}

// JWTMiddleware returns an HTTP middleware that checks the JWT in the
// Authorization header.
//
// When the token is valid the username, role and school id are added to
// the request context, otherwise the request fails with 401.
func JWTMiddleware(maker TokenParser, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const op = "auth.Jwtmiddleware"

			log = log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if !strings.HasPrefix(authHeader, "Bearer ") {
				log.Error("missing or invalid authorization header")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization header"))
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

			claims, err := maker.ParseToken(tokenStr)
			if err != nil {
				log.Error("invalid or expired token", sl.Err(err))
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			if claims.SchoolID == "" {
				log.Error("token carries no school id")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("invalid or expired token"))
				return
			}
			ctx := context.WithValue(r.Context(), User, claims.Username)
			ctx = context.WithValue(ctx, Role, claims.Role)
			ctx = context.WithValue(ctx, SchoolID, claims.SchoolID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
