package auth

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

type contextKey string

const TenantContextKey contextKey = "tenant"

type Middleware struct {
	jwtSecret  string
	adminToken string
}

func NewMiddleware(jwtSecret, adminToken string) *Middleware {
	return &Middleware{jwtSecret: jwtSecret, adminToken: adminToken}
}

// Authenticate requires a tenant bearer token and stores its claims in the
// request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearer(w, r)
		if !ok {
			return
		}

		claims, err := ValidateToken(token, m.jwtSecret)
		if err != nil {
			log.Debug().Err(err).Msg("🚫 rejected tenant token")
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), TenantContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin checks the static admin token. With no token configured every
// request passes.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.adminToken == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearer(w, r)
		if !ok {
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(m.adminToken)) != 1 {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearer(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		http.Error(w, "Missing authorization header", http.StatusUnauthorized)
		return "", false
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
		return "", false
	}
	return parts[1], true
}

func GetTenantFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(TenantContextKey).(*Claims)
	return claims, ok
}
