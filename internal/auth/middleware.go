package auth

import (
	"net/http"
	"strings"
)

// JWTMiddleware provides JWT authentication middleware
func JWTMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth for OPTIONS requests (CORS preflight)
			if r.Method == "OPTIONS" {
				next.ServeHTTP(w, r)
				return
			}

			// Skip auth for public endpoints
			publicPaths := []string{
				"/health",
				"/api/v1/health",
				"/api/v1/auth/register",
				"/api/v1/auth/login",
				"/api/v1/auth/oidc/start",
				"/api/v1/auth/oidc/callback",
				"/metrics",
			}

			for _, path := range publicPaths {
				if r.URL.Path == path {
					next.ServeHTTP(w, r)
					return
				}
			}

			authHeader := r.Header.Get("Authorization")
			// Browser WebSockets can't set custom headers. For websocket endpoints only, allow token via query param (?token=...).
			if authHeader == "" {
				if strings.HasPrefix(r.URL.Path, "/ws/") {
					if token := r.URL.Query().Get("token"); token != "" {
						authHeader = "Bearer " + token
					}
				}
			}
			if authHeader == "" {
				http.Error(w, "Missing authorization header", http.StatusUnauthorized)
				return
			}

			tokenString, err := ExtractToken(authHeader)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, err := ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := SetUserID(r.Context(), claims.UserID)
			ctx = SetEmail(ctx, claims.Email)
			ctx = SetRole(ctx, claims.Role)
			ctx = SetClaims(ctx, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole wraps a handler and rejects callers whose role claim is not in
// the allowed set. Super admins pass every check.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetRoleFromContext(r.Context())
			if !ok {
				http.Error(w, "Missing authentication", http.StatusUnauthorized)
				return
			}
			if role != RoleSuperAdmin && !allowed[role] {
				http.Error(w, "Insufficient role", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
