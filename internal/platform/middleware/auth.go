package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// SessionVerifier is the verification contract of an existing session. Login
// itself lives elsewhere; this layer only consumes the verified claims.
type SessionVerifier interface {
	Verify(tokenString string) (*SessionClaims, error)
}

// SessionClaims represents the claims we expect from the session verifier.
type SessionClaims struct {
	UserID string
	Role   string
}

// RoleAdmin may perform any internal operation; RoleAgent only operates on
// actas they created.
const (
	RoleAdmin = "admin"
	RoleAgent = "agent"
)

type contextKeyUserID struct{}
type contextKeyRole struct{}

var (
	ContextKeyUserID = contextKeyUserID{}
	ContextKeyRole   = contextKeyRole{}
)

// GetUserID retrieves the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(ContextKeyUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetRole retrieves the authenticated role from the context.
func GetRole(ctx context.Context) string {
	role, ok := ctx.Value(ContextKeyRole).(string)
	if !ok {
		return ""
	}
	return role
}

// IsAdmin reports whether the context carries an administrator session.
func IsAdmin(ctx context.Context) bool {
	return GetRole(ctx) == RoleAdmin
}

// RequireAuth rejects requests without a valid bearer session token and puts
// the verified claims on the request context.
func RequireAuth(verifier SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized - missing token",
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized - invalid token",
					"error", err,
					"request_id", GetRequestID(ctx),
				)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx = context.WithValue(ctx, ContextKeyUserID, claims.UserID)
			ctx = context.WithValue(ctx, ContextKeyRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
