package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"accounts/internal/auth"
)

type ctxKey string

const CtxUserID ctxKey = "user_id"

// UserID returns the authenticated user id set by JWTAuth, if any.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(CtxUserID).(string)
	return id
}

// JWTAuth requires a valid bearer session token and puts the authenticated
// user id into the request context. Failures carry a machine-readable code
// so clients can tell an expired token from a malformed header.
func JWTAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "authorization_header_missing", "Authorization header is expected")
				return
			}
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeAuthError(w, "invalid_header", "Authorization header must be Bearer token")
				return
			}

			userID, err := tokens.VerifySession(parts[1])
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeAuthError(w, "token_expired", "Token is expired")
				case errors.Is(err, auth.ErrTokenSignature):
					writeAuthError(w, "token_invalid_signature", "Token signature is invalid")
				default:
					writeAuthError(w, "token_invalid", "Token is invalid")
				}
				return
			}

			ctx := context.WithValue(r.Context(), CtxUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, code string, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":        code,
		"description": description,
	})
}
