package middlewares

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tutor/tutor/config"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// OwnerIDKey holds the authenticated subject; absent for anonymous requests.
const OwnerIDKey contextKey = "owner_id"

// OwnerID returns the subject stored by AuthMiddleware, or "".
func OwnerID(ctx context.Context) string {
	id, _ := ctx.Value(OwnerIDKey).(string)
	return id
}

// AuthMiddleware requires an HS256 bearer token when JWT_SECRET is set and
// passes every request through otherwise.
func AuthMiddleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if cfg.JWTSecret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject, err := ParseToken(r.Header.Get("Authorization"), cfg.JWTSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
				return
			}
			ctx := context.WithValue(r.Context(), OwnerIDKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseToken validates "Bearer <jwt>" and returns its sub (or user_id) claim.
func ParseToken(header, secret string) (string, error) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", fmt.Errorf("missing bearer token")
	}
	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", fmt.Errorf("token has no subject")
}

// IssueToken signs an HS256 token for subject that expires after ttl.
func IssueToken(subject, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("a signing secret is required")
	}
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
