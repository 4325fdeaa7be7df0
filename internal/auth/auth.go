// Package auth guards the invoke API with JWT bearer tokens signed with a
// shared secret (HMAC-SHA256).
package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"model-router/internal/common/errors"
	"model-router/internal/common/logging"
)

// Claims carries the caller identity inside a token
type Claims struct {
	Subject string `json:"sub_name"`
	jwt.RegisteredClaims
}

// Auth issues and validates bearer tokens
type Auth struct {
	secret []byte
	ttl    time.Duration
	logger logging.Logger
}

// New creates an Auth with the given signing secret. ttl bounds issued
// token lifetime.
func New(secret string, ttl time.Duration, logger logging.Logger) (*Auth, error) {
	if secret == "" {
		return nil, errors.ConfigError("JWT secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Auth{
		secret: []byte(secret),
		ttl:    ttl,
		logger: logger.WithFields(logging.Field{Key: "component", Value: "auth"}),
	}, nil
}

// GenerateToken issues a signed token for subject
func (a *Auth) GenerateToken(subject string) (string, error) {
	now := time.Now()
	claims := Claims{
		Subject: subject,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", errors.InternalError("failed to sign token", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token string
func (a *Auth) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.AuthError("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, errors.AuthError("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.AuthError("invalid token claims")
	}
	return claims, nil
}

// RequireAuth rejects requests without a valid bearer token
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			a.unauthorized(w, "missing bearer token")
			return
		}

		claims, err := a.ValidateToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.unauthorized(w, "invalid bearer token")
			return
		}

		// expose the caller identity to handlers and the request log
		r.Header.Set("X-Caller", claims.Subject)
		next.ServeHTTP(w, r)
	})
}

func (a *Auth) unauthorized(w http.ResponseWriter, reason string) {
	a.logger.Debug("Rejected unauthenticated request", logging.Field{Key: "reason", Value: reason})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Authentication required"})
}
