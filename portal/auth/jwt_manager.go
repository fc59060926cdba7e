package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/jwtauth/v5"
)

type JwtManager struct {
	auth *jwtauth.JWTAuth
}

func NewJwtManager(secret []byte) *JwtManager {
	return &JwtManager{auth: jwtauth.New("HS256", secret, nil)}
}

func (m *JwtManager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verifier(m.auth)
}

func (m *JwtManager) Authenticator() func(http.Handler) http.Handler {
	return jwtauth.Authenticator(m.auth)
}

const userIdKey = "user_id"

func (m *JwtManager) CreateUserJwt(userId uint, exp time.Duration) (string, error) {
	claims := map[string]interface{}{
		userIdKey: strconv.FormatUint(uint64(userId), 10),
		"exp":     time.Now().Add(exp),
	}
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		slog.Error("error generating jwt", "error", err)
		return "", fmt.Errorf("error generating access token: %w", err)
	}
	return token, nil
}

func valueFromContext(r *http.Request, key string) (string, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return "", fmt.Errorf("error retrieving auth claims: %w", err)
	}

	valueUncasted, ok := claims[key]
	if !ok {
		return "", fmt.Errorf("invalid token: unable to locate key %v in claims", key)
	}

	value, ok := valueUncasted.(string)
	if !ok {
		return "", fmt.Errorf("invalid token: value for key %v has invalid type", key)
	}

	return value, nil
}

func UserIdFromContext(r *http.Request) (uint, error) {
	value, err := valueFromContext(r, userIdKey)
	if err != nil {
		return 0, err
	}

	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id '%v' in token: %w", value, err)
	}
	return uint(id), nil
}

// OptionalUserIdFromContext is used on endpoints that accept anonymous callers.
// A missing or unparseable token yields no identity rather than an error.
func OptionalUserIdFromContext(r *http.Request) *uint {
	id, err := UserIdFromContext(r)
	if err != nil {
		return nil
	}
	return &id
}
