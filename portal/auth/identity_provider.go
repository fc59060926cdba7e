package auth

import (
	"errors"

	"github.com/go-chi/chi/v5"
)

type LoginResult struct {
	UserId      uint
	AccessToken string
}

type Registration struct {
	Username    string
	Password    string
	FirstName   string
	LastName    string
	Email       string
	Institution string
	Role        string
}

// IdentityProvider is the seam for plugging in an external login system. The
// portal ships with a database backed provider; federated providers implement
// the same surface.
type IdentityProvider interface {
	AuthMiddleware() chi.Middlewares

	// OptionalAuthMiddleware decodes a token when one is presented but lets
	// unauthenticated requests through, for surfaces that accept anonymous
	// callers.
	OptionalAuthMiddleware() chi.Middlewares

	Login(username, password string) (LoginResult, error)

	CreateUser(reg Registration, admin bool) (uint, error)
}

var ErrUsernameAlreadyExists = errors.New("username is already in use")
