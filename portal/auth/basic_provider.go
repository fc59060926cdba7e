package auth

import (
	"fmt"
	"time"

	"access_portal/portal/schema"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type BasicIdentityProvider struct {
	jwtManager *JwtManager
	db         *gorm.DB
}

func NewBasicIdentityProvider(db *gorm.DB, jwtManager *JwtManager) IdentityProvider {
	return &BasicIdentityProvider{
		jwtManager: jwtManager,
		db:         db,
	}
}

func (auth *BasicIdentityProvider) AuthMiddleware() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier(), auth.jwtManager.Authenticator()}
}

func (auth *BasicIdentityProvider) OptionalAuthMiddleware() chi.Middlewares {
	return chi.Middlewares{auth.jwtManager.Verifier()}
}

func (auth *BasicIdentityProvider) Login(username, password string) (LoginResult, error) {
	var user schema.User
	result := auth.db.Find(&user, "username = ?", username)
	if result.Error != nil {
		return LoginResult{}, schema.NewDbError("locating user for username", result.Error)
	}

	if result.RowsAffected != 1 {
		return LoginResult{}, fmt.Errorf("no user found with username %v", username)
	}

	err := bcrypt.CompareHashAndPassword(user.Password, []byte(password))
	if err != nil {
		return LoginResult{}, fmt.Errorf("username and password do not match")
	}

	token, err := auth.jwtManager.CreateUserJwt(user.Id, 15*time.Minute)
	if err != nil {
		return LoginResult{}, fmt.Errorf("login failed: %w", err)
	}

	return LoginResult{UserId: user.Id, AccessToken: token}, nil
}

func (auth *BasicIdentityProvider) CreateUser(reg Registration, admin bool) (uint, error) {
	hashedPwd, err := bcrypt.GenerateFromPassword([]byte(reg.Password), 10)
	if err != nil {
		return 0, fmt.Errorf("error encrypting password: %w", err)
	}

	newUser := schema.User{
		Username:    reg.Username,
		Password:    hashedPwd,
		FirstName:   reg.FirstName,
		LastName:    reg.LastName,
		Email:       reg.Email,
		Institution: reg.Institution,
		Role:        reg.Role,
		IsAdmin:     admin,
		CreatedAt:   time.Now().UTC(),
	}

	err = auth.db.Transaction(func(txn *gorm.DB) error {
		var existingUser schema.User
		result := txn.Find(&existingUser, "username = ?", reg.Username)
		if result.Error != nil {
			return schema.NewDbError("checking for existing username", result.Error)
		}
		if result.RowsAffected != 0 {
			return ErrUsernameAlreadyExists
		}

		result = txn.Create(&newUser)
		if result.Error != nil {
			return schema.NewDbError("creating new user entry", result.Error)
		}

		return nil
	})

	if err != nil {
		return 0, fmt.Errorf("error creating new user: %w", err)
	}

	return newUser.Id, nil
}
