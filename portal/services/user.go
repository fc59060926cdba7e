package services

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"access_portal/portal/auth"
	"access_portal/portal/schema"
	"access_portal/portal/utils"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

type UserService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider
}

func (s *UserService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Post("/", s.Signup)
		r.Post("/login", s.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.userAuth.AuthMiddleware()...)

		r.Get("/{user_id}", s.GetUser)
		r.Patch("/{user_id}", s.UpdateProfile)
	})

	return r
}

type signupRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Institution string `json:"institution"`
	Role        string `json:"role"`
}

func (s *UserService) Signup(w http.ResponseWriter, r *http.Request) {
	var params signupRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	details := map[string]string{}
	if params.Username == "" {
		details["username"] = "username is required"
	}
	if params.Password == "" {
		details["password"] = "password is required"
	}
	if len(details) > 0 {
		utils.WriteValidationError(w, details)
		return
	}

	userId, err := s.userAuth.CreateUser(auth.Registration{
		Username:    params.Username,
		Password:    params.Password,
		FirstName:   params.FirstName,
		LastName:    params.LastName,
		Email:       params.Email,
		Institution: params.Institution,
		Role:        params.Role,
	}, false)
	if errors.Is(err, auth.ErrUsernameAlreadyExists) {
		utils.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	slog.Info("user registered", "user_id", userId, "username", params.Username)

	user, err := schema.GetUser(userId, s.db)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJsonCreated(w, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	UserId      uint   `json:"userId"`
	AccessToken string `json:"accessToken"`
}

func (s *UserService) Login(w http.ResponseWriter, r *http.Request) {
	var params loginRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	login, err := s.userAuth.Login(params.Username, params.Password)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, fmt.Sprintf("login failed: %v", err))
		return
	}

	utils.WriteJsonResponse(w, loginResponse{UserId: login.UserId, AccessToken: login.AccessToken})
}

func (s *UserService) GetUser(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := schema.GetUser(userId, s.db)
	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJsonResponse(w, user)
}

type updateProfileRequest struct {
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email"`
	Institution *string `json:"institution"`
	Role        *string `json:"role"`
}

// UpdateProfile mutates profile fields only; identity fields are immutable
// after registration. Callers may update their own profile, admins anyone's.
func (s *UserService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userId, err := utils.IdUrlParam(r, "user_id")
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	caller, err := auth.UserFromContext(r, s.db)
	if err != nil {
		utils.WriteError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if caller.Id != userId && !caller.IsAdmin {
		utils.WriteError(w, http.StatusForbidden, "profile can only be updated by its owner")
		return
	}

	var params updateProfileRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	var user schema.User
	err = s.db.Transaction(func(txn *gorm.DB) error {
		user, err = schema.GetUser(userId, txn)
		if err != nil {
			return err
		}

		if params.FirstName != nil {
			user.FirstName = *params.FirstName
		}
		if params.LastName != nil {
			user.LastName = *params.LastName
		}
		if params.Email != nil {
			user.Email = *params.Email
		}
		if params.Institution != nil {
			user.Institution = *params.Institution
		}
		if params.Role != nil {
			user.Role = *params.Role
		}

		result := txn.Save(&user)
		if result.Error != nil {
			return schema.NewDbError("updating user profile", result.Error)
		}
		return nil
	})

	if err != nil {
		utils.WriteDomainError(w, err)
		return
	}

	utils.WriteJsonResponse(w, user)
}
