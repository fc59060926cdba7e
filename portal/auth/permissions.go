package auth

import (
	"fmt"
	"net/http"

	"access_portal/portal/schema"

	"gorm.io/gorm"
)

func UserFromContext(r *http.Request, db *gorm.DB) (schema.User, error) {
	userId, err := UserIdFromContext(r)
	if err != nil {
		return schema.User{}, err
	}

	return schema.GetUser(userId, db)
}

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r, db)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an administrator", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}
