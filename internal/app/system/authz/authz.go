// internal/app/system/authz/authz.go
package authz

import (
	"net/http"
	"strings"

	"github.com/dalemusser/teampulse/internal/app/system/auth"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserCtx returns the user's role (lowercased), login, Mongo ObjectID, and a found flag.
// If no user is present in context or the user ID is malformed, it returns
// "", "", NilObjectID, false. Callers can trust that ok=true means a valid,
// authenticated user with a valid ObjectID.
func UserCtx(r *http.Request) (role string, login string, userID primitive.ObjectID, ok bool) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		return "", "", primitive.NilObjectID, false
	}
	userID, err := primitive.ObjectIDFromHex(user.ID)
	if err != nil {
		// Malformed user ID in session or token: fail closed.
		return "", "", primitive.NilObjectID, false
	}
	return strings.ToLower(user.Role), user.Login, userID, true
}

// UserID returns the current user's ObjectID and whether one is present.
func UserID(r *http.Request) (primitive.ObjectID, bool) {
	_, _, id, ok := UserCtx(r)
	return id, ok
}

// IsAdmin reports whether the current user has the admin account role.
func IsAdmin(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleAdmin
}

// IsMember reports whether the current user has the member account role.
func IsMember(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role == models.RoleMember
}

// HasChosenRole reports whether the current user has completed role selection.
func HasChosenRole(r *http.Request) bool {
	role, _, _, ok := UserCtx(r)
	return ok && role != ""
}
