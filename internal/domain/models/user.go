// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account roles. An empty role means the user has not picked one yet.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is a GitHub-authenticated account.
//
// NOTE:
//   - Team membership is not embedded on User.
//     Use the team_memberships collection to discover a user's teams.
//   - Role is chosen once after first login (admin | member).
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GitHubID  int64              `bson:"github_id" json:"github_id"`
	Login     string             `bson:"login" json:"login"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	AvatarURL string             `bson:"avatar_url,omitempty" json:"avatar_url,omitempty"`
	Role      string             `bson:"role" json:"role"` // "" | admin | member

	LastLoginAt *time.Time `bson:"last_login_at,omitempty" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// DisplayName returns the user's name, falling back to the GitHub login.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Login
}
