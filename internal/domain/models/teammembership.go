// internal/domain/models/teammembership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Team membership roles.
const (
	TeamRoleAdmin  = "admin"
	TeamRoleMember = "member"
)

// TeamMembership is the authoritative join between users and teams.
// Exactly one document per (team_id, user_id); role is a scalar ("admin"|"member").
type TeamMembership struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TeamID   primitive.ObjectID `bson:"team_id" json:"team_id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Role     string             `bson:"role" json:"role"` // "admin" | "member"
	JoinedAt time.Time          `bson:"joined_at" json:"joined_at"`
}
