// internal/app/store/teammemberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/teampulse/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("team_memberships")}
}

var errBadRole = errors.New(`role must be "admin" or "member"`)

var (
	ErrDuplicateMembership = errors.New("user is already a member of this team")
	ErrNotMember           = errors.New("user is not a member of this team")
)

// Add creates a membership. A second membership for the same
// (team_id, user_id) yields ErrDuplicateMembership.
func (s *Store) Add(ctx context.Context, teamID, userID primitive.ObjectID, role string) (models.TeamMembership, error) {
	if role != models.TeamRoleAdmin && role != models.TeamRoleMember {
		return models.TeamMembership{}, errBadRole
	}
	m := models.TeamMembership{
		ID:       primitive.NewObjectID(),
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.TeamMembership{}, ErrDuplicateMembership
		}
		return models.TeamMembership{}, err
	}
	return m, nil
}

// Remove deletes the membership for (teamID, userID).
func (s *Store) Remove(ctx context.Context, teamID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"team_id": teamID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotMember
	}
	return nil
}

// Get returns the membership for (teamID, userID) or ErrNotMember.
func (s *Store) Get(ctx context.Context, teamID, userID primitive.ObjectID) (models.TeamMembership, error) {
	var m models.TeamMembership
	err := s.c.FindOne(ctx, bson.M{"team_id": teamID, "user_id": userID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.TeamMembership{}, ErrNotMember
	}
	return m, err
}

// ListByUser returns the user's memberships, oldest first.
func (s *Store) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.TeamMembership, error) {
	return s.list(ctx, bson.M{"user_id": userID})
}

// ListByTeam returns the team's memberships, oldest first.
func (s *Store) ListByTeam(ctx context.Context, teamID primitive.ObjectID) ([]models.TeamMembership, error) {
	return s.list(ctx, bson.M{"team_id": teamID})
}

// CountAdmins returns how many admins the team has.
func (s *Store) CountAdmins(ctx context.Context, teamID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"team_id": teamID, "role": models.TeamRoleAdmin})
}

func (s *Store) list(ctx context.Context, filter bson.M) ([]models.TeamMembership, error) {
	cur, err := s.c.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.TeamMembership{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
