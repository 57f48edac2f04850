// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrNotFound       = errors.New("user not found")
	ErrRoleAlreadySet = errors.New("role has already been selected")
	ErrBadRole        = errors.New(`role must be "admin" or "member"`)
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("users")}
}

// GitHubProfile is the subset of the GitHub user payload we persist.
type GitHubProfile struct {
	ID        int64
	Login     string
	Name      string
	Email     string
	AvatarURL string
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.User, error) {
	var u models.User
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, ErrNotFound
	}
	return u, err
}

// UpsertGitHub records a GitHub login. New accounts start with no role;
// profile fields are refreshed on every login. The role is never touched.
func (s *Store) UpsertGitHub(ctx context.Context, p GitHubProfile) (models.User, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"login":         p.Login,
			"name":          strings.TrimSpace(p.Name),
			"email":         p.Email,
			"avatar_url":    p.AvatarURL,
			"last_login_at": now,
			"updated_at":    now,
		},
		"$setOnInsert": bson.M{
			"github_id":  p.ID,
			"role":       "",
			"created_at": now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var u models.User
	if err := s.c.FindOneAndUpdate(ctx, bson.M{"github_id": p.ID}, update, opts).Decode(&u); err != nil {
		return models.User{}, err
	}
	return u, nil
}

// SetRole stores the user's first role selection. Once set, the role is
// fixed and ErrRoleAlreadySet is returned.
func (s *Store) SetRole(ctx context.Context, id primitive.ObjectID, role string) (models.User, error) {
	if role != models.RoleAdmin && role != models.RoleMember {
		return models.User{}, ErrBadRole
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "role": ""},
		bson.M{"$set": bson.M{"role": role, "updated_at": time.Now().UTC()}},
		opts,
	).Decode(&u)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return models.User{}, err
	}

	// Either the user doesn't exist or already has a role.
	if _, getErr := s.GetByID(ctx, id); getErr != nil {
		return models.User{}, getErr
	}
	return models.User{}, ErrRoleAlreadySet
}

// ListByIDs returns the users with the given IDs keyed by ID.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.User, error) {
	out := make(map[primitive.ObjectID]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, cur.Err()
}
