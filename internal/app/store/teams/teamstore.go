// internal/app/store/teams/teamstore.go
package teamstore

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/dalemusser/teampulse/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	ErrDuplicateTeamName = errors.New("you already own a team with this name")
	ErrNotFound          = errors.New("team not found")
)

// JoinCodeLength is the length of generated join codes.
const JoinCodeLength = 8

// Unambiguous characters only (no 0/O, 1/I/L).
const joinAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("teams")}
}

// NewJoinCode returns a random join code.
func NewJoinCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(joinAlphabet)))
	for i := 0; i < JoinCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(joinAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// NormalizeJoinCode upper-cases and trims user input.
func NormalizeJoinCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Team, error) {
	var t models.Team
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Team{}, ErrNotFound
	}
	return t, err
}

func (s *Store) GetByJoinCode(ctx context.Context, code string) (models.Team, error) {
	var t models.Team
	err := s.c.FindOne(ctx, bson.M{"join_code": NormalizeJoinCode(code)}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Team{}, ErrNotFound
	}
	return t, err
}

// Create inserts t with a fresh ID and join code. A join-code collision is
// retried with a new code; a name collision for the same owner is reported
// as ErrDuplicateTeamName.
func (s *Store) Create(ctx context.Context, t models.Team) (models.Team, error) {
	now := time.Now().UTC()
	t.Name = strings.TrimSpace(t.Name)
	t.NameCI = text.Fold(t.Name)
	t.CreatedAt = now
	t.UpdatedAt = now

	const attempts = 3
	for i := 0; ; i++ {
		code, err := NewJoinCode()
		if err != nil {
			return models.Team{}, err
		}
		t.ID = primitive.NewObjectID()
		t.JoinCode = code

		_, err = s.c.InsertOne(ctx, t)
		if err == nil {
			return t, nil
		}
		if !wafflemongo.IsDup(err) {
			return models.Team{}, err
		}
		if strings.Contains(err.Error(), "name_ci") {
			return models.Team{}, ErrDuplicateTeamName
		}
		if i+1 >= attempts {
			return models.Team{}, err
		}
	}
}

// ListByIDs returns teams in name order.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Team, error) {
	out := []models.Team{}
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateInfo changes the name and/or description.
func (s *Store) UpdateInfo(ctx context.Context, id primitive.ObjectID, name, desc string) error {
	set := bson.M{
		"updated_at":  time.Now().UTC(),
		"description": desc,
	}
	if name = strings.TrimSpace(name); name != "" {
		set["name"] = name
		set["name_ci"] = text.Fold(name)
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": set})
	if err != nil {
		if wafflemongo.IsDup(err) {
			return ErrDuplicateTeamName
		}
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
