// internal/app/store/attendancecodes/codestore.go
package codestore

import (
	"context"
	"errors"

	"github.com/dalemusser/teampulse/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists one TeamAttendanceCode per (team_id, date).
type Store struct {
	c *mongo.Collection
}

// ErrNotFound is returned when a team has no code for the requested day.
var ErrNotFound = errors.New("no attendance code for this team and day")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("team_attendance_codes")}
}

// GetForDay returns the team's code for date (YYYY-MM-DD).
func (s *Store) GetForDay(ctx context.Context, teamID primitive.ObjectID, date string) (models.TeamAttendanceCode, error) {
	var tc models.TeamAttendanceCode
	err := s.c.FindOne(ctx, bson.M{"team_id": teamID, "date": date}).Decode(&tc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.TeamAttendanceCode{}, ErrNotFound
	}
	if err != nil {
		return models.TeamAttendanceCode{}, err
	}
	return tc, nil
}

// Put writes code for (teamID, date). The existing document is overwritten
// in place; one is inserted only when the day has none. inserted reports
// which of the two happened.
func (s *Store) Put(ctx context.Context, teamID primitive.ObjectID, date, code string, generatedAt int64) (tc models.TeamAttendanceCode, inserted bool, err error) {
	tc, inserted, err = s.upsert(ctx, teamID, date, code, generatedAt)
	if wafflemongo.IsDup(err) {
		// A concurrent upsert inserted first; the unique index turned our
		// insert into a conflict. The document exists now, so update it.
		tc, inserted, err = s.upsert(ctx, teamID, date, code, generatedAt)
	}
	return tc, inserted, err
}

func (s *Store) upsert(ctx context.Context, teamID primitive.ObjectID, date, code string, generatedAt int64) (models.TeamAttendanceCode, bool, error) {
	filter := bson.M{"team_id": teamID, "date": date}
	update := bson.M{
		"$set": bson.M{
			"code":         code,
			"generated_at": generatedAt,
		},
		"$setOnInsert": bson.M{
			"team_id": teamID,
			"date":    date,
		},
	}
	res, err := s.c.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return models.TeamAttendanceCode{}, false, err
	}

	tc := models.TeamAttendanceCode{
		TeamID:      teamID,
		Code:        code,
		Date:        date,
		GeneratedAt: generatedAt,
	}
	if oid, ok := res.UpsertedID.(primitive.ObjectID); ok {
		tc.ID = oid
		return tc, true, nil
	}

	// Updated in place; read back the stable ID.
	var existing struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := s.c.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&existing); err != nil {
		return models.TeamAttendanceCode{}, false, err
	}
	tc.ID = existing.ID
	return tc, false, nil
}

// CountForTeam returns how many days have a code for the team.
func (s *Store) CountForTeam(ctx context.Context, teamID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"team_id": teamID})
}
