// internal/app/store/attendance/attendancestore.go
package attendancestore

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

// Store persists AttendanceRecords. The unique (user_id, date) index makes
// Insert the single arbiter of "already signed in today".
type Store struct {
	c *mongo.Collection
}

var ErrAlreadySignedIn = errors.New("already signed in today")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("attendance_records")}
}

// Insert stores rec with a new ID. A second record for the same
// (user_id, date) yields ErrAlreadySignedIn.
func (s *Store) Insert(ctx context.Context, rec models.AttendanceRecord) (models.AttendanceRecord, error) {
	rec.ID = primitive.NewObjectID()
	if _, err := s.c.InsertOne(ctx, rec); err != nil {
		if wafflemongo.IsDup(err) {
			return models.AttendanceRecord{}, ErrAlreadySignedIn
		}
		return models.AttendanceRecord{}, err
	}
	return rec, nil
}

// GetForUserDay returns the user's record for date, or nil if none exists.
func (s *Store) GetForUserDay(ctx context.Context, userID primitive.ObjectID, date string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	err := s.c.FindOne(ctx, bson.M{"user_id": userID, "date": date}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByTeamDay returns the team's records for date in check-in order.
func (s *Store) ListByTeamDay(ctx context.Context, teamID primitive.ObjectID, date string) ([]models.AttendanceRecord, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"team_id": teamID, "date": date},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.AttendanceRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CountForUserTeamSince counts the user's check-ins with the team on or
// after fromDate (YYYY-MM-DD; the layout sorts lexically).
func (s *Store) CountForUserTeamSince(ctx context.Context, userID, teamID primitive.ObjectID, fromDate string) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{
		"user_id": userID,
		"team_id": teamID,
		"date":    bson.M{"$gte": fromDate},
	})
}
