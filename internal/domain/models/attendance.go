// internal/domain/models/attendance.go
package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Date and time layouts used as attendance keys.
const (
	DateLayout       = "2006-01-02"
	SignInTimeLayout = "15:04"
)

// TeamAttendanceCode is the shared code for one team on one calendar day.
// Exactly one document per (team_id, date); regeneration overwrites Code and
// GeneratedAt in place.
type TeamAttendanceCode struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TeamID      primitive.ObjectID `bson:"team_id" json:"team_id"`
	Code        string             `bson:"code" json:"code"`
	Date        string             `bson:"date" json:"date"`                 // YYYY-MM-DD
	GeneratedAt int64              `bson:"generated_at" json:"generated_at"` // epoch millis
}

// AttendanceRecord is a single user's check-in for one day.
// Exactly one document per (user_id, date); never updated.
type AttendanceRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID         primitive.ObjectID `bson:"user_id" json:"user_id"`
	TeamID         primitive.ObjectID `bson:"team_id" json:"team_id"`
	Date           string             `bson:"date" json:"date"`                 // YYYY-MM-DD
	SignInTime     string             `bson:"sign_in_time" json:"sign_in_time"` // HH:mm
	AttendanceCode string             `bson:"attendance_code" json:"attendance_code"`
	Timestamp      int64              `bson:"timestamp" json:"timestamp"` // epoch millis
}
