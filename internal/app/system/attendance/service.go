// internal/app/system/attendance/service.go
package attendance

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	attendancestore "github.com/dalemusser/teampulse/internal/app/store/attendance"
	codestore "github.com/dalemusser/teampulse/internal/app/store/attendancecodes"
	membershipstore "github.com/dalemusser/teampulse/internal/app/store/teammemberships"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// CodeLength is the number of decimal digits in an attendance code.
const CodeLength = 6

var codeSpace = big.NewInt(1_000_000)

// NewCode draws a uniformly random 6-digit code, zero-padded.
func NewCode() (string, error) {
	return newCode(rand.Reader)
}

func newCode(r io.Reader) (string, error) {
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate attendance code: %w", err)
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// Service issues daily team codes and records check-ins against them.
//
// Day keys come from the service clock in the configured location, so every
// caller agrees on "today" regardless of device time zone.
type Service struct {
	codes   *codestore.Store
	records *attendancestore.Store
	members *membershipstore.Store
	loc     *time.Location
	now     func() time.Time
	rand    io.Reader
}

// New returns a Service. A nil loc means UTC.
func New(db *mongo.Database, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		codes:   codestore.New(db),
		records: attendancestore.New(db),
		members: membershipstore.New(db),
		loc:     loc,
		now:     time.Now,
		rand:    rand.Reader,
	}
}

// WithClock replaces the wall clock. Tests use it to pin the day.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Location returns the time zone used for day keys.
func (s *Service) Location() *time.Location { return s.loc }

// Today returns today's date key (YYYY-MM-DD).
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(models.DateLayout)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Authorization                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

// Membership returns the user's membership in the team, or ErrNotTeamMember.
func (s *Service) Membership(ctx context.Context, userID, teamID primitive.ObjectID) (models.TeamMembership, error) {
	m, err := s.members.Get(ctx, teamID, userID)
	if errors.Is(err, membershipstore.ErrNotMember) {
		return models.TeamMembership{}, ErrNotTeamMember
	}
	if err != nil {
		return models.TeamMembership{}, transient("load membership", err)
	}
	return m, nil
}

// RequireTeamAdmin fails with ErrNotTeamAdmin unless the user administers the team.
func (s *Service) RequireTeamAdmin(ctx context.Context, userID, teamID primitive.ObjectID) error {
	m, err := s.Membership(ctx, userID, teamID)
	if err != nil {
		return err
	}
	if m.Role != models.TeamRoleAdmin {
		return ErrNotTeamAdmin
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Issuance                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// Generate issues today's code for the team. The day's record is created on
// first use and overwritten in place afterwards.
func (s *Service) Generate(ctx context.Context, teamID primitive.ObjectID) (models.TeamAttendanceCode, error) {
	return s.issue(ctx, teamID, "generate code")
}

// Regenerate replaces today's code. Anyone who has not signed in yet must
// use the new code.
func (s *Service) Regenerate(ctx context.Context, teamID primitive.ObjectID) (models.TeamAttendanceCode, error) {
	return s.issue(ctx, teamID, "regenerate code")
}

func (s *Service) issue(ctx context.Context, teamID primitive.ObjectID, op string) (models.TeamAttendanceCode, error) {
	code, err := newCode(s.rand)
	if err != nil {
		return models.TeamAttendanceCode{}, err
	}
	now := s.now()
	tc, _, err := s.codes.Put(ctx, teamID, now.In(s.loc).Format(models.DateLayout), code, now.UnixMilli())
	if err != nil {
		return models.TeamAttendanceCode{}, transient(op, err)
	}
	return tc, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Verification                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// SignIn checks code against the team's code for today and records the
// user's attendance. The stored code must match exactly.
func (s *Service) SignIn(ctx context.Context, userID, teamID primitive.ObjectID, code string) (models.AttendanceRecord, error) {
	now := s.now().In(s.loc)
	today := now.Format(models.DateLayout)

	tc, err := s.codes.GetForDay(ctx, teamID, today)
	switch {
	case errors.Is(err, codestore.ErrNotFound):
		return models.AttendanceRecord{}, s.rejectCode(ctx, userID, today)
	case err != nil:
		return models.AttendanceRecord{}, transient("load code", err)
	}
	if tc.Code != code {
		return models.AttendanceRecord{}, s.rejectCode(ctx, userID, today)
	}

	existing, err := s.records.GetForUserDay(ctx, userID, today)
	if err != nil {
		return models.AttendanceRecord{}, transient("check attendance", err)
	}
	if existing != nil {
		return models.AttendanceRecord{}, ErrAlreadySignedIn
	}

	// The unique (user_id, date) index settles a concurrent sign-in that
	// passed the check above.
	rec, err := s.records.Insert(ctx, models.AttendanceRecord{
		UserID:         userID,
		TeamID:         teamID,
		Date:           today,
		SignInTime:     now.Format(models.SignInTimeLayout),
		AttendanceCode: code,
		Timestamp:      now.UnixMilli(),
	})
	if errors.Is(err, attendancestore.ErrAlreadySignedIn) {
		return models.AttendanceRecord{}, ErrAlreadySignedIn
	}
	if err != nil {
		return models.AttendanceRecord{}, transient("record attendance", err)
	}
	return rec, nil
}

// rejectCode picks the error for a missing or wrong code. A user who already
// signed in today gets ErrAlreadySignedIn whatever they submit.
func (s *Service) rejectCode(ctx context.Context, userID primitive.ObjectID, today string) error {
	existing, err := s.records.GetForUserDay(ctx, userID, today)
	if err != nil {
		return transient("check attendance", err)
	}
	if existing != nil {
		return ErrAlreadySignedIn
	}
	return ErrInvalidCode
}

/*─────────────────────────────────────────────────────────────────────────────*
| Read-back                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// TodayCodeFor returns today's code for the team; found is false if none
// has been generated.
func (s *Service) TodayCodeFor(ctx context.Context, teamID primitive.ObjectID) (code string, found bool, err error) {
	tc, err := s.codes.GetForDay(ctx, teamID, s.Today())
	if errors.Is(err, codestore.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, transient("load code", err)
	}
	return tc.Code, true, nil
}

// TodayAttendanceFor returns the user's record for today, or nil.
func (s *Service) TodayAttendanceFor(ctx context.Context, userID primitive.ObjectID) (*models.AttendanceRecord, error) {
	rec, err := s.records.GetForUserDay(ctx, userID, s.Today())
	if err != nil {
		return nil, transient("load attendance", err)
	}
	return rec, nil
}

// TeamAttendance lists a team's check-ins for date in sign-in order.
func (s *Service) TeamAttendance(ctx context.Context, teamID primitive.ObjectID, date string) ([]models.AttendanceRecord, error) {
	if _, err := time.ParseInLocation(models.DateLayout, date, s.loc); err != nil {
		return nil, ErrBadDate
	}
	recs, err := s.records.ListByTeamDay(ctx, teamID, date)
	if err != nil {
		return nil, transient("list attendance", err)
	}
	return recs, nil
}

// View is a role-conditional snapshot of a team's attendance for today.
// Team admins get the code and the day's records; members get their own
// state.
type View struct {
	Date     string                    `json:"date"`
	TeamID   primitive.ObjectID        `json:"team_id"`
	Role     string                    `json:"role"`
	Code     string                    `json:"code,omitempty"`
	HasCode  bool                      `json:"has_code"`
	Records  []models.AttendanceRecord `json:"records,omitempty"`
	SignedIn bool                      `json:"signed_in"`
	Record   *models.AttendanceRecord  `json:"record,omitempty"`

	// SignedInElsewhere is set when today's check-in was made with another
	// team. A sign-in to this team would return ErrAlreadySignedIn.
	SignedInElsewhere bool `json:"signed_in_elsewhere"`
}

// TodayView builds the snapshot for userID in teamID.
func (s *Service) TodayView(ctx context.Context, userID, teamID primitive.ObjectID) (View, error) {
	m, err := s.Membership(ctx, userID, teamID)
	if err != nil {
		return View{}, err
	}

	today := s.Today()
	v := View{Date: today, TeamID: teamID, Role: m.Role}

	rec, err := s.records.GetForUserDay(ctx, userID, today)
	if err != nil {
		return View{}, transient("load attendance", err)
	}
	switch {
	case rec == nil:
	case rec.TeamID == teamID:
		v.SignedIn = true
		v.Record = rec
	default:
		v.SignedInElsewhere = true
	}

	if m.Role != models.TeamRoleAdmin {
		return v, nil
	}

	tc, err := s.codes.GetForDay(ctx, teamID, today)
	switch {
	case errors.Is(err, codestore.ErrNotFound):
	case err != nil:
		return View{}, transient("load code", err)
	default:
		v.Code = tc.Code
		v.HasCode = true
	}

	v.Records, err = s.records.ListByTeamDay(ctx, teamID, today)
	if err != nil {
		return View{}, transient("list attendance", err)
	}
	return v, nil
}
