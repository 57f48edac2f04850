package attendance_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/dalemusser/teampulse/internal/app/system/attendance"
	"github.com/dalemusser/teampulse/internal/app/system/indexes"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/dalemusser/teampulse/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

type env struct {
	db    *mongo.Database
	fx    *testutil.Fixtures
	svc   *attendance.Service
	clock time.Time
}

func setup(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll: %v", err)
	}

	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	e := &env{
		db:    db,
		fx:    testutil.NewFixtures(t, db),
		clock: time.Date(2026, 3, 9, 9, 5, 0, 0, loc),
	}
	e.svc = attendance.New(db, loc).WithClock(func() time.Time { return e.clock })
	return e
}

func TestSignIn_Scenario(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Robotics", admin.ID)
	u1 := e.fx.CreateMember(ctx, "u1")
	u2 := e.fx.CreateMember(ctx, "u2")
	u3 := e.fx.CreateMember(ctx, "u3")

	tc, err := e.svc.Generate(ctx, team.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	c := tc.Code

	rec, err := e.svc.SignIn(ctx, u1.ID, team.ID, c)
	if err != nil {
		t.Fatalf("U1 SignIn: %v", err)
	}
	if rec.ID.IsZero() {
		t.Error("expected store-assigned id")
	}
	if !hhmm.MatchString(rec.SignInTime) || rec.SignInTime != "09:05" {
		t.Errorf("sign_in_time = %q, want 09:05", rec.SignInTime)
	}
	if rec.Date != "2026-03-09" || rec.AttendanceCode != c {
		t.Errorf("unexpected record: %+v", rec)
	}

	if _, err := e.svc.SignIn(ctx, u1.ID, team.ID, c); !errors.Is(err, attendance.ErrAlreadySignedIn) {
		t.Errorf("second U1 SignIn: got %v, want ErrAlreadySignedIn", err)
	}

	wrong := "000000"
	if c == wrong {
		wrong = "111111"
	}
	if _, err := e.svc.SignIn(ctx, u2.ID, team.ID, wrong); !errors.Is(err, attendance.ErrInvalidCode) {
		t.Errorf("U2 wrong code: got %v, want ErrInvalidCode", err)
	}
	if _, err := e.svc.SignIn(ctx, u1.ID, team.ID, wrong); !errors.Is(err, attendance.ErrAlreadySignedIn) {
		t.Errorf("U1 wrong code after signing in: got %v, want ErrAlreadySignedIn", err)
	}

	var c2 string
	for i := 0; i < 5 && (c2 == "" || c2 == c); i++ {
		tc2, err := e.svc.Regenerate(ctx, team.ID)
		if err != nil {
			t.Fatalf("Regenerate: %v", err)
		}
		c2 = tc2.Code
	}
	if c2 == c {
		t.Fatal("regenerate kept returning the same code")
	}

	if _, err := e.svc.SignIn(ctx, u3.ID, team.ID, c); !errors.Is(err, attendance.ErrInvalidCode) {
		t.Errorf("old code after regenerate: got %v, want ErrInvalidCode", err)
	}
	if _, err := e.svc.SignIn(ctx, u3.ID, team.ID, c2); err != nil {
		t.Errorf("new code after regenerate: %v", err)
	}
	if _, err := e.svc.SignIn(ctx, u1.ID, team.ID, c); !errors.Is(err, attendance.ErrAlreadySignedIn) {
		t.Errorf("U1 old code after regenerate: got %v, want ErrAlreadySignedIn", err)
	}
}

func TestSignIn_NoCodeAfterSigningIn(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	teamA := e.fx.CreateTeam(ctx, "A", admin.ID)
	teamB := e.fx.CreateTeam(ctx, "B", admin.ID)
	member := e.fx.CreateMember(ctx, "m")

	a, _ := e.svc.Generate(ctx, teamA.ID)
	if _, err := e.svc.SignIn(ctx, member.ID, teamA.ID, a.Code); err != nil {
		t.Fatalf("SignIn A: %v", err)
	}
	// Team B has no code today.
	if _, err := e.svc.SignIn(ctx, member.ID, teamB.ID, "123456"); !errors.Is(err, attendance.ErrAlreadySignedIn) {
		t.Errorf("got %v, want ErrAlreadySignedIn", err)
	}
}

func TestGenerate_OneDocumentPerTeamDay(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Chess", admin.ID)

	first, err := e.svc.Generate(ctx, team.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.svc.Regenerate(ctx, team.ID); err != nil {
			t.Fatalf("Regenerate: %v", err)
		}
		if _, err := e.svc.Generate(ctx, team.ID); err != nil {
			t.Fatalf("Generate: %v", err)
		}
	}

	n, err := e.db.Collection("team_attendance_codes").CountDocuments(ctx, bson.M{"team_id": team.ID, "date": "2026-03-09"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("got %d code documents, want 1", n)
	}

	last, err := e.svc.Regenerate(ctx, team.ID)
	if err != nil {
		t.Fatalf("Regenerate: %v", err)
	}
	if last.ID != first.ID {
		t.Errorf("regenerate changed document id: %s -> %s", first.ID.Hex(), last.ID.Hex())
	}
	if last.GeneratedAt != e.clock.UnixMilli() {
		t.Errorf("generated_at = %d, want %d", last.GeneratedAt, e.clock.UnixMilli())
	}
}

func TestGenerate_NewDayNewDocument(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Band", admin.ID)

	if _, err := e.svc.Generate(ctx, team.ID); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	e.clock = e.clock.Add(24 * time.Hour)
	tc, err := e.svc.Generate(ctx, team.ID)
	if err != nil {
		t.Fatalf("Generate next day: %v", err)
	}
	if tc.Date != "2026-03-10" {
		t.Errorf("date = %q, want 2026-03-10", tc.Date)
	}

	n, _ := e.db.Collection("team_attendance_codes").CountDocuments(ctx, bson.M{"team_id": team.ID})
	if n != 2 {
		t.Errorf("got %d documents, want 2", n)
	}
}

func TestSignIn_DayKeyUsesConfiguredZone(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	// 02:30 UTC on the 10th is still the 9th in Chicago.
	e.clock = time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
	if got := e.svc.Today(); got != "2026-03-09" {
		t.Errorf("Today() = %q, want 2026-03-09", got)
	}

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Debate", admin.ID)
	tc, err := e.svc.Generate(ctx, team.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	rec, err := e.svc.SignIn(ctx, admin.ID, team.ID, tc.Code)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if rec.Date != "2026-03-09" || rec.SignInTime != "21:30" {
		t.Errorf("got date %q time %q, want 2026-03-09 21:30", rec.Date, rec.SignInTime)
	}
}

func TestSignIn_NoCodeYet(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Drama", admin.ID)

	if _, err := e.svc.SignIn(ctx, admin.ID, team.ID, "123456"); !errors.Is(err, attendance.ErrInvalidCode) {
		t.Errorf("got %v, want ErrInvalidCode", err)
	}
}

func TestSignIn_ExactMatch(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Math", admin.ID)
	member := e.fx.CreateMember(ctx, "m")

	// Pin a code with leading zeros.
	_, err := e.db.Collection("team_attendance_codes").InsertOne(ctx, models.TeamAttendanceCode{
		TeamID: team.ID, Code: "000123", Date: "2026-03-09", GeneratedAt: e.clock.UnixMilli(),
	})
	if err != nil {
		t.Fatalf("insert code: %v", err)
	}

	for _, attempt := range []string{"123", "0123", "00123", " 000123", "000123 "} {
		if _, err := e.svc.SignIn(ctx, member.ID, team.ID, attempt); !errors.Is(err, attendance.ErrInvalidCode) {
			t.Errorf("code %q: got %v, want ErrInvalidCode", attempt, err)
		}
	}
	if _, err := e.svc.SignIn(ctx, member.ID, team.ID, "000123"); err != nil {
		t.Errorf("exact code: %v", err)
	}
}

func TestSignIn_OneRecordPerUserDayAcrossTeams(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	teamA := e.fx.CreateTeam(ctx, "A", admin.ID)
	teamB := e.fx.CreateTeam(ctx, "B", admin.ID)
	member := e.fx.CreateMember(ctx, "m")

	a, _ := e.svc.Generate(ctx, teamA.ID)
	b, _ := e.svc.Generate(ctx, teamB.ID)

	if _, err := e.svc.SignIn(ctx, member.ID, teamA.ID, a.Code); err != nil {
		t.Fatalf("SignIn A: %v", err)
	}
	if _, err := e.svc.SignIn(ctx, member.ID, teamB.ID, b.Code); !errors.Is(err, attendance.ErrAlreadySignedIn) {
		t.Errorf("SignIn B: got %v, want ErrAlreadySignedIn", err)
	}
}

func TestSignIn_ConcurrentDuplicates(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Swim", admin.ID)
	member := e.fx.CreateMember(ctx, "m")
	tc, err := e.svc.Generate(ctx, team.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	const n = 8
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := e.svc.SignIn(ctx, member.ID, team.ID, tc.Code)
			errs <- err
		}()
	}

	ok := 0
	for i := 0; i < n; i++ {
		err := <-errs
		switch {
		case err == nil:
			ok++
		case errors.Is(err, attendance.ErrAlreadySignedIn):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d sign-ins succeeded, want exactly 1", ok)
	}

	count, _ := e.db.Collection("attendance_records").CountDocuments(ctx, bson.M{"user_id": member.ID})
	if count != 1 {
		t.Errorf("got %d records, want 1", count)
	}
}

func TestTodayCodeFor(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Art", admin.ID)

	if code, found, err := e.svc.TodayCodeFor(ctx, team.ID); err != nil || found || code != "" {
		t.Fatalf("before generate: code=%q found=%v err=%v", code, found, err)
	}
	tc, _ := e.svc.Generate(ctx, team.ID)
	code, found, err := e.svc.TodayCodeFor(ctx, team.ID)
	if err != nil || !found || code != tc.Code {
		t.Errorf("after generate: code=%q found=%v err=%v, want %q", code, found, err, tc.Code)
	}
}

func TestTodayAttendanceFor(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Choir", admin.ID)
	member := e.fx.CreateMember(ctx, "m")

	if rec, err := e.svc.TodayAttendanceFor(ctx, member.ID); err != nil || rec != nil {
		t.Fatalf("before sign-in: rec=%v err=%v", rec, err)
	}
	tc, _ := e.svc.Generate(ctx, team.ID)
	signed, err := e.svc.SignIn(ctx, member.ID, team.ID, tc.Code)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	rec, err := e.svc.TodayAttendanceFor(ctx, member.ID)
	if err != nil || rec == nil || rec.ID != signed.ID {
		t.Errorf("after sign-in: rec=%v err=%v", rec, err)
	}
}

func TestTodayView_RoleConditional(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Track", admin.ID)
	member := e.fx.CreateMember(ctx, "runner")
	e.fx.AddMember(ctx, team.ID, member.ID, models.TeamRoleMember)
	outsider := e.fx.CreateMember(ctx, "outsider")

	tc, _ := e.svc.Generate(ctx, team.ID)

	mv, err := e.svc.TodayView(ctx, member.ID, team.ID)
	if err != nil {
		t.Fatalf("member view: %v", err)
	}
	if mv.Code != "" || mv.Records != nil || mv.SignedIn {
		t.Errorf("member view leaked admin data or wrong state: %+v", mv)
	}

	if _, err := e.svc.SignIn(ctx, member.ID, team.ID, tc.Code); err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	mv, _ = e.svc.TodayView(ctx, member.ID, team.ID)
	if !mv.SignedIn || mv.Record == nil {
		t.Errorf("member view after sign-in: %+v", mv)
	}

	av, err := e.svc.TodayView(ctx, admin.ID, team.ID)
	if err != nil {
		t.Fatalf("admin view: %v", err)
	}
	if av.Role != models.TeamRoleAdmin || !av.HasCode || av.Code != tc.Code {
		t.Errorf("admin view code: %+v", av)
	}
	if len(av.Records) != 1 || av.Records[0].UserID != member.ID {
		t.Errorf("admin view records: %+v", av.Records)
	}

	if _, err := e.svc.TodayView(ctx, outsider.ID, team.ID); !errors.Is(err, attendance.ErrNotTeamMember) {
		t.Errorf("outsider view: got %v, want ErrNotTeamMember", err)
	}
}

func TestRequireTeamAdmin(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Golf", admin.ID)
	member := e.fx.CreateMember(ctx, "m")
	e.fx.AddMember(ctx, team.ID, member.ID, models.TeamRoleMember)
	outsider := e.fx.CreateMember(ctx, "o")

	if err := e.svc.RequireTeamAdmin(ctx, admin.ID, team.ID); err != nil {
		t.Errorf("admin: %v", err)
	}
	if err := e.svc.RequireTeamAdmin(ctx, member.ID, team.ID); !errors.Is(err, attendance.ErrNotTeamAdmin) {
		t.Errorf("member: got %v", err)
	}
	if err := e.svc.RequireTeamAdmin(ctx, outsider.ID, team.ID); !errors.Is(err, attendance.ErrNotTeamMember) {
		t.Errorf("outsider: got %v", err)
	}
}

func TestTeamAttendance_BadDate(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	team := e.fx.CreateTeam(ctx, "Golf", admin.ID)

	if _, err := e.svc.TeamAttendance(ctx, team.ID, "03/09/2026"); !errors.Is(err, attendance.ErrBadDate) {
		t.Errorf("got %v, want ErrBadDate", err)
	}
	recs, err := e.svc.TeamAttendance(ctx, team.ID, "2026-03-09")
	if err != nil || len(recs) != 0 {
		t.Errorf("empty day: recs=%v err=%v", recs, err)
	}
}

func TestStoreFailureIsTransient(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	cancel() // already-cancelled context makes every store call fail

	_, err := e.svc.Generate(ctx, primitive.NewObjectID())
	if !attendance.IsTransient(err) || attendance.IsValidation(err) {
		t.Errorf("got %v, want transient error", err)
	}
}

func TestTodayView_SignedInElsewhere(t *testing.T) {
	e := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	admin := e.fx.CreateAdmin(ctx, "coach")
	teamA := e.fx.CreateTeam(ctx, "A", admin.ID)
	teamB := e.fx.CreateTeam(ctx, "B", admin.ID)
	member := e.fx.CreateMember(ctx, "m")
	e.fx.AddMember(ctx, teamA.ID, member.ID, models.TeamRoleMember)
	e.fx.AddMember(ctx, teamB.ID, member.ID, models.TeamRoleMember)

	a, _ := e.svc.Generate(ctx, teamA.ID)
	if _, err := e.svc.SignIn(ctx, member.ID, teamA.ID, a.Code); err != nil {
		t.Fatalf("SignIn A: %v", err)
	}

	va, err := e.svc.TodayView(ctx, member.ID, teamA.ID)
	if err != nil {
		t.Fatalf("view A: %v", err)
	}
	if !va.SignedIn || va.SignedInElsewhere {
		t.Errorf("view A: %+v", va)
	}

	vb, err := e.svc.TodayView(ctx, member.ID, teamB.ID)
	if err != nil {
		t.Fatalf("view B: %v", err)
	}
	if vb.SignedIn || vb.Record != nil || !vb.SignedInElsewhere {
		t.Errorf("view B: want signed_in_elsewhere only, got %+v", vb)
	}
}
