package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
// Calling it more than once keeps the parameters added earlier.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T

	nextGitHubID int64
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t, nextGitHubID: 1000}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given GitHub login and role.
func (f *Fixtures) CreateUser(ctx context.Context, login, role string) models.User {
	f.t.Helper()

	f.nextGitHubID++
	now := time.Now().UTC()
	user := models.User{
		ID:        primitive.NewObjectID(),
		GitHubID:  f.nextGitHubID,
		Login:     login,
		Name:      "Test " + login,
		Email:     login + "@example.com",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("users").InsertOne(ctx, user); err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateAdmin creates a test user with the admin role.
func (f *Fixtures) CreateAdmin(ctx context.Context, login string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, login, models.RoleAdmin)
}

// CreateMember creates a test user with the member role.
func (f *Fixtures) CreateMember(ctx context.Context, login string) models.User {
	f.t.Helper()
	return f.CreateUser(ctx, login, models.RoleMember)
}

// CreateTeam creates a team owned by ownerID and records the owner as team admin.
func (f *Fixtures) CreateTeam(ctx context.Context, name string, ownerID primitive.ObjectID) models.Team {
	f.t.Helper()

	now := time.Now().UTC()
	team := models.Team{
		ID:        primitive.NewObjectID(),
		Name:      name,
		NameCI:    text.Fold(name),
		JoinCode:  strings.ToUpper(primitive.NewObjectID().Hex()[16:]),
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := f.db.Collection("teams").InsertOne(ctx, team); err != nil {
		f.t.Fatalf("failed to create test team: %v", err)
	}
	f.AddMember(ctx, team.ID, ownerID, models.TeamRoleAdmin)
	return team
}

// AddMember creates a team membership.
func (f *Fixtures) AddMember(ctx context.Context, teamID, userID primitive.ObjectID, role string) models.TeamMembership {
	f.t.Helper()

	m := models.TeamMembership{
		ID:       primitive.NewObjectID(),
		TeamID:   teamID,
		UserID:   userID,
		Role:     role,
		JoinedAt: time.Now().UTC(),
	}
	if _, err := f.db.Collection("team_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}
