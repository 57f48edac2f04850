package localcache_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/dalemusser/teampulse/internal/app/store/localcache"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"go.uber.org/zap"
)

func openTemp(t *testing.T) (*localcache.Cache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache", "teampulse.db")
	c, err := localcache.Open(context.Background(), path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestOpen_MigratesToCurrentVersion(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()

	v, err := c.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != localcache.SchemaVersion {
		t.Errorf("version = %d, want %d", v, localcache.SchemaVersion)
	}
	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	c, path := openTemp(t)
	ctx := context.Background()
	if err := c.PutInsights(ctx, models.InsightReport{UserID: "u", TeamID: "t", Insights: []string{"a"}, FetchedAt: time.Now()}); err != nil {
		t.Fatalf("PutInsights: %v", err)
	}
	_ = c.Close()

	c2, err := localcache.Open(ctx, path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c2.Close()

	from, to, err := c2.Migrate(ctx)
	if err != nil || from != to || to != localcache.SchemaVersion {
		t.Errorf("Migrate on current db: from=%d to=%d err=%v", from, to, err)
	}
	r, err := c2.GetInsights(ctx, "u", "t")
	if err != nil || r == nil {
		t.Fatalf("data lost across reopen: r=%v err=%v", r, err)
	}
}

// legacyDB builds a database as an older release left it.
func legacyDB(t *testing.T, stmts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("%s: %v", s, err)
		}
	}
	return path
}

func TestMigrate_FromVersion1(t *testing.T) {
	path := legacyDB(t,
		`CREATE TABLE insights (user_id TEXT NOT NULL, team_id TEXT NOT NULL, payload TEXT NOT NULL, fetched_at INTEGER NOT NULL, PRIMARY KEY (user_id, team_id))`,
		`INSERT INTO insights VALUES ('u1', 't1', '["old"]', 1000)`,
		`PRAGMA user_version = 1`,
	)

	c, err := localcache.Open(context.Background(), path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	r, err := c.GetInsights(context.Background(), "u1", "t1")
	if err != nil || r == nil {
		t.Fatalf("GetInsights: r=%v err=%v", r, err)
	}
	if r.Source != models.InsightSourceWebhook {
		t.Errorf("backfilled source = %q, want webhook", r.Source)
	}
	if !reflect.DeepEqual(r.Insights, []string{"old"}) {
		t.Errorf("insights = %v", r.Insights)
	}

	if _, err := c.AppendMessage(context.Background(), models.ChatMessage{ConversationID: "c", UserID: "u1", TeamID: "t1", Role: models.ChatRoleUser, Content: "hi"}); err != nil {
		t.Errorf("chat table unusable after migration: %v", err)
	}
}

func TestMigrate_StepsAreIdempotent(t *testing.T) {
	// Version says 1 but the v2 and v3 changes are already present.
	path := legacyDB(t,
		`CREATE TABLE insights (user_id TEXT NOT NULL, team_id TEXT NOT NULL, payload TEXT NOT NULL, fetched_at INTEGER NOT NULL, source TEXT NOT NULL DEFAULT 'webhook', PRIMARY KEY (user_id, team_id))`,
		`CREATE TABLE chat_messages (id INTEGER PRIMARY KEY AUTOINCREMENT, conversation_id TEXT NOT NULL, user_id TEXT NOT NULL, role TEXT NOT NULL, content TEXT NOT NULL, created_at INTEGER NOT NULL, team_id TEXT NOT NULL DEFAULT '')`,
		`PRAGMA user_version = 1`,
	)

	c, err := localcache.Open(context.Background(), path, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if v, _ := c.Version(context.Background()); v != localcache.SchemaVersion {
		t.Errorf("version = %d", v)
	}
}

func TestMigrate_RejectsNewerSchema(t *testing.T) {
	path := legacyDB(t, `PRAGMA user_version = 99`)
	if _, err := localcache.Open(context.Background(), path, zap.NewNop()); err == nil {
		t.Error("expected error for a schema newer than supported")
	}
}

func TestInsights_PutAndGet(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()

	if r, err := c.GetInsights(ctx, "u1", "t1"); err != nil || r != nil {
		t.Fatalf("empty cache: r=%v err=%v", r, err)
	}

	first := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	if err := c.PutInsights(ctx, models.InsightReport{
		UserID: "u1", TeamID: "t1", Insights: []string{"one"}, Source: models.InsightSourceFallback, FetchedAt: first,
	}); err != nil {
		t.Fatalf("PutInsights: %v", err)
	}
	second := first.Add(time.Hour)
	if err := c.PutInsights(ctx, models.InsightReport{
		UserID: "u1", TeamID: "t1", Insights: []string{"two", "three"}, Source: models.InsightSourceWebhook, FetchedAt: second,
	}); err != nil {
		t.Fatalf("PutInsights overwrite: %v", err)
	}

	r, err := c.GetInsights(ctx, "u1", "t1")
	if err != nil {
		t.Fatalf("GetInsights: %v", err)
	}
	if !reflect.DeepEqual(r.Insights, []string{"two", "three"}) || r.Source != models.InsightSourceWebhook || !r.FetchedAt.Equal(second) {
		t.Errorf("unexpected report: %+v", r)
	}

	if r, _ := c.GetInsights(ctx, "u1", "other-team"); r != nil {
		t.Errorf("reports must be scoped per team, got %+v", r)
	}
}

func TestPruneInsights(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	_ = c.PutInsights(ctx, models.InsightReport{UserID: "old", TeamID: "t", Insights: []string{"x"}, FetchedAt: now.Add(-48 * time.Hour)})
	_ = c.PutInsights(ctx, models.InsightReport{UserID: "new", TeamID: "t", Insights: []string{"y"}, FetchedAt: now})

	n, err := c.PruneInsights(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PruneInsights: n=%d err=%v", n, err)
	}
	if r, _ := c.GetInsights(ctx, "new", "t"); r == nil {
		t.Error("recent report was pruned")
	}
}

func TestHistory(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)

	for i, content := range []string{"a", "b", "c", "d"} {
		role := models.ChatRoleUser
		if i%2 == 1 {
			role = models.ChatRoleModel
		}
		m, err := c.AppendMessage(ctx, models.ChatMessage{
			ConversationID: "conv", UserID: "u1", Role: role, Content: content, CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
		if m.ID == 0 {
			t.Error("expected assigned id")
		}
	}
	_, _ = c.AppendMessage(ctx, models.ChatMessage{ConversationID: "other", UserID: "u2", Role: models.ChatRoleUser, Content: "z", CreatedAt: base})

	all, err := c.History(ctx, "conv", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if got := contents(all); !reflect.DeepEqual(got, []string{"a", "b", "c", "d"}) {
		t.Errorf("full history = %v", got)
	}

	last, _ := c.History(ctx, "conv", 2)
	if got := contents(last); !reflect.DeepEqual(got, []string{"c", "d"}) {
		t.Errorf("last two = %v", got)
	}

	owner, found, err := c.ConversationOwner(ctx, "conv")
	if err != nil || !found || owner != "u1" {
		t.Errorf("ConversationOwner = %q %v %v", owner, found, err)
	}
	if _, found, _ := c.ConversationOwner(ctx, "missing"); found {
		t.Error("missing conversation should not be found")
	}
}

func TestPruneMessages(t *testing.T) {
	c, _ := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	_, _ = c.AppendMessage(ctx, models.ChatMessage{ConversationID: "c", UserID: "u", Role: models.ChatRoleUser, Content: "old", CreatedAt: now.Add(-100 * 24 * time.Hour)})
	_, _ = c.AppendMessage(ctx, models.ChatMessage{ConversationID: "c", UserID: "u", Role: models.ChatRoleUser, Content: "new", CreatedAt: now})

	n, err := c.PruneMessages(ctx, now.Add(-30*24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PruneMessages: n=%d err=%v", n, err)
	}
	h, _ := c.History(ctx, "c", 0)
	if got := contents(h); !reflect.DeepEqual(got, []string{"new"}) {
		t.Errorf("history after prune = %v", got)
	}
}

func contents(ms []models.ChatMessage) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Content
	}
	return out
}
