// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

The two unique attendance indexes carry the daily invariants: one code per
(team_id, date) and one check-in per (user_id, date). Stores translate the
resulting duplicate-key errors into their sentinel errors.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	steps := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"teams", ensureTeams},
		{"team_memberships", ensureTeamMemberships},
		{"team_attendance_codes", ensureAttendanceCodes},
		{"attendance_records", ensureAttendanceRecords},
		{"oauth_states", ensureOAuthStates},
	}

	var problems []string
	for _, s := range steps {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func isTrue(b *bool) bool { return b != nil && *b }

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	out := map[string]existingIndex{}
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return out
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		out[keySig(idx.Key)] = idx
	}
	return out
}

// recreate drops the index called oldName and creates m in its place.
func recreate(ctx context.Context, coll *mongo.Collection, oldName string, m mongo.IndexModel) error {
	if _, err := coll.Indexes().DropOne(ctx, oldName); err != nil {
		return fmt.Errorf("drop %s: %w", oldName, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		if isDuplicateKeyErr(err) {
			return fmt.Errorf("cannot create unique index (duplicates present): %w", err)
		}
		return err
	}
	return nil
}

// ensureIndex makes one desired index exist with the desired name and
// uniqueness, reusing a matching index when possible.
func ensureIndex(ctx context.Context, coll *mongo.Collection, m mongo.IndexModel) error {
	var desiredName string
	var desiredUnique *bool
	if m.Options != nil {
		if m.Options.Name != nil {
			desiredName = *m.Options.Name
		}
		desiredUnique = m.Options.Unique
	}
	sig := keySig(m.Keys.(bson.D))
	start := time.Now()
	log := zap.L().With(
		zap.String("collection", coll.Name()),
		zap.String("name", desiredName),
		zap.String("keys", sig),
		zap.Bool("unique", isTrue(desiredUnique)))

	if ex, ok := listExisting(ctx, coll)[sig]; ok {
		switch {
		case isTrue(desiredUnique) != isTrue(ex.Unique):
			// Options mismatch (e.g., upgrading to unique).
			if err := recreate(ctx, coll, ex.Name, m); err != nil {
				return err
			}
			log.Info("index dropped and recreated", zap.Duration("took", time.Since(start)))
		case desiredName != "" && ex.Name != desiredName:
			if err := recreate(ctx, coll, ex.Name, m); err != nil {
				return err
			}
			log.Info("index renamed", zap.String("from", ex.Name), zap.Duration("took", time.Since(start)))
		default:
			log.Debug("reusing existing index", zap.Duration("took", time.Since(start)))
		}
		return nil
	}

	created, err := coll.Indexes().CreateOne(ctx, m)
	if err == nil {
		log.Info("index ensured", zap.String("created_name", created), zap.Duration("took", time.Since(start)))
		return nil
	}
	if !isOptionsConflictErr(err) {
		log.Warn("index ensure failed", zap.Error(err))
		return err
	}

	// Another index with the same keys appeared between List and CreateOne.
	ex, ok := listExisting(ctx, coll)[sig]
	if !ok {
		return err
	}
	if isTrue(desiredUnique) == isTrue(ex.Unique) {
		log.Info("reusing existing index (post-conflict)", zap.String("existing", ex.Name))
		return nil
	}
	return recreate(ctx, coll, ex.Name, m)
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		if err := ensureIndex(ctx, coll, m); err != nil {
			name := ""
			if m.Options != nil && m.Options.Name != nil {
				name = *m.Options.Name
			}
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		// One account per GitHub identity.
		{
			Keys:    bson.D{{Key: "github_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_github_id"),
		},
		{
			Keys:    bson.D{{Key: "login", Value: 1}},
			Options: options.Index().SetName("idx_users_login"),
		},
	})
}

func ensureTeams(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("teams"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "join_code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_teams_join_code"),
		},
		// Team names are unique per owner (case/diacritics folded).
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_teams_owner_nameci"),
		},
	})
}

func ensureTeamMemberships(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("team_memberships"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_tm_team_user"),
		},
		// "my teams" lookups
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "joined_at", Value: 1}},
			Options: options.Index().SetName("idx_tm_user_joined"),
		},
	})
}

func ensureAttendanceCodes(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("team_attendance_codes"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "team_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_codes_team_date"),
		},
	})
}

func ensureAttendanceRecords(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("attendance_records"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_attendance_user_date"),
		},
		// Admin view of a team's day, in check-in order.
		{
			Keys: bson.D{
				{Key: "team_id", Value: 1},
				{Key: "date", Value: 1},
				{Key: "timestamp", Value: 1},
			},
			Options: options.Index().SetName("idx_attendance_team_date_ts"),
		},
	})
}

func ensureOAuthStates(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("oauth_states"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauth_state"),
		},
		// TTL cleanup of abandoned logins.
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauth_ttl"),
		},
	})
}
