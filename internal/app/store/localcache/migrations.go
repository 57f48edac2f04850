package localcache

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema versions:
// v1: insights table keyed by (user_id, team_id)
// v2: insights.source column
// v3: chat_messages table
// v4: index on chat_messages(conversation_id, created_at)
// v5: chat_messages.team_id column
const SchemaVersion = 5

type migration struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sql.Tx) error
}

// Each step is safe to re-run against a database that already has it.
var migrations = []migration{
	{1, "create insights", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS insights (
				user_id    TEXT    NOT NULL,
				team_id    TEXT    NOT NULL,
				payload    TEXT    NOT NULL,
				fetched_at INTEGER NOT NULL,
				PRIMARY KEY (user_id, team_id)
			)`)
		return err
	}},
	{2, "add insights.source", func(ctx context.Context, tx *sql.Tx) error {
		return addColumn(ctx, tx, "insights", "source", "TEXT NOT NULL DEFAULT 'webhook'")
	}},
	{3, "create chat_messages", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			CREATE TABLE IF NOT EXISTS chat_messages (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				conversation_id TEXT    NOT NULL,
				user_id         TEXT    NOT NULL,
				role            TEXT    NOT NULL,
				content         TEXT    NOT NULL,
				created_at      INTEGER NOT NULL
			)`)
		return err
	}},
	{4, "index chat_messages", func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS idx_chat_conv_created ON chat_messages (conversation_id, created_at)`)
		return err
	}},
	{5, "add chat_messages.team_id", func(ctx context.Context, tx *sql.Tx) error {
		return addColumn(ctx, tx, "chat_messages", "team_id", "TEXT NOT NULL DEFAULT ''")
	}},
}

// Version returns the schema version recorded in the database header.
func (c *Cache) Version(ctx context.Context) (int, error) {
	var v int
	if err := c.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// Migrate applies every migration above the current version, each in its
// own transaction together with the version bump.
func (c *Cache) Migrate(ctx context.Context) (from, to int, err error) {
	from, err = c.Version(ctx)
	if err != nil {
		return 0, 0, err
	}
	if from > SchemaVersion {
		return from, from, fmt.Errorf("cache schema version %d is newer than supported %d", from, SchemaVersion)
	}

	to = from
	for _, m := range migrations {
		if m.version <= to {
			continue
		}
		if err := c.step(ctx, m); err != nil {
			return from, to, fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		to = m.version
	}
	return from, to, nil
}

func (c *Cache) step(ctx context.Context, m migration) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := m.apply(ctx, tx); err != nil {
		return err
	}
	// PRAGMA does not take bound parameters.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

func addColumn(ctx context.Context, tx *sql.Tx, table, column, def string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil || exists {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, def))
	return err
}

func columnExists(ctx context.Context, tx *sql.Tx, table, column string) (bool, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid         int
			name, typ   string
			notnull, pk int
			dflt        sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
