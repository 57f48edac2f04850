// internal/app/store/localcache/cache.go
package localcache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Cache is the local SQLite database holding cached insights and assistant
// chat history. MongoDB stays the source of truth for everything else.
type Cache struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens (creating if needed) the database at path and migrates it to
// SchemaVersion. path may be ":memory:".
func Open(ctx context.Context, path string, logger *zap.Logger) (*Cache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases alive across calls.
	db.SetMaxOpenConns(1)

	c := &Cache{db: db, log: logger}
	from, to, err := c.Migrate(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if from != to {
		logger.Info("local cache migrated",
			zap.String("path", path),
			zap.Int("from_version", from),
			zap.Int("to_version", to))
	}
	return c, nil
}

// Ping checks the database is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
