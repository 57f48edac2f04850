package localcache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dalemusser/teampulse/internal/domain/models"
)

// AppendMessage stores m and returns it with its assigned ID.
func (c *Cache) AppendMessage(ctx context.Context, m models.ChatMessage) (models.ChatMessage, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res, err := c.db.ExecContext(ctx, `
		INSERT INTO chat_messages (conversation_id, user_id, team_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ConversationID, m.UserID, m.TeamID, m.Role, m.Content, m.CreatedAt.UnixMilli())
	if err != nil {
		return models.ChatMessage{}, err
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return models.ChatMessage{}, err
	}
	return m, nil
}

// History returns the last limit messages of a conversation, oldest first.
// limit <= 0 returns the whole conversation.
func (c *Cache) History(ctx context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, team_id, role, content, created_at FROM (
			SELECT * FROM chat_messages
			WHERE conversation_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		) ORDER BY created_at ASC, id ASC`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []models.ChatMessage{}
	for rows.Next() {
		var (
			m       models.ChatMessage
			created int64
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.TeamID, &m.Role, &m.Content, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// ConversationOwner returns the user who started a conversation.
func (c *Cache) ConversationOwner(ctx context.Context, conversationID string) (userID string, found bool, err error) {
	err = c.db.QueryRowContext(ctx, `
		SELECT user_id FROM chat_messages
		WHERE conversation_id = ?
		ORDER BY id ASC LIMIT 1`, conversationID).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return userID, true, nil
}

// PruneMessages deletes messages created before cutoff.
func (c *Cache) PruneMessages(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
