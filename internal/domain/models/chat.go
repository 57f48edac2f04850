// internal/domain/models/chat.go
package models

import "time"

// Chat roles, matching the assistant model's turn roles.
const (
	ChatRoleUser  = "user"
	ChatRoleModel = "model"
)

// ChatMessage is one turn in an assistant conversation.
type ChatMessage struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	TeamID         string    `json:"team_id,omitempty"`
	Role           string    `json:"role"` // "user" | "model"
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
