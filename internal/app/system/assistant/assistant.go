// internal/app/system/assistant/assistant.go
package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/teampulse/internal/app/store/localcache"
	"github.com/dalemusser/teampulse/internal/app/system/htmlsanitize"
	"github.com/dalemusser/teampulse/internal/domain/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HistoryLimit is how many earlier messages are sent with each request.
const HistoryLimit = 20

const systemPrompt = `You are the TeamPulse assistant. You help team members and team admins ` +
	`with daily attendance check-in, team management and improving their performance. ` +
	`Answer briefly in plain text without markup.`

const emptyReply = "Sorry, I don't have an answer for that right now."

var (
	ErrUnavailable = errors.New("assistant is not configured")
	ErrNotFound    = errors.New("conversation not found")
)

// Generator produces the next model turn for a conversation.
type Generator interface {
	Generate(ctx context.Context, system string, history []models.ChatMessage) (string, error)
}

// Service runs assistant conversations and keeps their history in the
// local cache.
type Service struct {
	cache *localcache.Cache
	gen   Generator
	log   *zap.Logger
	now   func() time.Time
}

// New returns a Service. A nil gen makes Send return ErrUnavailable.
func New(cache *localcache.Cache, gen Generator, logger *zap.Logger) *Service {
	return &Service{cache: cache, gen: gen, log: logger, now: time.Now}
}

// Enabled reports whether a model is configured.
func (s *Service) Enabled() bool { return s.gen != nil }

// Reply is the outcome of one Send.
type Reply struct {
	ConversationID string             `json:"conversation_id"`
	Message        models.ChatMessage `json:"message"`
}

// Send adds the user's message to the conversation and returns the model's
// reply. An empty conversationID starts a new conversation. Both turns are
// stored only after the model answers.
func (s *Service) Send(ctx context.Context, userID, teamID, conversationID, text string) (Reply, error) {
	if s.gen == nil {
		return Reply{}, ErrUnavailable
	}

	if conversationID == "" {
		conversationID = uuid.NewString()
	} else if err := s.checkOwner(ctx, userID, conversationID); err != nil {
		return Reply{}, err
	}

	history, err := s.cache.History(ctx, conversationID, HistoryLimit-1)
	if err != nil {
		return Reply{}, fmt.Errorf("load history: %w", err)
	}

	userMsg := models.ChatMessage{
		ConversationID: conversationID,
		UserID:         userID,
		TeamID:         teamID,
		Role:           models.ChatRoleUser,
		Content:        htmlsanitize.Text(text),
		CreatedAt:      s.now().UTC(),
	}
	history = append(history, userMsg)

	raw, err := s.gen.Generate(ctx, systemPrompt, history)
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}
	answer := htmlsanitize.Text(raw)
	if answer == "" {
		s.log.Warn("assistant returned an empty reply", zap.String("conversation_id", conversationID))
		answer = emptyReply
	}

	if _, err := s.cache.AppendMessage(ctx, userMsg); err != nil {
		return Reply{}, fmt.Errorf("store message: %w", err)
	}
	modelMsg, err := s.cache.AppendMessage(ctx, models.ChatMessage{
		ConversationID: conversationID,
		UserID:         userID,
		TeamID:         teamID,
		Role:           models.ChatRoleModel,
		Content:        answer,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return Reply{}, fmt.Errorf("store reply: %w", err)
	}
	return Reply{ConversationID: conversationID, Message: modelMsg}, nil
}

// Conversation returns the full history of a conversation owned by userID.
func (s *Service) Conversation(ctx context.Context, userID, conversationID string) ([]models.ChatMessage, error) {
	if err := s.checkOwner(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.cache.History(ctx, conversationID, 0)
}

// Another user's conversation looks the same as a missing one.
func (s *Service) checkOwner(ctx context.Context, userID, conversationID string) error {
	owner, found, err := s.cache.ConversationOwner(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if !found || owner != userID {
		return ErrNotFound
	}
	return nil
}
