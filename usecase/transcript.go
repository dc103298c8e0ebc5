package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/domain/repositories"
)

// TranscriptService persists finalized utterances and replays recent history
// into new sessions.
type TranscriptService struct {
	conversations repositories.ConversationRepository
	logger        *zap.Logger
	historyLimit  int
}

func NewTranscriptService(conversations repositories.ConversationRepository, logger *zap.Logger) *TranscriptService {
	return &TranscriptService{
		conversations: conversations,
		logger:        logger,
		historyLimit:  20,
	}
}

// StartConversation opens a persisted conversation for the client and
// returns its id.
func (s *TranscriptService) StartConversation(ctx context.Context, clientID string) (string, error) {
	conversation := &entities.Conversation{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		StartedAt: time.Now(),
		CreatedAt: time.Now(),
	}
	if err := conversation.Validate(); err != nil {
		return "", err
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return "", fmt.Errorf("creating conversation: %w", err)
	}
	return conversation.ID, nil
}

// Record appends one finalized utterance. Persistence failures are logged,
// not propagated; losing a transcript line must not disturb the live
// session.
func (s *TranscriptService) Record(ctx context.Context, conversationID string, role entities.Role, content string) {
	message := &entities.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Timestamp:      time.Now(),
	}
	if err := message.Validate(); err != nil {
		s.logger.Warn("dropping invalid transcript message",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return
	}
	if err := s.conversations.AppendMessage(ctx, message); err != nil {
		s.logger.Error("persisting transcript message failed",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
	}
}

// History returns the conversation's recent turns in replay form, oldest
// first.
func (s *TranscriptService) History(ctx context.Context, conversationID string) ([]entities.HistoryTurn, error) {
	messages, err := s.conversations.GetRecentMessages(ctx, conversationID, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("loading conversation history: %w", err)
	}
	turns := make([]entities.HistoryTurn, 0, len(messages))
	for _, message := range messages {
		if message.Role != entities.RoleUser && message.Role != entities.RoleAssistant {
			continue
		}
		turns = append(turns, entities.HistoryTurn{
			Role:    message.Role,
			Content: message.Content,
		})
	}
	return turns, nil
}

// EndConversation marks the conversation finished.
func (s *TranscriptService) EndConversation(ctx context.Context, conversationID string) error {
	if err := s.conversations.End(ctx, conversationID); err != nil {
		return fmt.Errorf("ending conversation: %w", err)
	}
	return nil
}
