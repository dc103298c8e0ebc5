package repositories

import (
	"context"

	"github.com/voxstream/voxstream/domain/entities"
)

// ConversationRepository defines data access methods for conversations and
// their messages.
type ConversationRepository interface {
	Create(ctx context.Context, conversation *entities.Conversation) error
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	End(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, message *entities.Message) error
	// GetRecentMessages returns up to limit most recent messages for the
	// conversation, oldest first.
	GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*entities.Message, error)
}
