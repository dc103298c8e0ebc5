// Package memory provides in-memory repository implementations used in
// development and tests, where no database is configured.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/domain/repositories"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*entities.Conversation
	messages      map[string][]*entities.Message
}

func NewConversationRepository() repositories.ConversationRepository {
	return &ConversationRepository{
		conversations: make(map[string]*entities.Conversation),
		messages:      make(map[string][]*entities.Message),
	}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *conversation
	r.conversations[conversation.ID] = &stored
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conversation, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	result := *conversation
	return &result, nil
}

func (r *ConversationRepository) End(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	now := time.Now()
	conversation.EndedAt = &now
	return nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, message *entities.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *message
	r.messages[message.ConversationID] = append(r.messages[message.ConversationID], &stored)
	return nil
}

func (r *ConversationRepository) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*entities.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := r.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]*entities.Message, len(all))
	for i, message := range all {
		copied := *message
		out[i] = &copied
	}
	return out, nil
}
