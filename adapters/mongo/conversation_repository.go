package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/voxstream/voxstream/domain/entities"
	"github.com/voxstream/voxstream/domain/repositories"
)

var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
}

// NewConversationRepository creates a MongoDB-backed conversation store
func NewConversationRepository(db *mongo.Database) repositories.ConversationRepository {
	return &ConversationRepository{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
	}
}

// Create implements repositories.ConversationRepository
func (r *ConversationRepository) Create(ctx context.Context, conversation *entities.Conversation) error {
	if conversation == nil {
		return errors.New("conversation cannot be nil")
	}
	if conversation.CreatedAt.IsZero() {
		conversation.CreatedAt = time.Now()
	}

	doc := bson.M{
		"_id":        conversation.ID,
		"client_id":  conversation.ClientID,
		"started_at": conversation.StartedAt,
		"created_at": conversation.CreatedAt,
	}
	if _, err := r.conversations.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}
	return nil
}

// GetByID implements repositories.ConversationRepository
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	var conversation entities.Conversation
	err := r.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &conversation, nil
}

// End implements repositories.ConversationRepository
func (r *ConversationRepository) End(ctx context.Context, id string) error {
	now := time.Now()
	result, err := r.conversations.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"ended_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to end conversation: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// AppendMessage implements repositories.ConversationRepository
func (r *ConversationRepository) AppendMessage(ctx context.Context, message *entities.Message) error {
	if message == nil {
		return errors.New("message cannot be nil")
	}
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}

	doc := bson.M{
		"_id":             message.ID,
		"conversation_id": message.ConversationID,
		"role":            message.Role,
		"content":         message.Content,
		"timestamp":       message.Timestamp,
	}
	if _, err := r.messages.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// GetRecentMessages implements repositories.ConversationRepository
func (r *ConversationRepository) GetRecentMessages(ctx context.Context, conversationID string, limit int) ([]*entities.Message, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))
	cursor, err := r.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []*entities.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	// Query sorted newest first to apply the limit; flip to oldest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
