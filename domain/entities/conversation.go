package entities

import (
	"errors"
	"time"
)

// Conversation represents one voice session's persisted transcript.
type Conversation struct {
	ID        string     `json:"id" bson:"_id,omitempty"`
	ClientID  string     `json:"client_id" bson:"client_id"`
	StartedAt time.Time  `json:"started_at" bson:"started_at"`
	EndedAt   *time.Time `json:"ended_at" bson:"ended_at,omitempty"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
}

// Message represents a single finalized utterance in a conversation.
type Message struct {
	ID             string    `json:"id" bson:"_id,omitempty"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	Role           Role      `json:"role" bson:"role"`
	Content        string    `json:"content" bson:"content"`
	Timestamp      time.Time `json:"timestamp" bson:"timestamp"`
}

func (c *Conversation) Validate() error {
	if c.ClientID == "" {
		return errors.New("client id is required")
	}
	return nil
}

func (m *Message) Validate() error {
	if m.ConversationID == "" {
		return errors.New("conversation id is required")
	}
	if m.Role != RoleUser && m.Role != RoleAssistant && m.Role != RoleSystem {
		return errors.New("role must be SYSTEM, USER or ASSISTANT")
	}
	if m.Content == "" {
		return errors.New("content is required")
	}
	return nil
}
