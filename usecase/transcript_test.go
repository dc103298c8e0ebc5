package usecase

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/adapters/memory"
	"github.com/voxstream/voxstream/domain/entities"
)

func TestTranscriptRoundTrip(t *testing.T) {
	service := NewTranscriptService(memory.NewConversationRepository(), zap.NewNop())
	ctx := context.Background()

	id, err := service.StartConversation(ctx, "client-1")
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	service.Record(ctx, id, entities.RoleUser, "what is the pet policy?")
	service.Record(ctx, id, entities.RoleAssistant, "Pets are not allowed on XYZ airline.")
	service.Record(ctx, id, entities.RoleSystem, "internal note")

	turns, err := service.History(ctx, id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("Expected 2 replayable turns, got %d", len(turns))
	}
	if turns[0].Role != entities.RoleUser || turns[1].Role != entities.RoleAssistant {
		t.Errorf("Expected USER then ASSISTANT, got %v", turns)
	}

	if err := service.EndConversation(ctx, id); err != nil {
		t.Fatalf("EndConversation failed: %v", err)
	}
}

func TestRecordInvalidMessageIgnored(t *testing.T) {
	repo := memory.NewConversationRepository()
	service := NewTranscriptService(repo, zap.NewNop())
	ctx := context.Background()

	id, err := service.StartConversation(ctx, "client-1")
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}

	service.Record(ctx, id, entities.RoleUser, "")

	turns, err := service.History(ctx, id)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("Empty content should not be persisted, got %d turns", len(turns))
	}
}

func TestStartConversationRequiresClient(t *testing.T) {
	service := NewTranscriptService(memory.NewConversationRepository(), zap.NewNop())
	if _, err := service.StartConversation(context.Background(), ""); err == nil {
		t.Error("Expected validation error for empty client id")
	}
}
