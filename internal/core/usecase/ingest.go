package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

type IngestUseCase struct {
	store ports.MessageStore
	queue ports.MessageQueue
}

func NewIngestUseCase(store ports.MessageStore, queue ports.MessageQueue) *IngestUseCase {
	return &IngestUseCase{
		store: store,
		queue: queue,
	}
}

func (uc *IngestUseCase) Ingest(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	msg.RoomID = strings.TrimSpace(msg.RoomID)
	msg.UserID = strings.TrimSpace(msg.UserID)
	msg.Content = strings.TrimSpace(msg.Content)
	switch {
	case msg.RoomID == "":
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest message", fmt.Errorf("room_id is required"))
	case msg.UserID == "":
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest message", fmt.Errorf("user_id is required"))
	case msg.Content == "":
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest message", fmt.Errorf("content is required"))
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if err := uc.store.CreateMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	if err := uc.queue.PublishMessageCreated(ctx, msg.ID); err != nil {
		return nil, fmt.Errorf("publish message event: %w", err)
	}
	return &msg, nil
}
