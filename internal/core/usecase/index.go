package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

type IndexUseCase struct {
	store    ports.MessageStore
	embedder ports.Embedder
	index    ports.VectorIndexer
}

func NewIndexUseCase(store ports.MessageStore, embedder ports.Embedder, index ports.VectorIndexer) *IndexUseCase {
	return &IndexUseCase{
		store:    store,
		embedder: embedder,
		index:    index,
	}
}

func (uc *IndexUseCase) IndexByID(ctx context.Context, messageID string) error {
	msg, err := uc.store.GetMessage(ctx, messageID)
	if err != nil {
		return fmt.Errorf("load message: %w", err)
	}

	vectors, err := uc.embedder.Embed(ctx, []string{msg.Content})
	if err != nil {
		return fmt.Errorf("embed message: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return fmt.Errorf("embed message: expected 1 vector, got %d", len(vectors))
	}

	if err := uc.index.IndexMessage(ctx, *msg, vectors[0]); err != nil {
		return fmt.Errorf("index message: %w", err)
	}
	return nil
}
