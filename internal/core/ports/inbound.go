package ports

import (
	"context"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

// MemoryRetriever is the inbound contract for hybrid memory retrieval.
type MemoryRetriever interface {
	Retrieve(ctx context.Context, req domain.RetrievalRequest) ([]domain.ScoredCandidate, error)
}

// ContextAssembler builds provenance-tagged context blocks across a room hierarchy.
type ContextAssembler interface {
	BuildContextBlocks(ctx context.Context, roomID, userID, query string, limit int) ([]domain.ContextBlock, error)
}

// MessageIngestor stores a message and schedules it for indexing.
type MessageIngestor interface {
	Ingest(ctx context.Context, msg domain.Message) (*domain.Message, error)
}

// MessageIndexer embeds a stored message and writes it to the vector index.
type MessageIndexer interface {
	IndexByID(ctx context.Context, messageID string) error
}

// RoomManager registers rooms and their parent links.
type RoomManager interface {
	PutRoom(ctx context.Context, room domain.Room) (*domain.Room, error)
}
