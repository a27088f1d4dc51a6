package ports

import (
	"context"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

// LexicalSearcher runs full-text search scoped to rooms and a user.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, query string, roomIDs []string, userID string, limit int) ([]domain.Candidate, error)
}

// VectorSearcher runs similarity search for a query embedding scoped to rooms and a user.
type VectorSearcher interface {
	SearchVector(ctx context.Context, vector []float32, roomIDs []string, userID string, limit int) ([]domain.Candidate, error)
}

// VectorIndexer writes message embeddings.
type VectorIndexer interface {
	IndexMessage(ctx context.Context, msg domain.Message, vector []float32) error
}

// Embedder builds vectors for messages and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker reorders the head of a fused ranking. Implementations assign Score.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.ScoredCandidate) ([]domain.ScoredCandidate, error)
}

// RoomDirectory resolves room metadata and parent links.
type RoomDirectory interface {
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
}

// RoomRegistry creates or updates rooms.
type RoomRegistry interface {
	UpsertRoom(ctx context.Context, room domain.Room) error
}

// MessageStore persists messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg *domain.Message) error
	GetMessage(ctx context.Context, id string) (*domain.Message, error)
}

// MessageQueue publishes/consumes message-created events.
type MessageQueue interface {
	PublishMessageCreated(ctx context.Context, messageID string) error
	SubscribeMessageCreated(ctx context.Context, handler func(context.Context, string) error) error
}

// RetrievalObserver receives retrieval outcomes for metrics.
type RetrievalObserver interface {
	ObserveProviderFailure(source domain.CandidateSource)
	ObserveMalformed(source domain.CandidateSource, count int)
	ObserveRetrieval(outcome string, candidates int, seconds float64)
}
