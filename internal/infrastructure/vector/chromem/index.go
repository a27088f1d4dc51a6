package chromem

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

// Index is an embedded vector index with one collection per user. It implements
// ports.VectorSearcher and ports.VectorIndexer for single-node deployments.
type Index struct {
	db     *chromem.DB
	prefix string

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// Open loads or creates a persistent database under path. An empty path keeps everything in memory.
func Open(path, prefix string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return NewWithDB(chromem.NewDB(), prefix), nil
	}
	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("open chromem db: %w", err)
	}
	return NewWithDB(db, prefix), nil
}

func NewWithDB(db *chromem.DB, prefix string) *Index {
	if prefix == "" {
		prefix = "memory_messages"
	}
	return &Index{
		db:          db,
		prefix:      prefix,
		collections: make(map[string]*chromem.Collection),
	}
}

func (i *Index) collection(userID string) (*chromem.Collection, error) {
	i.mu.RLock()
	col, ok := i.collections[userID]
	i.mu.RUnlock()
	if ok {
		return col, nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if col, ok := i.collections[userID]; ok {
		return col, nil
	}

	col, err := i.db.GetOrCreateCollection(i.prefix+"_"+userID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem collection for user %s: %w", userID, err)
	}
	i.collections[userID] = col
	return col, nil
}

func (i *Index) IndexMessage(ctx context.Context, msg domain.Message, vector []float32) error {
	if len(vector) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "chromem index", fmt.Errorf("empty vector for message %s", msg.ID))
	}
	col, err := i.collection(msg.UserID)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        msg.ID,
		Content:   msg.Content,
		Embedding: vector,
		Metadata: map[string]string{
			"room_id":    msg.RoomID,
			"user_id":    msg.UserID,
			"created_at": strconv.FormatInt(msg.CreatedAt.Unix(), 10),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("chromem add document: %w", err)
	}
	return nil
}

// SearchVector queries each room separately, since metadata filters only match one value,
// and keeps the best limit results overall.
func (i *Index) SearchVector(ctx context.Context, vector []float32, roomIDs []string, userID string, limit int) ([]domain.Candidate, error) {
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chromem vector search", fmt.Errorf("empty query vector"))
	}
	if limit <= 0 {
		limit = 10
	}
	col, err := i.collection(userID)
	if err != nil {
		return nil, err
	}

	total := col.Count()
	if total == 0 {
		return []domain.Candidate{}, nil
	}
	n := min(limit, total)

	out := make([]domain.Candidate, 0, n*len(roomIDs))
	for _, roomID := range roomIDs {
		results, err := col.QueryEmbedding(ctx, vector, n, map[string]string{"room_id": roomID}, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("chromem query room %s: %w", roomID, err)
		}
		for _, r := range results {
			createdAt, _ := strconv.ParseInt(r.Metadata["created_at"], 10, 64)
			out = append(out, domain.Candidate{
				ID:        r.ID,
				RoomID:    r.Metadata["room_id"],
				UserID:    r.Metadata["user_id"],
				Content:   r.Content,
				RawScore:  float64(r.Similarity),
				Timestamp: createdAt,
				Source:    domain.SourceVector,
			})
		}
	}

	sort.SliceStable(out, func(a, b int) bool { return out[a].RawScore > out[b].RawScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
