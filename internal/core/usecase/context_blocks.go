package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

const defaultMaxAncestorDepth = 8

type ContextUseCase struct {
	retriever ports.MemoryRetriever
	rooms     ports.RoomDirectory
	maxDepth  int
	logger    *slog.Logger
}

func NewContextUseCase(retriever ports.MemoryRetriever, rooms ports.RoomDirectory, maxAncestorDepth int) *ContextUseCase {
	if maxAncestorDepth <= 0 {
		maxAncestorDepth = defaultMaxAncestorDepth
	}
	return &ContextUseCase{
		retriever: retriever,
		rooms:     rooms,
		maxDepth:  maxAncestorDepth,
		logger:    slog.Default(),
	}
}

func (uc *ContextUseCase) SetLogger(logger *slog.Logger) {
	if logger != nil {
		uc.logger = logger
	}
}

// BuildContextBlocks retrieves memories from roomID and all of its ancestors and tags
// every block with the room it came from. Retrieval order is preserved.
func (uc *ContextUseCase) BuildContextBlocks(
	ctx context.Context,
	roomID, userID, query string,
	limit int,
) ([]domain.ContextBlock, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "build context", fmt.Errorf("room_id is required"))
	}

	ctx, span := tracer.Start(ctx, "memory.context", trace.WithAttributes(attribute.String("memory.room_id", roomID)))
	defer span.End()

	chain, err := uc.resolveChain(ctx, roomID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("memory.ancestors", len(chain)-1))

	roomIDs := make([]string, 0, len(chain))
	byID := make(map[string]domain.Room, len(chain))
	for _, room := range chain {
		roomIDs = append(roomIDs, room.ID)
		byID[room.ID] = room
	}

	candidates, err := uc.retriever.Retrieve(ctx, domain.RetrievalRequest{
		Query:   query,
		RoomIDs: roomIDs,
		UserID:  userID,
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve memories: %w", err)
	}

	blocks := make([]domain.ContextBlock, 0, len(candidates))
	for _, c := range candidates {
		origin := c.RoomID
		if origin == "" {
			origin = roomID
		}
		blocks = append(blocks, domain.ContextBlock{
			Content:   c.Content,
			RoomID:    origin,
			RoomName:  uc.roomName(ctx, byID, origin),
			Source:    c.SourceTag(),
			MessageID: c.ID,
			Score:     c.Score,
			Inherited: origin != roomID,
		})
	}
	return blocks, nil
}

// resolveChain walks parent links upward from roomID. The walk is bounded by maxDepth
// ancestors and stops with ErrHierarchyCorrupt on a revisited room.
func (uc *ContextUseCase) resolveChain(ctx context.Context, roomID string) ([]domain.Room, error) {
	start, err := uc.lookupRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	chain := []domain.Room{*start}
	visited := map[string]struct{}{start.ID: {}}
	parentID := strings.TrimSpace(start.ParentID)

	for parentID != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if _, seen := visited[parentID]; seen {
			return nil, domain.WrapError(domain.ErrHierarchyCorrupt, "resolve ancestors",
				fmt.Errorf("cycle through room %s starting at %s", parentID, roomID))
		}
		if len(chain)-1 >= uc.maxDepth {
			return nil, domain.WrapError(domain.ErrHierarchyCorrupt, "resolve ancestors",
				fmt.Errorf("room %s has more than %d ancestors", roomID, uc.maxDepth))
		}

		parent, err := uc.lookupRoom(ctx, parentID)
		if err != nil {
			if domain.IsKind(err, domain.ErrRoomNotFound) {
				uc.logger.Warn("room_parent_missing", "room_id", chain[len(chain)-1].ID, "parent_id", parentID)
				break
			}
			return nil, fmt.Errorf("resolve ancestor %s: %w", parentID, err)
		}

		chain = append(chain, *parent)
		visited[parent.ID] = struct{}{}
		parentID = strings.TrimSpace(parent.ParentID)
	}
	return chain, nil
}

func (uc *ContextUseCase) lookupRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	room, err := uc.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, domain.WrapError(domain.ErrRoomNotFound, "get room", fmt.Errorf("id=%s", roomID))
	}
	if room.ID == "" {
		room.ID = roomID
	}
	return room, nil
}

func (uc *ContextUseCase) roomName(ctx context.Context, known map[string]domain.Room, roomID string) string {
	if room, ok := known[roomID]; ok {
		return room.Name()
	}
	room, err := uc.lookupRoom(ctx, roomID)
	if err != nil {
		return roomID
	}
	known[roomID] = *room
	return room.Name()
}
