package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

type RoomUseCase struct {
	rooms    ports.RoomDirectory
	registry ports.RoomRegistry
	maxDepth int
}

func NewRoomUseCase(rooms ports.RoomDirectory, registry ports.RoomRegistry, maxAncestorDepth int) *RoomUseCase {
	if maxAncestorDepth <= 0 {
		maxAncestorDepth = defaultMaxAncestorDepth
	}
	return &RoomUseCase{
		rooms:    rooms,
		registry: registry,
		maxDepth: maxAncestorDepth,
	}
}

// PutRoom creates or re-parents a room. A parent link that would close a cycle or push the
// chain past the ancestor limit is rejected.
func (uc *RoomUseCase) PutRoom(ctx context.Context, room domain.Room) (*domain.Room, error) {
	room.ID = strings.TrimSpace(room.ID)
	room.ParentID = strings.TrimSpace(room.ParentID)
	room.DisplayName = strings.TrimSpace(room.DisplayName)
	if room.ID == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "put room", fmt.Errorf("room id is required"))
	}
	if room.ParentID == room.ID {
		return nil, domain.WrapError(domain.ErrInvalidInput, "put room", fmt.Errorf("room %s cannot be its own parent", room.ID))
	}

	if room.ParentID != "" {
		if err := uc.checkParent(ctx, room); err != nil {
			return nil, err
		}
	}

	if err := uc.registry.UpsertRoom(ctx, room); err != nil {
		return nil, fmt.Errorf("upsert room: %w", err)
	}
	return &room, nil
}

func (uc *RoomUseCase) checkParent(ctx context.Context, room domain.Room) error {
	ancestors := 0
	current := room.ParentID
	for current != "" {
		if current == room.ID {
			return domain.WrapError(domain.ErrInvalidInput, "put room",
				fmt.Errorf("parent %s would create a cycle through %s", room.ParentID, room.ID))
		}
		ancestors++
		if ancestors > uc.maxDepth {
			return domain.WrapError(domain.ErrInvalidInput, "put room",
				fmt.Errorf("room %s would exceed %d ancestors", room.ID, uc.maxDepth))
		}

		parent, err := uc.rooms.GetRoom(ctx, current)
		if err != nil {
			if domain.IsKind(err, domain.ErrRoomNotFound) && current == room.ParentID {
				return domain.WrapError(domain.ErrInvalidInput, "put room", fmt.Errorf("parent room %s does not exist", current))
			}
			if domain.IsKind(err, domain.ErrRoomNotFound) {
				return nil
			}
			return fmt.Errorf("load ancestor %s: %w", current, err)
		}
		current = strings.TrimSpace(parent.ParentID)
	}
	return nil
}
