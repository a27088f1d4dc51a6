package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

type RoomRepository struct {
	db *sql.DB
}

func NewRoomRepository(db *sql.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, COALESCE(parent_id, ''), display_name
FROM rooms
WHERE id = $1
`, roomID)

	var room domain.Room
	if err := row.Scan(&room.ID, &room.ParentID, &room.DisplayName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRoomNotFound, "get room", fmt.Errorf("id=%s", roomID))
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &room, nil
}

func (r *RoomRepository) UpsertRoom(ctx context.Context, room domain.Room) error {
	var parent any
	if room.ParentID != "" {
		parent = room.ParentID
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO rooms (id, parent_id, display_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (id) DO UPDATE
SET parent_id = EXCLUDED.parent_id, display_name = EXCLUDED.display_name, updated_at = EXCLUDED.updated_at
`, room.ID, parent, room.DisplayName, now)
	if err != nil {
		return fmt.Errorf("upsert room: %w", err)
	}
	return nil
}
