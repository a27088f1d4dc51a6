package roomcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

type countingRooms struct {
	rooms map[string]domain.Room
	calls int
}

func (c *countingRooms) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	c.calls++
	room, ok := c.rooms[roomID]
	if !ok {
		return nil, domain.WrapError(domain.ErrRoomNotFound, "get room", errors.New(roomID))
	}
	return &room, nil
}

func (c *countingRooms) UpsertRoom(_ context.Context, room domain.Room) error {
	c.rooms[room.ID] = room
	return nil
}

func TestGetRoomServesFromCache(t *testing.T) {
	backing := &countingRooms{rooms: map[string]domain.Room{"r1": {ID: "r1", DisplayName: "One"}}}
	dir, err := New(backing, backing, time.Minute)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer dir.Close()

	if _, err := dir.GetRoom(context.Background(), "r1"); err != nil {
		t.Fatalf("GetRoom() error: %v", err)
	}
	dir.Wait()
	room, err := dir.GetRoom(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetRoom() error: %v", err)
	}
	if room.DisplayName != "One" {
		t.Fatalf("unexpected room: %+v", room)
	}
	if backing.calls != 1 {
		t.Fatalf("expected one backing lookup, got %d", backing.calls)
	}
}

func TestGetRoomDoesNotCacheMisses(t *testing.T) {
	backing := &countingRooms{rooms: map[string]domain.Room{}}
	dir, err := New(backing, backing, time.Minute)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer dir.Close()

	for i := 0; i < 2; i++ {
		if _, err := dir.GetRoom(context.Background(), "ghost"); !domain.IsKind(err, domain.ErrRoomNotFound) {
			t.Fatalf("expected ErrRoomNotFound, got %v", err)
		}
		dir.Wait()
	}
	if backing.calls != 2 {
		t.Fatalf("expected misses to reach backing store, got %d calls", backing.calls)
	}
}

func TestUpsertRoomEvicts(t *testing.T) {
	backing := &countingRooms{rooms: map[string]domain.Room{"r1": {ID: "r1", DisplayName: "Old"}}}
	dir, err := New(backing, backing, time.Minute)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer dir.Close()

	_, _ = dir.GetRoom(context.Background(), "r1")
	dir.Wait()
	if err := dir.UpsertRoom(context.Background(), domain.Room{ID: "r1", DisplayName: "New"}); err != nil {
		t.Fatalf("UpsertRoom() error: %v", err)
	}
	dir.Wait()

	room, err := dir.GetRoom(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetRoom() error: %v", err)
	}
	if room.DisplayName != "New" {
		t.Fatalf("expected refreshed room, got %+v", room)
	}
}

// slowRooms reads the stored room, then holds the answer until released, modelling a lookup
// that is still in flight when a write lands.
type slowRooms struct {
	mu      sync.Mutex
	rooms   map[string]domain.Room
	entered chan struct{}
	release chan struct{}
}

func (s *slowRooms) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	s.mu.Lock()
	room := s.rooms[roomID]
	s.mu.Unlock()
	if s.entered != nil {
		close(s.entered)
		s.entered = nil
		<-s.release
	}
	return &room, nil
}

func (s *slowRooms) UpsertRoom(_ context.Context, room domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = room
	return nil
}

func TestInFlightLookupDoesNotCacheOverWrite(t *testing.T) {
	entered := make(chan struct{})
	backing := &slowRooms{
		rooms:   map[string]domain.Room{"r1": {ID: "r1", ParentID: "old"}},
		entered: entered,
		release: make(chan struct{}),
	}
	dir, err := New(backing, backing, time.Minute)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer dir.Close()

	done := make(chan *domain.Room)
	go func() {
		room, _ := dir.GetRoom(context.Background(), "r1")
		done <- room
	}()
	<-entered

	if err := dir.UpsertRoom(context.Background(), domain.Room{ID: "r1", ParentID: "new"}); err != nil {
		t.Fatalf("UpsertRoom() error: %v", err)
	}
	close(backing.release)
	if stale := <-done; stale.ParentID != "old" {
		t.Fatalf("expected the in-flight lookup to see the old parent, got %+v", stale)
	}
	dir.Wait()

	room, err := dir.GetRoom(context.Background(), "r1")
	if err != nil {
		t.Fatalf("GetRoom() error: %v", err)
	}
	if room.ParentID != "new" {
		t.Fatalf("stale room cached over a write: %+v", room)
	}
}
