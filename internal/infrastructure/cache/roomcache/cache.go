package roomcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

// Directory caches room lookups in front of a slower RoomDirectory. Only successful lookups
// are cached; writes through UpsertRoom evict the entry. A lookup that overlapped a write is
// returned but not cached.
type Directory struct {
	next     ports.RoomDirectory
	registry ports.RoomRegistry
	cache    *ristretto.Cache
	ttl      time.Duration

	mu  sync.Mutex
	gen uint64
}

func New(next ports.RoomDirectory, registry ports.RoomRegistry, ttl time.Duration) (*Directory, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     10_000,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create room cache: %w", err)
	}
	return &Directory{
		next:     next,
		registry: registry,
		cache:    cache,
		ttl:      ttl,
	}, nil
}

func (d *Directory) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	if v, ok := d.cache.Get(roomID); ok {
		if room, ok := v.(domain.Room); ok {
			return &room, nil
		}
	}

	d.mu.Lock()
	gen := d.gen
	d.mu.Unlock()

	room, err := d.next.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room != nil {
		d.mu.Lock()
		if d.gen == gen {
			d.cache.SetWithTTL(roomID, *room, 1, d.ttl)
		}
		d.mu.Unlock()
	}
	return room, nil
}

func (d *Directory) UpsertRoom(ctx context.Context, room domain.Room) error {
	if d.registry == nil {
		return fmt.Errorf("room registry not configured")
	}
	d.mu.Lock()
	d.gen++
	d.mu.Unlock()

	err := d.registry.UpsertRoom(ctx, room)

	d.mu.Lock()
	d.gen++
	d.cache.Del(room.ID)
	d.mu.Unlock()
	return err
}

// Wait blocks until buffered cache writes are applied.
func (d *Directory) Wait() {
	d.cache.Wait()
}

func (d *Directory) Close() {
	d.cache.Close()
}
