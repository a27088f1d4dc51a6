package chromem

import (
	"context"
	"testing"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

func seedIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewWithDB(chromem.NewDB(), "test")
	messages := []struct {
		msg    domain.Message
		vector []float32
	}{
		{domain.Message{ID: "m1", RoomID: "child", UserID: "u1", Content: "child note"}, []float32{1, 0, 0}},
		{domain.Message{ID: "m2", RoomID: "parent", UserID: "u1", Content: "parent note"}, []float32{0.9, 0.1, 0}},
		{domain.Message{ID: "m3", RoomID: "elsewhere", UserID: "u1", Content: "unrelated"}, []float32{1, 0, 0}},
		{domain.Message{ID: "m4", RoomID: "child", UserID: "u2", Content: "someone else"}, []float32{1, 0, 0}},
	}
	for _, m := range messages {
		m.msg.CreatedAt = time.Unix(1_700_000_000, 0)
		if err := idx.IndexMessage(context.Background(), m.msg, m.vector); err != nil {
			t.Fatalf("IndexMessage(%s) error: %v", m.msg.ID, err)
		}
	}
	return idx
}

func TestSearchVectorScopesRoomsAndUser(t *testing.T) {
	idx := seedIndex(t)

	out, err := idx.SearchVector(context.Background(), []float32{1, 0, 0}, []string{"child", "parent"}, "u1", 10)
	if err != nil {
		t.Fatalf("SearchVector() error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 candidates, got %+v", out)
	}
	if out[0].ID != "m1" || out[1].ID != "m2" {
		t.Fatalf("expected similarity order m1, m2; got %s, %s", out[0].ID, out[1].ID)
	}
	if out[1].RoomID != "parent" || out[1].Timestamp != 1_700_000_000 {
		t.Fatalf("unexpected metadata: %+v", out[1])
	}
}

func TestSearchVectorLimitAndEmptyCollection(t *testing.T) {
	idx := seedIndex(t)

	out, err := idx.SearchVector(context.Background(), []float32{1, 0, 0}, []string{"child", "parent"}, "u1", 1)
	if err != nil {
		t.Fatalf("SearchVector() error: %v", err)
	}
	if len(out) != 1 || out[0].ID != "m1" {
		t.Fatalf("expected top result only, got %+v", out)
	}

	empty, err := idx.SearchVector(context.Background(), []float32{1, 0, 0}, []string{"child"}, "nobody", 5)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty result for unknown user, got %v err=%v", empty, err)
	}
}

func TestIndexMessageRejectsEmptyVector(t *testing.T) {
	idx := NewWithDB(chromem.NewDB(), "test")
	err := idx.IndexMessage(context.Background(), domain.Message{ID: "m", UserID: "u"}, nil)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
