package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

func TestIndexMessageEnsuresCollectionOncePerVectorSize(t *testing.T) {
	var ensureCalls int32
	var upsertBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/collections/memory":
			atomic.AddInt32(&ensureCalls, 1)
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if _, ok := body["sparse_vectors"]; !ok {
				t.Errorf("expected sparse vector config, got %v", body)
			}
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodPut && r.URL.Path == "/collections/memory/points":
			_ = json.NewDecoder(r.Body).Decode(&upsertBody)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(server.URL, "memory", nil)
	msg := domain.Message{ID: "m-1", RoomID: "r1", UserID: "u1", Content: "deploy notes", CreatedAt: time.Unix(1_700_000_000, 0)}

	for i := 0; i < 2; i++ {
		if err := client.IndexMessage(context.Background(), msg, []float32{0.1, 0.2}); err != nil {
			t.Fatalf("IndexMessage() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected ensure collection called once, got %d", got)
	}

	point := upsertBody["points"].([]any)[0].(map[string]any)
	if point["id"] != pointID("m-1") {
		t.Fatalf("expected deterministic point id, got %v", point["id"])
	}
	vectors := point["vector"].(map[string]any)
	if _, ok := vectors[denseVectorName]; !ok {
		t.Fatalf("expected dense vector, got %v", vectors)
	}
	if _, ok := vectors[sparseVectorName]; !ok {
		t.Fatalf("expected sparse vector, got %v", vectors)
	}
	payload := point["payload"].(map[string]any)
	if payload["room_id"] != "r1" || payload["message_id"] != "m-1" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestEnsureCollectionToleratesConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/collections/memory" {
			http.Error(w, "already exists", http.StatusConflict)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	err := New(server.URL, "memory", nil).IndexMessage(context.Background(), domain.Message{ID: "m", Content: "x"}, []float32{1})
	if err != nil {
		t.Fatalf("expected conflict to be ignored, got %v", err)
	}
}

func TestEnsureCollectionIncludesResponseBodyInError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadRequest)
	}))
	defer server.Close()

	err := New(server.URL, "memory", nil).IndexMessage(context.Background(), domain.Message{ID: "m", Content: "x"}, []float32{1})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestSearchVectorScopesByUserAndRooms(t *testing.T) {
	var queryBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/memory/points/query" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&queryBody)
		_, _ = w.Write([]byte(`{"result":{"points":[
			{"id":"p1","score":0.91,"payload":{"message_id":"m1","room_id":"r2","user_id":"u1","content":"parent note","created_at":1700000000}}
		]}}`))
	}))
	defer server.Close()

	out, err := New(server.URL, "memory", nil).SearchVector(context.Background(), []float32{0.1}, []string{"r1", "r2"}, "u1", 5)
	if err != nil {
		t.Fatalf("SearchVector() error = %v", err)
	}
	if len(out) != 1 || out[0].ID != "m1" || out[0].RoomID != "r2" || out[0].Timestamp != 1_700_000_000 {
		t.Fatalf("unexpected candidates: %+v", out)
	}
	if out[0].Source != domain.SourceVector || out[0].RawScore != 0.91 {
		t.Fatalf("unexpected candidate source/score: %+v", out[0])
	}
	if queryBody["using"] != denseVectorName {
		t.Fatalf("expected dense vector query, got %v", queryBody["using"])
	}

	must := queryBody["filter"].(map[string]any)["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("expected user and room conditions, got %v", must)
	}
	rooms := must[1].(map[string]any)["match"].(map[string]any)["any"].([]any)
	if len(rooms) != 2 {
		t.Fatalf("expected two room ids in filter, got %v", rooms)
	}
}

func TestSearchLexicalUsesSparseVector(t *testing.T) {
	var queryBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&queryBody)
		_, _ = w.Write([]byte(`{"result":{"points":[]}}`))
	}))
	defer server.Close()

	client := New(server.URL, "memory", nil)
	if _, err := client.SearchLexical(context.Background(), "deploy checklist", []string{"r1"}, "u1", 5); err != nil {
		t.Fatalf("SearchLexical() error = %v", err)
	}
	if queryBody["using"] != sparseVectorName {
		t.Fatalf("expected sparse query, got %v", queryBody["using"])
	}
	query := queryBody["query"].(map[string]any)
	if len(query["indices"].([]any)) != 2 {
		t.Fatalf("expected two sparse terms, got %v", query)
	}

	queryBody = nil
	out, err := client.SearchLexical(context.Background(), "!!!", []string{"r1"}, "u1", 5)
	if err != nil || len(out) != 0 || queryBody != nil {
		t.Fatalf("expected empty query to skip qdrant, got out=%v err=%v", out, err)
	}
}

func TestSearchMissingCollectionReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "collection not found", http.StatusNotFound)
	}))
	defer server.Close()

	out, err := New(server.URL, "memory", nil).SearchVector(context.Background(), []float32{1}, []string{"r1"}, "u1", 5)
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty result, got out=%v err=%v", out, err)
	}
}

func TestSearchServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(server.URL, "memory", nil).SearchVector(context.Background(), []float32{1}, []string{"r1"}, "u1", 5)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestPointIDKeepsUUIDs(t *testing.T) {
	id := "5f0c6a4e-7c0b-4a34-9a51-0c1f8d9a1b22"
	if got := pointID(id); got != id {
		t.Fatalf("expected uuid preserved, got %s", got)
	}
	if pointID("m-1") != pointID("m-1") || pointID("m-1") == pointID("m-2") {
		t.Fatal("expected stable distinct derived ids")
	}
}
