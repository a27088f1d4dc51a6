package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

type retrieverFake struct {
	got     domain.RetrievalRequest
	results []domain.ScoredCandidate
	err     error
}

func (f *retrieverFake) Retrieve(_ context.Context, req domain.RetrievalRequest) ([]domain.ScoredCandidate, error) {
	f.got = req
	return f.results, f.err
}

type assemblerFake struct {
	roomID string
	blocks []domain.ContextBlock
	err    error
}

func (f *assemblerFake) BuildContextBlocks(_ context.Context, roomID, _, _ string, _ int) ([]domain.ContextBlock, error) {
	f.roomID = roomID
	return f.blocks, f.err
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatalf("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	return text.Text
}

func TestMemorySearchForwardsArguments(t *testing.T) {
	retriever := &retrieverFake{results: []domain.ScoredCandidate{
		{
			Candidate: domain.Candidate{ID: "m1", RoomID: "r1", Content: "standup at ten", Timestamp: 10},
			Score:     0.8,
			Sources:   []domain.CandidateSource{domain.SourceVector},
		},
	}}
	s := NewServer(retriever, &assemblerFake{}, nil)

	res, err := s.handleSearch(context.Background(), callRequest("memory_search", map[string]any{
		"query":    "standup",
		"user_id":  "u1",
		"room_ids": []any{"r1", "r2"},
		"limit":    float64(3),
	}))
	if err != nil {
		t.Fatalf("handleSearch() error: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}

	var payload struct {
		Results []searchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Results) != 1 || payload.Results[0].Source != "vector" {
		t.Fatalf("unexpected results: %+v", payload.Results)
	}
	if len(retriever.got.RoomIDs) != 2 || retriever.got.Limit != 3 {
		t.Fatalf("arguments not forwarded: %+v", retriever.got)
	}
}

func TestMemorySearchRequiresQuery(t *testing.T) {
	s := NewServer(&retrieverFake{}, &assemblerFake{}, nil)

	res, err := s.handleSearch(context.Background(), callRequest("memory_search", map[string]any{"user_id": "u1"}))
	if err != nil {
		t.Fatalf("handleSearch() error: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected tool error for missing query")
	}
}

func TestMemoryContextReturnsBlocks(t *testing.T) {
	assembler := &assemblerFake{blocks: []domain.ContextBlock{{Content: "x", RoomID: "parent", Inherited: true}}}
	s := NewServer(&retrieverFake{}, assembler, nil)

	res, err := s.handleContext(context.Background(), callRequest("memory_context", map[string]any{
		"room_id": "child",
		"user_id": "u1",
	}))
	if err != nil {
		t.Fatalf("handleContext() error: %v", err)
	}
	if assembler.roomID != "child" {
		t.Fatalf("room not forwarded: %q", assembler.roomID)
	}
	if !strings.Contains(resultText(t, res), `"inherited":true`) {
		t.Fatalf("unexpected payload: %s", resultText(t, res))
	}
}

func TestMemoryContextDomainErrorIsToolError(t *testing.T) {
	assembler := &assemblerFake{err: domain.WrapError(domain.ErrHierarchyCorrupt, "context", errors.New("cycle"))}
	s := NewServer(&retrieverFake{}, assembler, nil)

	res, err := s.handleContext(context.Background(), callRequest("memory_context", map[string]any{
		"room_id": "loop",
		"user_id": "u1",
	}))
	if err != nil {
		t.Fatalf("expected tool error, got protocol error %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected IsError result")
	}
}

func TestCancellationIsProtocolError(t *testing.T) {
	s := NewServer(&retrieverFake{err: context.Canceled}, &assemblerFake{}, nil)

	_, err := s.handleSearch(context.Background(), callRequest("memory_search", map[string]any{
		"query": "q", "user_id": "u1", "room_ids": []any{"r1"},
	}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
