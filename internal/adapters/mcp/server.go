package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

const (
	serverName    = "hybrid-memory"
	serverVersion = "0.1.0"
)

// Server exposes memory retrieval as MCP tools.
type Server struct {
	retriever ports.MemoryRetriever
	assembler ports.ContextAssembler
	logger    *slog.Logger

	mcp *server.MCPServer
}

func NewServer(retriever ports.MemoryRetriever, assembler ports.ContextAssembler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		retriever: retriever,
		assembler: assembler,
		logger:    logger,
		mcp:       server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("memory_search",
		mcp.WithDescription("Search stored chat memory across rooms with hybrid lexical and semantic ranking."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Free-text query.")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the memories.")),
		mcp.WithArray("room_ids", mcp.Required(), mcp.Description("Rooms to search."), mcp.WithStringItems()),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results.")),
	), s.handleSearch)

	s.mcp.AddTool(mcp.NewTool("memory_context",
		mcp.WithDescription("Build context blocks for a room, including memories inherited from parent rooms."),
		mcp.WithString("room_id", mcp.Required(), mcp.Description("Room the conversation happens in.")),
		mcp.WithString("user_id", mcp.Required(), mcp.Description("Owner of the memories.")),
		mcp.WithString("query", mcp.Description("Free-text query.")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of blocks.")),
	), s.handleContext)
}

// Serve speaks MCP over the given streams until ctx is done.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

type searchResult struct {
	ID        string  `json:"id"`
	RoomID    string  `json:"room_id"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	Timestamp int64   `json:"timestamp"`
	Source    string  `json:"source"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	candidates, err := s.retriever.Retrieve(ctx, domain.RetrievalRequest{
		Query:   query,
		RoomIDs: req.GetStringSlice("room_ids", nil),
		UserID:  userID,
		Limit:   req.GetInt("limit", 0),
	})
	if err != nil {
		return s.toolError("memory_search", err)
	}

	results := make([]searchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, searchResult{
			ID:        c.ID,
			RoomID:    c.RoomID,
			Content:   c.Content,
			Score:     c.Score,
			Timestamp: c.Timestamp,
			Source:    c.SourceTag(),
		})
	}
	return jsonResult(map[string]any{"results": results})
}

func (s *Server) handleContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	roomID, err := req.RequireString("room_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	userID, err := req.RequireString("user_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	blocks, err := s.assembler.BuildContextBlocks(ctx, roomID, userID, req.GetString("query", ""), req.GetInt("limit", 0))
	if err != nil {
		return s.toolError("memory_context", err)
	}
	if blocks == nil {
		blocks = []domain.ContextBlock{}
	}
	return jsonResult(map[string]any{"blocks": blocks})
}

// toolError reports domain failures to the model as tool errors; cancellation is a protocol error.
func (s *Server) toolError(tool string, err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	s.logger.Warn("mcp_tool_failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error()), nil
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(raw)), nil
}
