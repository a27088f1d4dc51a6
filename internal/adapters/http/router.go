package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/config"
	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
	"github.com/kirillkom/hybrid-memory/internal/observability/metrics"
)

const (
	serviceName     = "memory-api"
	maxRequestBytes = 1 << 20
	queueWait       = 250 * time.Millisecond
)

type Router struct {
	cfg       config.Config
	retriever ports.MemoryRetriever
	assembler ports.ContextAssembler
	ingestor  ports.MessageIngestor
	rooms     ports.RoomManager

	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

func NewRouter(
	cfg config.Config,
	retriever ports.MemoryRetriever,
	assembler ports.ContextAssembler,
	ingestor ports.MessageIngestor,
	rooms ports.RoomManager,
) *Router {
	return &Router{
		cfg:       cfg,
		retriever: retriever,
		assembler: assembler,
		ingestor:  ingestor,
		rooms:     rooms,
		logger:    slog.Default(),
	}
}

func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) WithLogger(logger *slog.Logger) *Router {
	if logger != nil {
		rt.logger = logger
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/memory/retrieve", rt.retrieve)
	mux.HandleFunc("POST /v1/memory/context", rt.contextBlocks)
	mux.HandleFunc("POST /v1/messages", rt.createMessage)
	mux.HandleFunc("PUT /v1/rooms/{room_id}", rt.putRoom)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var onReject rejectionRecorder
	if rt.metrics != nil {
		onReject = func(reason string) { rt.metrics.RecordRejected(serviceName, reason) }
	}

	var handler http.Handler = mux
	handler = backpressureMiddlewareWithRecorder(handler, rt.cfg.APIMaxInFlight, queueWait, onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = recoverMiddleware(rt.logger, handler)
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(rt.logger, handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type retrieveRequest struct {
	Query   string   `json:"query"`
	RoomIDs []string `json:"room_ids"`
	UserID  string   `json:"user_id"`
	Limit   int      `json:"limit"`
}

type retrievedMemory struct {
	ID        string   `json:"id"`
	RoomID    string   `json:"room_id"`
	Content   string   `json:"content"`
	Score     float64  `json:"score"`
	Timestamp int64    `json:"timestamp"`
	Source    string   `json:"source"`
	Sources   []string `json:"sources"`
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if !decodeBody(w, r, &req) {
		return
	}

	candidates, err := rt.retriever.Retrieve(r.Context(), domain.RetrievalRequest{
		Query:   req.Query,
		RoomIDs: req.RoomIDs,
		UserID:  req.UserID,
		Limit:   req.Limit,
	})
	if err != nil {
		rt.writeDomainError(w, r, "retrieve", err)
		return
	}

	results := make([]retrievedMemory, 0, len(candidates))
	for _, c := range candidates {
		sources := make([]string, 0, len(c.Sources))
		for _, s := range c.Sources {
			sources = append(sources, string(s))
		}
		results = append(results, retrievedMemory{
			ID:        c.ID,
			RoomID:    c.RoomID,
			Content:   c.Content,
			Score:     c.Score,
			Timestamp: c.Timestamp,
			Source:    c.SourceTag(),
			Sources:   sources,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type contextRequest struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
}

func (rt *Router) contextBlocks(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if !decodeBody(w, r, &req) {
		return
	}

	blocks, err := rt.assembler.BuildContextBlocks(r.Context(), req.RoomID, req.UserID, req.Query, req.Limit)
	if err != nil {
		rt.writeDomainError(w, r, "context", err)
		return
	}
	if blocks == nil {
		blocks = []domain.ContextBlock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": blocks})
}

type createMessageRequest struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

func (rt *Router) createMessage(w http.ResponseWriter, r *http.Request) {
	var req createMessageRequest
	if !decodeBody(w, r, &req) {
		return
	}

	msg, err := rt.ingestor.Ingest(r.Context(), domain.Message{
		RoomID:  req.RoomID,
		UserID:  req.UserID,
		Content: req.Content,
	})
	if err != nil {
		rt.writeDomainError(w, r, "create_message", err)
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

type putRoomRequest struct {
	ParentID    string `json:"parent_id"`
	DisplayName string `json:"display_name"`
}

func (rt *Router) putRoom(w http.ResponseWriter, r *http.Request) {
	var req putRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}

	room, err := rt.rooms.PutRoom(r.Context(), domain.Room{
		ID:          r.PathValue("room_id"),
		ParentID:    req.ParentID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		rt.writeDomainError(w, r, "put_room", err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, r, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func (rt *Router) writeDomainError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		loggerFromContext(r.Context(), rt.logger).Error("request_failed",
			"operation", op,
			"status", status,
			"error", err,
		)
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	writeError(w, r, status, strings.TrimSpace(message))
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	payload := map[string]string{"error": message}
	if id := requestIDFromContext(r.Context()); id != "" {
		payload["request_id"] = id
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
