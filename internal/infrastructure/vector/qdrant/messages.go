package qdrant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/resilience"
)

type queryPoint struct {
	ID      any            `json:"id"`
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

// IndexMessage upserts the message with its dense embedding and sparse term vector.
func (c *Client) IndexMessage(ctx context.Context, msg domain.Message, vector []float32) error {
	if len(vector) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant index", fmt.Errorf("empty vector for message %s", msg.ID))
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return resilience.WrapTemporary("qdrant ensure collection", err, classifyQdrantError)
	}

	vectors := map[string]any{denseVectorName: vector}
	if sparse := messageEncoder.document(msg.Content); len(sparse.Indices) > 0 {
		vectors[sparseVectorName] = sparse
	}

	reqBody := map[string]any{
		"points": []map[string]any{
			{
				"id":     pointID(msg.ID),
				"vector": vectors,
				"payload": map[string]any{
					"message_id": msg.ID,
					"room_id":    msg.RoomID,
					"user_id":    msg.UserID,
					"content":    msg.Content,
					"created_at": msg.CreatedAt.Unix(),
				},
			},
		},
	}

	url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
	if err := c.send(ctx, http.MethodPut, url, reqBody, nil, "upsert"); err != nil {
		return resilience.WrapTemporary("qdrant upsert", err, classifyQdrantError)
	}
	return nil
}

// SearchVector implements ports.VectorSearcher over the dense vector.
func (c *Client) SearchVector(ctx context.Context, vector []float32, roomIDs []string, userID string, limit int) ([]domain.Candidate, error) {
	if len(vector) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "qdrant vector search", fmt.Errorf("empty query vector"))
	}
	return c.query(ctx, vector, denseVectorName, roomIDs, userID, limit, domain.SourceVector)
}

// SearchLexical implements ports.LexicalSearcher over the sparse term vector.
func (c *Client) SearchLexical(ctx context.Context, query string, roomIDs []string, userID string, limit int) ([]domain.Candidate, error) {
	sparse := messageEncoder.query(query)
	if len(sparse.Indices) == 0 {
		return []domain.Candidate{}, nil
	}
	return c.query(ctx, sparse, sparseVectorName, roomIDs, userID, limit, domain.SourceLexical)
}

func (c *Client) query(
	ctx context.Context,
	query any,
	using string,
	roomIDs []string,
	userID string,
	limit int,
	source domain.CandidateSource,
) ([]domain.Candidate, error) {
	if limit <= 0 {
		limit = 10
	}
	reqBody := map[string]any{
		"query":        query,
		"using":        using,
		"limit":        limit,
		"with_payload": true,
		"filter":       buildScopeFilter(roomIDs, userID),
	}

	var resp struct {
		Result struct {
			Points []queryPoint `json:"points"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/query", c.baseURL, c.collection)
	if err := c.send(ctx, http.MethodPost, url, reqBody, &resp, string(source)+" query"); err != nil {
		var statusErr *resilience.HTTPStatusError
		if asStatus(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return []domain.Candidate{}, nil
		}
		return nil, resilience.WrapTemporary("qdrant "+string(source)+" query", err, classifyQdrantError)
	}

	out := make([]domain.Candidate, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		out = append(out, domain.Candidate{
			ID:        getStringPayload(p.Payload, "message_id"),
			RoomID:    getStringPayload(p.Payload, "room_id"),
			UserID:    getStringPayload(p.Payload, "user_id"),
			Content:   getStringPayload(p.Payload, "content"),
			RawScore:  p.Score,
			Timestamp: getInt64Payload(p.Payload, "created_at"),
			Source:    source,
		})
	}
	return out, nil
}

func buildScopeFilter(roomIDs []string, userID string) map[string]any {
	must := []map[string]any{
		{
			"key": "user_id",
			"match": map[string]any{
				"value": userID,
			},
		},
	}
	if len(roomIDs) > 0 {
		must = append(must, map[string]any{
			"key": "room_id",
			"match": map[string]any{
				"any": roomIDs,
			},
		})
	}
	return map[string]any{"must": must}
}

// pointID maps message ids onto the UUID space qdrant accepts for point ids.
func pointID(messageID string) string {
	if parsed, err := uuid.Parse(strings.TrimSpace(messageID)); err == nil {
		return parsed.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("memory-message:"+messageID)).String()
}

func asStatus(err error, target **resilience.HTTPStatusError) bool {
	return errors.As(err, target)
}
