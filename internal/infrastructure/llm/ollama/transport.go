package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kirillkom/hybrid-memory/internal/infrastructure/resilience"
)

// maxResponseBytes bounds a decoded embed response; 64 inputs of 4096 dims fit comfortably.
const maxResponseBytes = 32 << 20

type embedRequest struct {
	Model    string   `json:"model"`
	Input    []string `json:"input"`
	Truncate bool     `json:"truncate"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *Client) embed(ctx context.Context, texts []string) (embedResponse, error) {
	var out embedResponse
	body, err := json.Marshal(embedRequest{Model: c.embedModel, Input: texts, Truncate: true})
	if err != nil {
		return out, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return out, fmt.Errorf("ollama embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return out, resilience.NewHTTPStatusError("ollama", "embed", resp)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return out, fmt.Errorf("decode embed response: %w", err)
	}
	return out, nil
}
