package ollama

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/infrastructure/resilience"
)

// maxBatch caps how many inputs go into one /api/embed call.
const maxBatch = 64

type Client struct {
	baseURL    string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

// Embedder implements ports.Embedder. Every vector it returns has the same dimension as the
// first one seen, so a model swap behind the same URL surfaces as an error instead of a
// silently mismatched index.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := min(start+maxBatch, len(texts))
		batch := texts[start:end]

		resp, err := resilience.Do(ctx, e.client.executor, "ollama.embed", func(callCtx context.Context) (embedResponse, error) {
			return e.client.embed(callCtx, batch)
		}, resilience.ClassifyTransportError)
		if err != nil {
			return nil, resilience.WrapTemporary("ollama embed", err, resilience.ClassifyTransportError)
		}
		if len(resp.Embeddings) != len(batch) {
			return nil, fmt.Errorf("ollama embed: expected %d embeddings, got %d", len(batch), len(resp.Embeddings))
		}
		out = append(out, resp.Embeddings...)
	}

	dim := len(out[0])
	for i, v := range out {
		if len(v) == 0 || len(v) != dim {
			return nil, fmt.Errorf("ollama embed: vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
