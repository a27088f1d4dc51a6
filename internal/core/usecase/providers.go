package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

// candidateProvider is one retrieval channel feeding the fusion stage.
type candidateProvider interface {
	Source() domain.CandidateSource
	Fetch(ctx context.Context, req domain.RetrievalRequest, limit int) ([]domain.Candidate, error)
}

type lexicalProvider struct {
	searcher ports.LexicalSearcher
}

func (p lexicalProvider) Source() domain.CandidateSource { return domain.SourceLexical }

func (p lexicalProvider) Fetch(ctx context.Context, req domain.RetrievalRequest, limit int) ([]domain.Candidate, error) {
	if p.searcher == nil {
		return nil, domain.WrapError(domain.ErrUpstreamUnavailable, "lexical search", fmt.Errorf("searcher not configured"))
	}
	candidates, err := p.searcher.SearchLexical(ctx, req.Query, req.RoomIDs, req.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	return stampSource(candidates, domain.SourceLexical), nil
}

type vectorProvider struct {
	embedder ports.Embedder
	searcher ports.VectorSearcher
}

func (p vectorProvider) Source() domain.CandidateSource { return domain.SourceVector }

func (p vectorProvider) Fetch(ctx context.Context, req domain.RetrievalRequest, limit int) ([]domain.Candidate, error) {
	if p.embedder == nil || p.searcher == nil {
		return nil, domain.WrapError(domain.ErrUpstreamUnavailable, "vector search", fmt.Errorf("embedder or searcher not configured"))
	}
	queryVector, err := p.embedder.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(queryVector) == 0 {
		return nil, domain.WrapError(domain.ErrUpstreamUnavailable, "embed query", fmt.Errorf("empty embedding"))
	}
	candidates, err := p.searcher.SearchVector(ctx, queryVector, req.RoomIDs, req.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return stampSource(candidates, domain.SourceVector), nil
}

func stampSource(candidates []domain.Candidate, source domain.CandidateSource) []domain.Candidate {
	for i := range candidates {
		candidates[i].Source = source
	}
	return candidates
}

// sanitizeCandidates drops malformed and repeated entries, returning how many were skipped.
func sanitizeCandidates(candidates []domain.Candidate) ([]domain.Candidate, int) {
	out := make([]domain.Candidate, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	skipped := 0
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			skipped++
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out, skipped
}
