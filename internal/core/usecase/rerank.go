package usecase

import (
	"context"
	"strings"
	"unicode"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

const (
	overlapFusedWeight   = 0.70
	overlapContentWeight = 0.30
)

// OverlapReranker rescores candidates by blending the min-max scaled incoming score
// with the share of query tokens found in the candidate content.
type OverlapReranker struct{}

func NewOverlapReranker() *OverlapReranker {
	return &OverlapReranker{}
}

func (r *OverlapReranker) Rerank(_ context.Context, query string, candidates []domain.ScoredCandidate) ([]domain.ScoredCandidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	out := make([]domain.ScoredCandidate, len(candidates))
	copy(out, candidates)
	queryTokens := toTokenSet(query)

	minScore := out[0].Score
	maxScore := out[0].Score
	for _, c := range out[1:] {
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}

	rangeScore := maxScore - minScore
	normalize := func(v float64) float64 {
		if rangeScore <= 0 {
			if v > 0 {
				return 1
			}
			return 0
		}
		return (v - minScore) / rangeScore
	}

	for i := range out {
		overlap := tokenOverlap(queryTokens, toTokenSet(out[i].Content))
		out[i].Score = overlapFusedWeight*normalize(out[i].Score) + overlapContentWeight*overlap
	}
	sortCandidates(out)
	return out, nil
}

// applyRerankOutput takes the reranker's order as final for the head. Unknown or repeated
// ids are ignored and anything the reranker dropped is re-appended in fused order, so the
// candidate set never changes.
func applyRerankOutput(head, reranked []domain.ScoredCandidate) []domain.ScoredCandidate {
	known := make(map[string]struct{}, len(head))
	for _, c := range head {
		known[c.ID] = struct{}{}
	}

	out := make([]domain.ScoredCandidate, 0, len(head))
	seen := make(map[string]struct{}, len(head))
	for _, c := range reranked {
		if _, ok := known[c.ID]; !ok {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	for _, c := range head {
		if _, ok := seen[c.ID]; !ok {
			out = append(out, c)
		}
	}
	return out
}

func tokenOverlap(query, content map[string]struct{}) float64 {
	if len(query) == 0 || len(content) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := content[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
