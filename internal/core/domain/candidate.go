package domain

import (
	"fmt"
	"math"
	"strings"
)

type CandidateSource string

const (
	SourceLexical CandidateSource = "lexical"
	SourceVector  CandidateSource = "vector"
)

// Candidate is one retrieved message as reported by a single search provider.
// RawScore is on the provider's native scale and is never compared across providers.
type Candidate struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	UserID    string          `json:"user_id,omitempty"`
	Content   string          `json:"content"`
	RawScore  float64         `json:"raw_score"`
	Timestamp int64           `json:"timestamp"`
	Source    CandidateSource `json:"source"`
}

// Validate reports why a candidate cannot take part in fusion.
func (c Candidate) Validate() error {
	switch {
	case strings.TrimSpace(c.ID) == "":
		return fmt.Errorf("%w: empty id", ErrMalformedCandidate)
	case math.IsNaN(c.RawScore) || math.IsInf(c.RawScore, 0):
		return fmt.Errorf("%w: id=%s non-finite score", ErrMalformedCandidate, c.ID)
	case c.Timestamp <= 0:
		return fmt.Errorf("%w: id=%s missing timestamp", ErrMalformedCandidate, c.ID)
	default:
		return nil
	}
}

type ScoredCandidate struct {
	Candidate

	NormalizedScore float64           `json:"normalized_score"`
	FusedScore      float64           `json:"fused_score"`
	DecayedScore    float64           `json:"decayed_score"`
	// Score is the final ranking score. Reranked items carry the reranker's score and items
	// past the reranked head are scaled so none scores above any reranked item.
	Score           float64           `json:"score"`
	Sources         []CandidateSource `json:"sources"`
}

// SourceTag collapses the contributing providers into a single label.
func (c ScoredCandidate) SourceTag() string {
	hasLexical, hasVector := false, false
	for _, s := range c.Sources {
		switch s {
		case SourceLexical:
			hasLexical = true
		case SourceVector:
			hasVector = true
		}
	}
	switch {
	case hasLexical && hasVector:
		return "hybrid"
	case hasLexical:
		return string(SourceLexical)
	case hasVector:
		return string(SourceVector)
	default:
		return string(c.Source)
	}
}

type RetrievalRequest struct {
	Query   string   `json:"query"`
	RoomIDs []string `json:"room_ids"`
	UserID  string   `json:"user_id"`
	Limit   int      `json:"limit"`
}

// ContextBlock is a retrieved memory ready for prompt construction, tagged with its room of origin.
type ContextBlock struct {
	Content   string  `json:"content"`
	RoomID    string  `json:"room_id"`
	RoomName  string  `json:"room_name"`
	Source    string  `json:"source"`
	MessageID string  `json:"message_id"`
	Score     float64 `json:"score"`
	Inherited bool    `json:"inherited"`
}
