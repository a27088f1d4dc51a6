package usecase

import (
	"sort"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

type fusedCandidate struct {
	candidate domain.ScoredCandidate
	score     float64
}

// FuseWeighted merges two normalized lists keyed by candidate id. Each id accumulates
// weight*NormalizedScore from every list it appears in. Output follows first-seen order;
// callers sort. Weights are used as given.
func FuseWeighted(listA, listB []domain.ScoredCandidate, weightA, weightB float64) []domain.ScoredCandidate {
	acc := make(map[string]*fusedCandidate, len(listA)+len(listB))
	order := make([]string, 0, len(listA)+len(listB))

	addList := func(list []domain.ScoredCandidate, weight float64) {
		for _, c := range list {
			key := candidateKey(c.Candidate)
			entry, ok := acc[key]
			if !ok {
				entry = &fusedCandidate{candidate: c}
				entry.candidate.Sources = nil
				acc[key] = entry
				order = append(order, key)
			} else {
				entry.candidate.Candidate = preferRicherCandidate(entry.candidate.Candidate, c.Candidate)
			}
			entry.candidate.Sources = appendSource(entry.candidate.Sources, c.Source)
			entry.score += weight * c.NormalizedScore
		}
	}

	addList(listA, weightA)
	addList(listB, weightB)

	out := make([]domain.ScoredCandidate, 0, len(order))
	for _, key := range order {
		entry := acc[key]
		c := entry.candidate
		c.FusedScore = entry.score
		c.DecayedScore = entry.score
		c.Score = entry.score
		out = append(out, c)
	}
	return out
}

// sortCandidates orders by score descending, then newer timestamp, then id.
func sortCandidates(items []domain.ScoredCandidate) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		if items[i].Timestamp != items[j].Timestamp {
			return items[i].Timestamp > items[j].Timestamp
		}
		return items[i].ID < items[j].ID
	})
}

func trimCandidates(items []domain.ScoredCandidate, limit int) []domain.ScoredCandidate {
	if limit <= 0 || len(items) <= limit {
		return items
	}
	return items[:limit]
}

func candidateKey(c domain.Candidate) string {
	return c.ID
}

func preferRicherCandidate(current, candidate domain.Candidate) domain.Candidate {
	if current.Content == "" && candidate.Content != "" {
		current.Content = candidate.Content
	}
	if current.RoomID == "" && candidate.RoomID != "" {
		current.RoomID = candidate.RoomID
	}
	if current.UserID == "" && candidate.UserID != "" {
		current.UserID = candidate.UserID
	}
	if current.Timestamp <= 0 && candidate.Timestamp > 0 {
		current.Timestamp = candidate.Timestamp
	}
	return current
}

func appendSource(sources []domain.CandidateSource, source domain.CandidateSource) []domain.CandidateSource {
	for _, s := range sources {
		if s == source {
			return sources
		}
	}
	return append(sources, source)
}
