package usecase

import "github.com/kirillkom/hybrid-memory/internal/core/domain"

// equalScoreValue is assigned to every element of a list whose scores do not spread.
// A lone candidate counts as the best match its provider found.
const equalScoreValue = 1.0

// NormalizeScores min-max scales RawScore into NormalizedScore. The input slice is not modified.
func NormalizeScores(results []domain.ScoredCandidate) []domain.ScoredCandidate {
	if len(results) == 0 {
		return []domain.ScoredCandidate{}
	}

	minScore := results[0].RawScore
	maxScore := results[0].RawScore
	for _, r := range results[1:] {
		if r.RawScore < minScore {
			minScore = r.RawScore
		}
		if r.RawScore > maxScore {
			maxScore = r.RawScore
		}
	}

	out := make([]domain.ScoredCandidate, len(results))
	copy(out, results)

	rangeScore := maxScore - minScore
	for i := range out {
		if rangeScore <= 0 {
			out[i].NormalizedScore = equalScoreValue
			continue
		}
		out[i].NormalizedScore = (out[i].RawScore - minScore) / rangeScore
	}
	return out
}

func toScored(candidates []domain.Candidate) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, domain.ScoredCandidate{
			Candidate: c,
			Sources:   []domain.CandidateSource{c.Source},
		})
	}
	return out
}
