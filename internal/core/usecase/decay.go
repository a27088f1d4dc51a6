package usecase

import (
	"math"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

const secondsPerDay = 86400.0

// DecayFactor returns exp(-lambda*ageDays). Negative ages count as zero so future
// timestamps are never amplified.
func DecayFactor(ageDays, lambda float64) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	return math.Exp(-lambda * ageDays)
}

// ApplyTimeDecay multiplies each fused score by the decay factor of its age relative to now.
func ApplyTimeDecay(results []domain.ScoredCandidate, lambda float64, now time.Time) []domain.ScoredCandidate {
	out := make([]domain.ScoredCandidate, len(results))
	copy(out, results)

	ref := float64(now.Unix())
	for i := range out {
		ageDays := (ref - float64(out[i].Timestamp)) / secondsPerDay
		out[i].DecayedScore = out[i].FusedScore * DecayFactor(ageDays, lambda)
		out[i].Score = out[i].DecayedScore
	}
	return out
}
