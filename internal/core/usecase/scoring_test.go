package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

func scored(id string, raw float64) domain.ScoredCandidate {
	return domain.ScoredCandidate{Candidate: domain.Candidate{ID: id, RawScore: raw, Timestamp: 1_700_000_000}}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNormalizeScoresMinMax(t *testing.T) {
	out := NormalizeScores([]domain.ScoredCandidate{scored("a", 10), scored("b", 20), scored("c", 30)})
	want := []float64{0, 0.5, 1}
	for i, w := range want {
		if !almostEqual(out[i].NormalizedScore, w) {
			t.Fatalf("item %d: expected %.2f, got %.4f", i, w, out[i].NormalizedScore)
		}
	}
}

func TestNormalizeScoresEqualAndSingle(t *testing.T) {
	single := NormalizeScores([]domain.ScoredCandidate{scored("a", -4)})
	if single[0].NormalizedScore != 1 {
		t.Fatalf("expected single element to normalize to 1, got %f", single[0].NormalizedScore)
	}

	equal := NormalizeScores([]domain.ScoredCandidate{scored("a", 7), scored("b", 7), scored("c", 7)})
	for _, c := range equal {
		if c.NormalizedScore != 1 {
			t.Fatalf("expected equal scores to normalize to 1, got %f for %s", c.NormalizedScore, c.ID)
		}
	}

	if out := NormalizeScores(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}

func TestNormalizeScoresDoesNotMutateInput(t *testing.T) {
	in := []domain.ScoredCandidate{scored("a", 1), scored("b", 3)}
	_ = NormalizeScores(in)
	if in[0].NormalizedScore != 0 || in[1].NormalizedScore != 0 {
		t.Fatalf("input was mutated: %+v", in)
	}
}

func TestFuseWeightedMergesByID(t *testing.T) {
	lexical := NormalizeScores(toScored([]domain.Candidate{
		{ID: "1", RawScore: 10, Timestamp: 1, Source: domain.SourceLexical},
		{ID: "2", RawScore: 20, Timestamp: 1, Source: domain.SourceLexical},
	}))
	vector := NormalizeScores(toScored([]domain.Candidate{
		{ID: "2", RawScore: 50, Timestamp: 1, Source: domain.SourceVector},
		{ID: "3", RawScore: 100, Timestamp: 1, Source: domain.SourceVector},
	}))

	fused := FuseWeighted(lexical, vector, 0.6, 0.4)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused candidates, got %d", len(fused))
	}
	want := map[string]float64{"1": 0, "2": 0.6, "3": 0.4}
	for _, c := range fused {
		if !almostEqual(c.Score, want[c.ID]) {
			t.Fatalf("id=%s: expected %.2f, got %.4f", c.ID, want[c.ID], c.Score)
		}
	}
	if got := fused[1].SourceTag(); got != "hybrid" {
		t.Fatalf("expected id 2 to be tagged hybrid, got %s", got)
	}
}

func TestFuseWeightedPrefersRicherFields(t *testing.T) {
	a := []domain.ScoredCandidate{{Candidate: domain.Candidate{ID: "x", Timestamp: 5}, NormalizedScore: 1}}
	b := []domain.ScoredCandidate{{Candidate: domain.Candidate{ID: "x", Content: "full text", RoomID: "r1", Timestamp: 9}, NormalizedScore: 1}}

	fused := FuseWeighted(a, b, 0.5, 0.5)
	if len(fused) != 1 {
		t.Fatalf("expected one candidate, got %d", len(fused))
	}
	if fused[0].Content != "full text" || fused[0].RoomID != "r1" {
		t.Fatalf("expected missing fields filled from second list, got %+v", fused[0].Candidate)
	}
	if fused[0].Timestamp != 5 {
		t.Fatalf("expected first-seen timestamp to win, got %d", fused[0].Timestamp)
	}
	if !almostEqual(fused[0].Score, 1) {
		t.Fatalf("expected score 1, got %f", fused[0].Score)
	}
}

func TestSortCandidatesTieBreak(t *testing.T) {
	items := []domain.ScoredCandidate{
		{Candidate: domain.Candidate{ID: "b", Timestamp: 10}, Score: 0.5},
		{Candidate: domain.Candidate{ID: "a", Timestamp: 10}, Score: 0.5},
		{Candidate: domain.Candidate{ID: "c", Timestamp: 20}, Score: 0.5},
		{Candidate: domain.Candidate{ID: "d", Timestamp: 1}, Score: 0.9},
	}
	sortCandidates(items)

	order := []string{"d", "c", "a", "b"}
	for i, id := range order {
		if items[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, items[i].ID)
		}
	}
}

func TestDecayFactor(t *testing.T) {
	if got := DecayFactor(30, 0.03); math.Abs(got-0.4066) > 0.001 {
		t.Fatalf("expected ~0.406 after 30 days, got %f", got)
	}
	if got := DecayFactor(100, 0); got != 1 {
		t.Fatalf("expected lambda 0 to leave score unchanged, got %f", got)
	}
	if got := DecayFactor(-5, 0.5); got != 1 {
		t.Fatalf("expected future timestamps to be unaffected, got %f", got)
	}
	if DecayFactor(2, 0.1) >= DecayFactor(1, 0.1) {
		t.Fatal("expected older items to decay more")
	}
}

func TestApplyTimeDecay(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	items := []domain.ScoredCandidate{
		{Candidate: domain.Candidate{ID: "old", Timestamp: now.Add(-30 * 24 * time.Hour).Unix()}, FusedScore: 1},
		{Candidate: domain.Candidate{ID: "future", Timestamp: now.Add(time.Hour).Unix()}, FusedScore: 0.8},
	}

	out := ApplyTimeDecay(items, 0.03, now)
	if math.Abs(out[0].Score-0.4066) > 0.001 {
		t.Fatalf("expected decayed score ~0.406, got %f", out[0].Score)
	}
	if out[1].Score != 0.8 {
		t.Fatalf("expected future item untouched, got %f", out[1].Score)
	}
	if items[0].Score != 0 {
		t.Fatal("input was mutated")
	}
}
