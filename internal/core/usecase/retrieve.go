package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
)

var tracer = otel.Tracer("github.com/kirillkom/hybrid-memory/internal/core/usecase")

const (
	outcomeOK          = "ok"
	outcomeDegraded    = "degraded"
	outcomeUnavailable = "unavailable"
	outcomeCanceled    = "canceled"
)

type RetrievalSettings struct {
	LexicalWeight  float64
	VectorWeight   float64
	DecayEnabled   bool
	DecayLambda    float64
	RerankEnabled  bool
	RerankTopN     int
	DefaultLimit   int
	CandidateDepth int
}

type RetrievalUseCase struct {
	providers []candidateProvider
	reranker  ports.Reranker
	settings  RetrievalSettings

	observer ports.RetrievalObserver
	logger   *slog.Logger
	now      func() time.Time
}

func NewRetrievalUseCase(
	lexical ports.LexicalSearcher,
	vector ports.VectorSearcher,
	embedder ports.Embedder,
	reranker ports.Reranker,
	settings RetrievalSettings,
) *RetrievalUseCase {
	if settings.LexicalWeight < 0 {
		settings.LexicalWeight = 0
	}
	if settings.VectorWeight < 0 {
		settings.VectorWeight = 0
	}
	if settings.DecayLambda < 0 {
		settings.DecayLambda = 0
	}
	if settings.RerankTopN <= 0 {
		settings.RerankTopN = 20
	}
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = 10
	}
	if settings.CandidateDepth <= 0 {
		settings.CandidateDepth = 30
	}

	return &RetrievalUseCase{
		providers: []candidateProvider{
			lexicalProvider{searcher: lexical},
			vectorProvider{embedder: embedder, searcher: vector},
		},
		reranker: reranker,
		settings: settings,
		observer: noopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// SetObserver installs a metrics sink for retrieval outcomes.
func (uc *RetrievalUseCase) SetObserver(observer ports.RetrievalObserver) {
	if observer != nil {
		uc.observer = observer
	}
}

func (uc *RetrievalUseCase) SetLogger(logger *slog.Logger) {
	if logger != nil {
		uc.logger = logger
	}
}

// Retrieve returns at most req.Limit candidates ranked by fused, decayed and optionally
// reranked score. Provider failures degrade the result instead of failing it; only invalid
// input and cancellation produce an error.
func (uc *RetrievalUseCase) Retrieve(ctx context.Context, req domain.RetrievalRequest) ([]domain.ScoredCandidate, error) {
	started := time.Now()
	req, err := uc.normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "memory.retrieve", trace.WithAttributes(
		attribute.Int("memory.rooms", len(req.RoomIDs)),
		attribute.Int("memory.limit", req.Limit),
	))
	defer span.End()

	depth := uc.settings.CandidateDepth
	if depth < req.Limit {
		depth = req.Limit
	}

	lists, failures := uc.fetchCandidates(ctx, req, depth)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		uc.observer.ObserveRetrieval(outcomeCanceled, 0, time.Since(started).Seconds())
		return nil, err
	}

	if failures == len(uc.providers) {
		uc.logger.Warn("retrieval_unavailable", "user_id", req.UserID, "rooms", len(req.RoomIDs))
		span.SetAttributes(attribute.String("memory.outcome", outcomeUnavailable))
		uc.observer.ObserveRetrieval(outcomeUnavailable, 0, time.Since(started).Seconds())
		return []domain.ScoredCandidate{}, nil
	}

	ranked := uc.rank(ctx, req, lists)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "canceled")
		uc.observer.ObserveRetrieval(outcomeCanceled, 0, time.Since(started).Seconds())
		return nil, err
	}
	out := trimCandidates(ranked, req.Limit)

	outcome := outcomeOK
	if failures > 0 {
		outcome = outcomeDegraded
	}
	span.SetAttributes(
		attribute.String("memory.outcome", outcome),
		attribute.Int("memory.results", len(out)),
	)
	uc.observer.ObserveRetrieval(outcome, len(out), time.Since(started).Seconds())
	return out, nil
}

func (uc *RetrievalUseCase) normalizeRequest(req domain.RetrievalRequest) (domain.RetrievalRequest, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		return req, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("user_id is required"))
	}

	roomIDs := make([]string, 0, len(req.RoomIDs))
	seen := make(map[string]struct{}, len(req.RoomIDs))
	for _, id := range req.RoomIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		roomIDs = append(roomIDs, id)
	}
	if len(roomIDs) == 0 {
		return req, domain.WrapError(domain.ErrInvalidInput, "retrieve", fmt.Errorf("at least one room id is required"))
	}
	req.RoomIDs = roomIDs

	if req.Limit <= 0 {
		req.Limit = uc.settings.DefaultLimit
	}
	return req, nil
}

// fetchCandidates queries every provider concurrently. A provider error never cancels its
// siblings; it only removes that provider's list from fusion.
func (uc *RetrievalUseCase) fetchCandidates(
	ctx context.Context,
	req domain.RetrievalRequest,
	depth int,
) (map[domain.CandidateSource][]domain.Candidate, int) {
	type providerResult struct {
		candidates []domain.Candidate
		err        error
	}

	results := make([]providerResult, len(uc.providers))
	var g errgroup.Group
	for i, p := range uc.providers {
		g.Go(func() error {
			candidates, err := p.Fetch(ctx, req, depth)
			results[i] = providerResult{candidates: candidates, err: err}
			return nil
		})
	}
	_ = g.Wait()

	lists := make(map[domain.CandidateSource][]domain.Candidate, len(uc.providers))
	failures := 0
	for i, p := range uc.providers {
		res := results[i]
		if res.err != nil {
			failures++
			if ctx.Err() == nil {
				uc.logger.Warn("retrieval_provider_failed", "source", string(p.Source()), "error", res.err)
				uc.observer.ObserveProviderFailure(p.Source())
			}
			continue
		}

		valid, skipped := sanitizeCandidates(res.candidates)
		if skipped > 0 {
			uc.logger.Warn("retrieval_malformed_candidates", "source", string(p.Source()), "skipped", skipped)
			uc.observer.ObserveMalformed(p.Source(), skipped)
		}
		lists[p.Source()] = valid
	}
	return lists, failures
}

func (uc *RetrievalUseCase) rank(
	ctx context.Context,
	req domain.RetrievalRequest,
	lists map[domain.CandidateSource][]domain.Candidate,
) []domain.ScoredCandidate {
	lexical := NormalizeScores(toScored(lists[domain.SourceLexical]))
	vector := NormalizeScores(toScored(lists[domain.SourceVector]))

	fused := FuseWeighted(lexical, vector, uc.settings.LexicalWeight, uc.settings.VectorWeight)
	if uc.settings.DecayEnabled {
		fused = ApplyTimeDecay(fused, uc.settings.DecayLambda, uc.now())
	}
	sortCandidates(fused)

	if uc.settings.RerankEnabled && uc.reranker != nil {
		fused = uc.rerankHead(ctx, req.Query, fused)
	}
	return fused
}

func (uc *RetrievalUseCase) rerankHead(ctx context.Context, query string, fused []domain.ScoredCandidate) []domain.ScoredCandidate {
	if len(fused) == 0 {
		return fused
	}
	topN := uc.settings.RerankTopN
	if topN > len(fused) {
		topN = len(fused)
	}

	head := make([]domain.ScoredCandidate, topN)
	copy(head, fused[:topN])

	reranked, err := uc.reranker.Rerank(ctx, query, head)
	if err != nil {
		if ctx.Err() == nil {
			uc.logger.Warn("retrieval_rerank_failed", "error", err)
		}
		return fused
	}

	out := applyRerankOutput(fused[:topN], reranked)
	floor := out[0].Score
	for _, c := range out[1:] {
		floor = min(floor, c.Score)
	}
	return append(out, capTailScores(fused[topN:], floor)...)
}

// capTailScores scales the tail so no tail score exceeds floor, the lowest reranked score.
// Tail order is unchanged.
func capTailScores(tail []domain.ScoredCandidate, floor float64) []domain.ScoredCandidate {
	if len(tail) == 0 || tail[0].Score <= floor {
		return tail
	}
	scale := 0.0
	if floor > 0 {
		scale = floor / tail[0].Score
	}
	out := make([]domain.ScoredCandidate, len(tail))
	for i, c := range tail {
		c.Score *= scale
		out[i] = c
	}
	return out
}

type noopObserver struct{}

func (noopObserver) ObserveProviderFailure(domain.CandidateSource) {}
func (noopObserver) ObserveMalformed(domain.CandidateSource, int) {}
func (noopObserver) ObserveRetrieval(string, int, float64) {}
