package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

type fakeLexical struct {
	candidates []domain.Candidate
	err        error
	block      bool
}

func (f *fakeLexical) SearchLexical(ctx context.Context, query string, roomIDs []string, _ string, limit int) ([]domain.Candidate, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	allowed := make(map[string]struct{}, len(roomIDs))
	for _, id := range roomIDs {
		allowed[id] = struct{}{}
	}
	out := make([]domain.Candidate, 0, len(f.candidates))
	for _, c := range f.candidates {
		if _, ok := allowed[c.RoomID]; !ok {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(c.Content), strings.ToLower(query)) {
			continue
		}
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type fakeVector struct {
	candidates []domain.Candidate
	err        error
}

func (f *fakeVector) SearchVector(_ context.Context, _ []float32, _ []string, _ string, _ int) ([]domain.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Candidate, len(f.candidates))
	copy(out, f.candidates)
	return out, nil
}

func (f *fakeVector) IndexMessage(_ context.Context, msg domain.Message, vector []float32) error {
	if f.err != nil {
		return f.err
	}
	f.candidates = append(f.candidates, msg.AsCandidate(domain.SourceVector, float64(len(vector))))
	return nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type reverseReranker struct {
	err   error
	calls int
}

func (r *reverseReranker) Rerank(_ context.Context, _ string, candidates []domain.ScoredCandidate) ([]domain.ScoredCandidate, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	out := make([]domain.ScoredCandidate, 0, len(candidates))
	for i := len(candidates) - 1; i >= 0; i-- {
		out = append(out, candidates[i])
	}
	return out, nil
}

type fakeRooms struct {
	rooms map[string]domain.Room
	err   error
}

func (f *fakeRooms) GetRoom(_ context.Context, roomID string) (*domain.Room, error) {
	if f.err != nil {
		return nil, f.err
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, domain.WrapError(domain.ErrRoomNotFound, "get room", errors.New(roomID))
	}
	return &room, nil
}

type fakeStore struct {
	mu       sync.Mutex
	messages map[string]domain.Message
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: map[string]domain.Message{}}
}

func (s *fakeStore) CreateMessage(_ context.Context, msg *domain.Message) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ID] = *msg
	return nil
}

func (s *fakeStore) GetMessage(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.messages[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrMessageNotFound, "get message", errors.New(id))
	}
	return &msg, nil
}

type fakeQueue struct {
	published []string
	err       error
}

func (q *fakeQueue) PublishMessageCreated(_ context.Context, messageID string) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, messageID)
	return nil
}

func (q *fakeQueue) SubscribeMessageCreated(context.Context, func(context.Context, string) error) error {
	return nil
}

type recordingObserver struct {
	mu        sync.Mutex
	failures  []domain.CandidateSource
	malformed int
	outcomes  []string
}

func (o *recordingObserver) ObserveProviderFailure(source domain.CandidateSource) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, source)
}

func (o *recordingObserver) ObserveMalformed(_ domain.CandidateSource, count int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.malformed += count
}

func (o *recordingObserver) ObserveRetrieval(outcome string, _ int, _ float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}
