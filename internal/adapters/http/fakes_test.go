package httpadapter

import (
	"context"
	"net/http"

	"github.com/kirillkom/hybrid-memory/internal/config"
	"github.com/kirillkom/hybrid-memory/internal/core/domain"
)

type retrieverFake struct {
	got     domain.RetrievalRequest
	results []domain.ScoredCandidate
	err     error
}

func (f *retrieverFake) Retrieve(_ context.Context, req domain.RetrievalRequest) ([]domain.ScoredCandidate, error) {
	f.got = req
	return f.results, f.err
}

type assemblerFake struct {
	blocks []domain.ContextBlock
	err    error
}

func (f assemblerFake) BuildContextBlocks(context.Context, string, string, string, int) ([]domain.ContextBlock, error) {
	return f.blocks, f.err
}

type ingestorFake struct {
	err error
}

func (f ingestorFake) Ingest(_ context.Context, msg domain.Message) (*domain.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	msg.ID = "msg-1"
	return &msg, nil
}

type roomsFake struct {
	got domain.Room
	err error
}

func (f *roomsFake) PutRoom(_ context.Context, room domain.Room) (*domain.Room, error) {
	f.got = room
	if f.err != nil {
		return nil, f.err
	}
	return &room, nil
}

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &retrieverFake{}, assemblerFake{}, ingestorFake{}, &roomsFake{}).Handler()
}
