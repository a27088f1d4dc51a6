package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/hybrid-memory/internal/config"
	"github.com/kirillkom/hybrid-memory/internal/core/ports"
	"github.com/kirillkom/hybrid-memory/internal/core/usecase"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/cache/roomcache"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/graph/neo4j"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/queue/inline"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/resilience"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/vector/chromem"
	"github.com/kirillkom/hybrid-memory/internal/infrastructure/vector/qdrant"
)

type Options struct {
	Logger   *slog.Logger
	Observer ports.RetrievalObserver
	Upstream resilience.Observer
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue     ports.MessageQueue
	Retriever *usecase.RetrievalUseCase
	Context   *usecase.ContextUseCase
	Ingest    *usecase.IngestUseCase
	Indexer   *usecase.IndexUseCase
	Rooms     *usecase.RoomUseCase

	closers []func()
}

type messageBackend interface {
	ports.MessageStore
	ports.LexicalSearcher
}

type roomBackend interface {
	ports.RoomDirectory
	ports.RoomRegistry
}

type vectorBackend interface {
	ports.VectorSearcher
	ports.VectorIndexer
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger}

	if err := app.build(ctx, cfg, opts); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context, cfg config.Config, opts Options) error {
	executor := resilience.NewExecutor(ResilienceConfig(cfg)).
		WithLogger(a.Logger).
		WithObserver(opts.Upstream)

	messages, rooms, err := a.openStore(ctx, cfg)
	if err != nil {
		return err
	}

	var qdrantClient *qdrant.Client
	if cfg.VectorBackend == "qdrant" || cfg.LexicalBackend == "qdrant" {
		qdrantClient = qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, executor)
	}

	var vectors vectorBackend
	switch cfg.VectorBackend {
	case "chromem":
		index, err := chromem.Open(cfg.ChromemPath, cfg.ChromemCollection)
		if err != nil {
			return fmt.Errorf("open chromem: %w", err)
		}
		vectors = index
	default:
		vectors = qdrantClient
	}

	var lexical ports.LexicalSearcher = messages
	if cfg.LexicalBackend == "qdrant" {
		lexical = qdrantClient
	}

	if cfg.RoomBackend == "neo4j" {
		graph, err := neo4j.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, executor)
		if err != nil {
			return fmt.Errorf("connect neo4j: %w", err)
		}
		a.onClose(func() { _ = graph.Close(context.Background()) })
		rooms = graph
	}

	if cfg.RoomCacheTTLSeconds > 0 {
		cached, err := roomcache.New(rooms, rooms, time.Duration(cfg.RoomCacheTTLSeconds)*time.Second)
		if err != nil {
			return err
		}
		a.onClose(cached.Close)
		rooms = cached
	}

	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, executor))

	var reranker ports.Reranker
	if cfg.RerankEnabled {
		reranker = usecase.NewOverlapReranker()
	}

	retriever := usecase.NewRetrievalUseCase(lexical, vectors, embedder, reranker, usecase.RetrievalSettings{
		LexicalWeight:  cfg.FusionLexicalWeight,
		VectorWeight:   cfg.FusionVectorWeight,
		DecayEnabled:   cfg.DecayEnabled,
		DecayLambda:    cfg.DecayLambda,
		RerankEnabled:  cfg.RerankEnabled,
		RerankTopN:     cfg.RerankTopN,
		DefaultLimit:   cfg.RetrievalTopK,
		CandidateDepth: cfg.RetrievalCandidates,
	})
	retriever.SetLogger(a.Logger)
	retriever.SetObserver(opts.Observer)

	contextUC := usecase.NewContextUseCase(retriever, rooms, cfg.MaxAncestorDepth)
	contextUC.SetLogger(a.Logger)

	a.Indexer = usecase.NewIndexUseCase(messages, embedder, vectors)

	switch cfg.QueueBackend {
	case "inline":
		queue := inline.New(a.Logger)
		queue.Subscribe(a.Indexer.IndexByID)
		a.Queue = queue
	default:
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
			Logger:             a.Logger,
		})
		if err != nil {
			return fmt.Errorf("init message queue: %w", err)
		}
		a.onClose(queue.Close)
		a.Queue = queue
	}

	a.Retriever = retriever
	a.Context = contextUC
	a.Ingest = usecase.NewIngestUseCase(messages, a.Queue)
	a.Rooms = usecase.NewRoomUseCase(rooms, rooms, cfg.MaxAncestorDepth)
	return nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config) (messageBackend, roomBackend, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		a.onClose(func() { _ = store.Close() })
		return store, store, nil
	default:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		a.onClose(func() { _ = db.Close() })
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return postgres.NewMessageRepository(db), postgres.NewRoomRepository(db), nil
	}
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:      cfg.BreakerEnabled,
			MinRequests:  uint32(max(cfg.BreakerMinRequests, 0)),
			FailureRatio: cfg.BreakerFailureRatio,
			OpenTimeout:  time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
		},
	}
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
