package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkomarov/doc-analyst/internal/config"
	"github.com/dkomarov/doc-analyst/internal/core/ports"
	"github.com/dkomarov/doc-analyst/internal/core/usecase"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/chunking"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/extractor"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/extractor/pdf"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/extractor/plaintext"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/extractor/xlsx"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/llm/ollama"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/llm/openai"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/queue/nats"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/repository/postgres"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/reranker/tei"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/resilience"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/storage/localfs"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/vector/pgvector"
	"github.com/dkomarov/doc-analyst/internal/infrastructure/vector/qdrant"
	"github.com/dkomarov/doc-analyst/internal/observability/logging"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository

	AskUC     ports.QuestionAnswerer
	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig(), logger)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	embedder, generator, err := buildLLM(cfg, executor)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	vectorDB, closeVectorDB, err := buildVectorStore(ctx, cfg)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, err
	}

	var encoder ports.CrossEncoder
	if cfg.RerankerURL != "" {
		encoder = tei.New(cfg.RerankerURL)
	}

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)

	dispatcher := extractor.NewDispatcher(plaintext.NewExtractor(storage))
	dispatcher.Register(plaintext.NewExtractor(storage), "txt", "md", "csv", "log")
	dispatcher.Register(pdf.NewExtractor(storage), "pdf")
	dispatcher.Register(xlsx.NewExtractor(storage), "xlsx", "xls")

	lexical := usecase.NewLexicalRegistry(vectorDB, repo, logger)
	dense := usecase.NewDenseRetriever(embedder, vectorDB)
	reranker := usecase.NewCrossEncoderReranker(encoder, logger)
	retrieval := usecase.NewRetrievalService(lexical, dense, reranker, logger).
		WithDefaultBudget(cfg.AskTopK)
	planner := usecase.NewQueryPlanner(logger)
	synthesizer := usecase.NewAnswerSynthesizer(
		generator,
		time.Duration(cfg.GenTimeoutSeconds)*time.Second,
		logger,
	)

	askUC := usecase.NewAskService(planner, retrieval, synthesizer, logger)
	ingestUC := usecase.NewIngestDocumentService(repo, storage, queue)
	processUC := usecase.NewProcessDocumentService(repo, dispatcher, chunker, embedder, vectorDB, lexical)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue: queue,
		Repo:  repo,

		AskUC:     askUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,

		closeFn: func() {
			lexical.Close()
			queue.Close()
			if closeVectorDB != nil {
				closeVectorDB()
			}
			_ = db.Close()
		},
	}, nil
}

func buildLLM(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.AnswerGenerator, error) {
	switch cfg.LLMProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, nil, fmt.Errorf("llm provider %q requires OPENAI_API_KEY", cfg.LLMProvider)
		}
		client := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel)
		return openai.NewEmbedder(client), openai.NewGenerator(client), nil
	case "ollama", "":
		client := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
			ResilienceExecutor: executor,
		})
		return ollama.NewEmbedder(client), ollama.NewGenerator(client), nil
	default:
		return nil, nil, fmt.Errorf("unknown llm provider: %q", cfg.LLMProvider)
	}
}

func buildVectorStore(ctx context.Context, cfg config.Config) (ports.VectorStore, func(), error) {
	switch cfg.VectorBackend {
	case "pgvector":
		store, err := pgvector.New(ctx, cfg.PostgresDSN, cfg.EmbeddingDim)
		if err != nil {
			return nil, nil, fmt.Errorf("init pgvector store: %w", err)
		}
		return store, store.Close, nil
	case "qdrant", "":
		return qdrant.New(cfg.QdrantURL, cfg.QdrantCollection), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown vector backend: %q", cfg.VectorBackend)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
