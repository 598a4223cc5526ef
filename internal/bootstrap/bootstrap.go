package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"time"

	httpadapter "github.com/ivmaltsev/corpus-engine/internal/adapters/http"
	"github.com/ivmaltsev/corpus-engine/internal/config"
	"github.com/ivmaltsev/corpus-engine/internal/core/ports"
	"github.com/ivmaltsev/corpus-engine/internal/core/retrieval"
	"github.com/ivmaltsev/corpus-engine/internal/core/usecase"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/catalog/postgres"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/chunking"
	chunkpg "github.com/ivmaltsev/corpus-engine/internal/infrastructure/chunkstore/postgres"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/embedding/ollama"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/extractor"
	natsqueue "github.com/ivmaltsev/corpus-engine/internal/infrastructure/queue/nats"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/resilience"
	"github.com/ivmaltsev/corpus-engine/internal/infrastructure/storage/localfs"
	"github.com/ivmaltsev/corpus-engine/internal/observability/metrics"
)

// App wires the infrastructure behind the inbound ports. Both binaries
// build the same graph; they differ only in which entry points they serve.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Ingestor  ports.ResourceIngestor
	Processor ports.EmbeddingProcessor
	Retriever ports.RetrievalService
	Admin     ports.CatalogAdmin
	Queue     *natsqueue.Queue

	db *sql.DB
}

func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	catalog := postgres.NewCatalog(db)
	if err := catalog.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure catalog schema: %w", err)
	}
	chunkStore := chunkpg.NewStore(db)
	if err := chunkStore.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure chunk schema: %w", err)
	}

	blobs, err := localfs.New(cfg.BlobPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init queue: %w", err)
	}

	embedder := ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, ollama.Options{
		RequestsPerSec: cfg.EmbedRateRPS,
		Burst:          cfg.EmbedRateBurst,
		Timeout:        time.Duration(cfg.EmbedTimeoutSeconds) * time.Second,
	})

	rules := retrieval.DefaultAuthorityRules()
	if cfg.GradingRulesPath != "" {
		rules, err = retrieval.LoadAuthorityRules(cfg.GradingRulesPath)
		if err != nil {
			queue.Close()
			db.Close()
			return nil, fmt.Errorf("load grading rules: %w", err)
		}
	}

	lexical := retrieval.NewLexical(chunkStore, cfg.BM25K1, cfg.BM25B)
	semantic := retrieval.NewSemantic(chunkStore, embedder)
	hybrid := retrieval.NewHybrid(lexical, semantic, cfg.RetrievalRRFK, cfg.RetrievalOverfetch)
	grading := retrieval.NewGrading(hybrid, rules)

	app := &App{
		Config: cfg,
		Logger: logger,
		Ingestor: usecase.NewRegisterResourceUseCase(
			catalog, blobs, queue, logger,
		),
		Processor: usecase.NewEmbedResourceUseCase(
			catalog,
			blobs,
			extractor.NewComposite(),
			chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
			embedder,
			chunkStore,
			resilience.NewExecutor(resilience.DefaultConfig()),
			cfg.ErrorTextLimit,
			logger,
		),
		Retriever: usecase.NewRetrieveUseCase(
			lexical, semantic, hybrid, grading, cfg.RetrievalTopK,
		),
		Admin: usecase.NewCatalogAdminUseCase(
			catalog, blobs, chunkStore, logger,
		),
		Queue: queue,
		db:    db,
	}
	return app, nil
}

// NewAPIHandler builds the HTTP surface served by the api binary.
func (a *App) NewAPIHandler(httpMetrics *metrics.HTTPServerMetrics) stdhttp.Handler {
	router := httpadapter.NewRouter(a.Ingestor, a.Retriever, a.Admin, httpMetrics, a.Logger)
	return router.Handler()
}

func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}
