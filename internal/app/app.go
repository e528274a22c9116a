package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/category"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/chat"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/document"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/job"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/mcp"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/features/stats"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/adapter/gemini"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/config"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/ingest"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/middleware"
	engine "github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/originality"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/rag"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/retrieval"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/settings"
	"github.com/prel2014/SISTEMA-RAG-UNIVERSITARIO/internal/worker"
)

type App struct {
	Handler             http.Handler
	Settings            *settings.Service
	IngestConsumer      *worker.IngestConsumer
	OriginalityConsumer *worker.OriginalityConsumer

	port int
}

func New(
	cfg *config.Config,
	db Database,
	vecStore VectorStore,
	taskPub TaskPublisher,
	logger *slog.Logger,
) (*App, error) {
	// Repositories take *sql.DB; the interface lets tests hand in sqlmock.
	sqlDB, ok := db.(*sql.DB)
	if !ok {
		return nil, fmt.Errorf("unsupported database handle %T", db)
	}

	// Feature: Settings
	settingsRepo := settings.NewPostgresRepo(sqlDB)
	settingsService := settings.NewService(settingsRepo, settings.FromDefaults(cfg.RAG))
	settingsHandler := settings.NewHandler(settingsService)

	// Adapters: Gemini
	embedder := gemini.NewEmbedder(gemini.EmbedderConfig{
		APIKey:      cfg.GeminiAPIKey,
		Model:       cfg.EmbeddingModel,
		Dimension:   cfg.EmbeddingDimension,
		BatchSize:   cfg.EmbedBatchSize,
		Concurrency: cfg.EmbedConcurrency,
	})
	generator := gemini.NewGenerator(gemini.GeneratorConfig{
		APIKey:            cfg.GeminiAPIKey,
		Model:             cfg.LLMModel,
		RequestsPerMinute: cfg.LLMRequestsPerMin,
	})
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, embedding and generation will fail")
	}

	// Feature: Category
	categoryRepo := category.NewPostgresRepo(sqlDB)
	categoryService := category.NewService(categoryRepo)
	categoryHandler := category.NewHandler(categoryService)

	// Feature: Document
	documentRepo := document.NewPostgresRepo(sqlDB)
	documentService := document.NewService(documentRepo, taskPub, vecStore, categoryService)
	documentHandler := document.NewHandler(documentService)

	// Feature: Originality
	checkRepo := originality.NewPostgresRepo(sqlDB)
	checkService := originality.NewService(checkRepo, taskPub, cfg.OriginalityThreshold)
	checkHandler := originality.NewHandler(checkService)

	// Feature: Job
	jobRepo := job.NewPostgresRepo(sqlDB)
	jobService := job.NewService(jobRepo, taskPub, map[string]job.ResetFunc{
		config.TopicDocumentIngest:   documentRepo.ResetForReprocess,
		config.TopicOriginalityCheck: checkRepo.ResetPending,
	})
	jobHandler := job.NewHandler(jobService)

	// Feature: Stats
	statsHandler := stats.NewHandler(documentService, checkService, jobRepo, vecStore)

	// Feature: Retrieval & Chat
	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		logger.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	retriever := retrieval.NewRetriever(embedder, vecStore)
	assembler := retrieval.NewAssembler(rag.NewQueryExpander(generator), retriever, queryLogger)
	answerer := rag.NewAnswerer(assembler, rag.NewReflector(generator), generator, settingsService)

	chatRepo := chat.NewPostgresRepo(sqlDB)
	chatService := chat.NewService(chatRepo, answerer)
	chatHandler := chat.NewHandler(chatService)

	// Feature: MCP tools over the same retrieval
	mcpHandler := mcp.NewHandler(assembler, documentService, settingsService)

	// Workers
	pipeline := ingest.NewPipeline(documentRepo, categoryService, settingsService, embedder, vecStore, generator, ingest.Options{
		AutoCategorize: cfg.AutoCategorize,
		SummaryChunks:  cfg.SummarizeChunks,
		MinChunkLength: cfg.MinChunkLength,
	})
	scorer := engine.NewEngine(embedder, vecStore, generator, checkRepo, settingsService, engine.Options{
		TopK:                cfg.OriginalityTopK,
		NoiseFloor:          cfg.OriginalityNoiseFloor,
		MaxLLMDocs:          cfg.OriginalityMaxLLMDocs,
		MinSimilarityForLLM: cfg.OriginalityMinSimLLM,
		MinChunkLength:      cfg.MinChunkLength,
	})
	unitTimeout := time.Duration(cfg.UnitTimeoutMins) * time.Minute
	if unitTimeout <= 0 {
		unitTimeout = 15 * time.Minute
	}
	ingestConsumer := worker.NewIngestConsumer(documentRepo, pipeline, jobService, unitTimeout)
	originalityConsumer := worker.NewOriginalityConsumer(checkRepo, scorer, jobService, unitTimeout)

	// Routes
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(middleware.CORS(h)))
	}

	route("POST /documents", documentHandler.Create)
	route("GET /documents", documentHandler.List)
	route("GET /documents/{id}", documentHandler.Get)
	route("GET /documents/{id}/pages", documentHandler.Pages)
	route("DELETE /documents/{id}", documentHandler.Delete)
	route("POST /documents/{id}/reprocess", documentHandler.Reprocess)

	route("GET /categories", categoryHandler.List)
	route("POST /categories", categoryHandler.Create)

	route("POST /chat/message", chatHandler.Message)
	route("POST /chat/stream", chatHandler.Stream)
	route("GET /chat/conversations/{id}", chatHandler.Conversation)
	route("DELETE /chat/conversations/{id}", chatHandler.DeleteConversation)

	route("POST /originality", checkHandler.Create)
	route("GET /originality", checkHandler.List)
	route("GET /originality/{id}", checkHandler.Get)
	route("DELETE /originality/{id}", checkHandler.Delete)

	route("GET /settings", settingsHandler.GetSettings)
	route("PUT /settings", settingsHandler.UpdateSettings)

	route("GET /jobs/failed", jobHandler.List)
	route("POST /jobs/{id}/retry", jobHandler.Retry)

	route("GET /stats", statsHandler.GetStats)

	route("POST /mcp", mcpHandler.ServeHTTP)
	route("GET /mcp/sse", mcpHandler.HandleSSE)
	route("POST /mcp/messages", mcpHandler.HandleMessage)

	// Preflight for every route; method patterns above would otherwise answer 405.
	mux.Handle("OPTIONS /", middleware.CORS(func(w http.ResponseWriter, r *http.Request) {}))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return &App{
		Handler:             mux,
		Settings:            settingsService,
		IngestConsumer:      ingestConsumer,
		OriginalityConsumer: originalityConsumer,
		port:                cfg.ServerPort,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	port := a.port
	if port == 0 {
		port = 8081
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", port)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
