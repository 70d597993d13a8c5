package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/api"
	"github.com/hybrid-rag/backend/internal/api/handlers"
	"github.com/hybrid-rag/backend/internal/cache"
	"github.com/hybrid-rag/backend/internal/cache/memory"
	"github.com/hybrid-rag/backend/internal/cache/redis"
	"github.com/hybrid-rag/backend/internal/evaluation"
	"github.com/hybrid-rag/backend/internal/ingestion"
	"github.com/hybrid-rag/backend/internal/llm"
	"github.com/hybrid-rag/backend/internal/metrics"
	"github.com/hybrid-rag/backend/internal/middleware/ratelimit"
	"github.com/hybrid-rag/backend/internal/middleware/security"
	"github.com/hybrid-rag/backend/internal/middleware/validation"
	"github.com/hybrid-rag/backend/internal/query"
	"github.com/hybrid-rag/backend/internal/retrieval"
	"github.com/hybrid-rag/backend/internal/storage/sqlite"
	"github.com/hybrid-rag/backend/internal/vector/zilliz"
	"github.com/hybrid-rag/backend/pkg/config"
	appLogger "github.com/hybrid-rag/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting hybrid RAG API server")
	metrics.Init()

	ctx := context.Background()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	snapshot, err := ingestion.LoadSnapshot(sqliteClient)
	if err != nil {
		appLogger.Fatal("Failed to load corpus", zap.Error(err))
	}
	metrics.CorpusChunks.Set(float64(len(snapshot.Corpus.Chunks())))

	checks := map[string]handlers.Check{
		"sqlite": func(context.Context) error { return sqliteClient.Ping() },
	}

	var index retrieval.SemanticIndex = snapshot.Index
	var vectorWriter ingestion.VectorWriter
	if cfg.Zilliz.Enabled {
		zillizClient, err := zilliz.NewClient(ctx, zilliz.Config{
			Endpoint:       cfg.Zilliz.Endpoint,
			APIKey:         cfg.Zilliz.APIKey,
			CollectionName: cfg.Zilliz.CollectionName,
			VectorDim:      cfg.Zilliz.VectorDim,
			NList:          cfg.Zilliz.NList,
			NProbe:         cfg.Zilliz.NProbe,
		})
		if err != nil {
			appLogger.Fatal("Failed to create Zilliz client", zap.Error(err))
		}
		defer zillizClient.Close()

		if err := zillizClient.CreateCollection(ctx); err != nil {
			appLogger.Fatal("Failed to prepare collection", zap.Error(err))
		}
		index = zillizClient
		vectorWriter = zillizClient
		checks["zilliz"] = zillizClient.Ping
	} else {
		appLogger.Info("Using in-process semantic index", zap.Int("vectors", snapshot.Index.Len()))
	}

	llmClient := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		Timeout:        time.Duration(cfg.LLM.TimeoutSec) * time.Second,
	})

	embeddingCache, cacheType := newEmbeddingCache(ctx, cfg, checks)

	var scorer retrieval.Scorer = retrieval.PhraseScorer{}
	if cfg.LLM.RerankScorer == "embedding" {
		scorer = llm.NewEmbeddingScorer(llmClient)
	}
	pipeline := retrieval.NewPipeline(index, snapshot.Corpus, retrieval.NewReranker(scorer))

	evaluator, err := evaluation.NewEvaluator(cfg.Evaluation.ToEvaluationConfig())
	if err != nil {
		appLogger.Fatal("Invalid evaluation config", zap.Error(err))
	}

	queryEngine := query.NewEngine(pipeline, evaluator, query.Options{
		Embedder:       llmClient,
		Generator:      llmClient,
		Store:          sqliteClient,
		Cache:          embeddingCache,
		CacheTTL:       time.Duration(cfg.Cache.EmbeddingTTL) * time.Second,
		CacheType:      cacheType,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		ModelName:      cfg.LLM.Model,
		Retrieval:      cfg.Retrieval.ToRetrievalConfig(),
		Timeout:        cfg.Retrieval.Timeout(),
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	allowOrigins := "*"
	if len(cfg.Server.AllowedOrigins) > 0 {
		allowOrigins = strings.Join(cfg.Server.AllowedOrigins, ", ")
	}

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-User-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IsDevelopment:  cfg.Server.Development,
	}))

	validator := validation.New(validation.Config{Logger: appLogger.GetLogger()})

	var guards []fiber.Handler
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Burst:                cfg.RateLimit.Burst,
			Logger:               appLogger.GetLogger(),
		})
		defer limiter.Stop()
		guards = append(guards, limiter.Middleware())
	}
	guards = append(guards, validator.Middleware())

	refreshCorpus := func() (int, error) {
		if err := snapshot.Refresh(sqliteClient); err != nil {
			return 0, err
		}
		return len(snapshot.Corpus.Chunks()), nil
	}

	queryTimeout := time.Duration(cfg.Server.QueryTimeout) * time.Second
	api.RegisterRoutes(app, api.Handlers{
		Query:      handlers.NewQueryHandler(queryEngine, sqliteClient, validator),
		Evaluation: handlers.NewEvaluationHandler(evaluator, validator),
		Feedback:   handlers.NewFeedbackHandler(sqliteClient, validator),
		Health:     handlers.NewHealthHandler(checks),
		Documents:  handlers.NewDocumentHandler(ingestion.NewLoader(sqliteClient, vectorWriter), refreshCorpus, validator),
		WebSocket:  handlers.NewWebSocketHandler(queryEngine, validator, queryTimeout),
	}, guards...)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		appLogger.Warn("Shutdown did not complete cleanly", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

// newEmbeddingCache prefers Redis and falls back to the in-process cache when
// Redis is disabled or unreachable.
func newEmbeddingCache(ctx context.Context, cfg *config.Config, checks map[string]handlers.Check) (cache.EmbeddingCache, string) {
	ttl := time.Duration(cfg.Cache.EmbeddingTTL) * time.Second
	cleanup := time.Duration(cfg.Cache.CleanupInterval) * time.Second

	if !cfg.Redis.Enabled {
		return memory.New(ttl, cleanup), "memory"
	}

	redisClient, err := redis.NewClient(ctx, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		appLogger.Warn("Redis unavailable, using in-process embedding cache", zap.Error(err))
		return memory.New(ttl, cleanup), "memory"
	}
	checks["redis"] = redisClient.Ping
	return redisClient, "redis"
}
