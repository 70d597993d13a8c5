package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/cache"
	"github.com/hybrid-rag/backend/internal/evaluation"
	"github.com/hybrid-rag/backend/internal/llm"
	"github.com/hybrid-rag/backend/internal/metrics"
	"github.com/hybrid-rag/backend/internal/retrieval"
	"github.com/hybrid-rag/backend/internal/storage/models"
	"github.com/hybrid-rag/backend/pkg/logger"
)

// NoContextAnswer is returned without calling the generator when retrieval
// finds nothing relevant.
const NoContextAnswer = "No relevant context was found in the knowledge base to answer this question."

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	GenerateAnswer(ctx context.Context, query string, contexts []string) (*llm.Answer, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, queryText string, queryVector []float32, cfg retrieval.Config) (*retrieval.Result, error)
}

type Store interface {
	InsertQueryRecord(record *models.QueryRecord) error
	InsertQuerySource(source *models.QuerySource) error
	InsertEvaluation(record *models.EvaluationRecord) error
}

type Options struct {
	Embedder  Embedder
	Generator Generator
	Store     Store
	Cache     cache.EmbeddingCache
	CacheTTL  time.Duration
	// CacheType labels cache metrics, e.g. "redis" or "memory".
	CacheType      string
	EmbeddingModel string
	ModelName      string
	Retrieval      retrieval.Config
	// Timeout bounds the retrieval stage; zero leaves it to the caller.
	Timeout time.Duration
}

type Engine struct {
	retriever      Retriever
	evaluator      *evaluation.Evaluator
	embedder       Embedder
	generator      Generator
	store          Store
	cache          cache.EmbeddingCache
	cacheTTL       time.Duration
	cacheType      string
	embeddingModel string
	modelName      string
	defaults       retrieval.Config
	timeout        time.Duration
}

type Request struct {
	Query     string
	UserID    string
	Reference *string
	// Config overrides the engine's retrieval defaults for this request.
	Config *retrieval.Config
}

type Response struct {
	ID         string            `json:"id"`
	Query      string            `json:"query"`
	Answer     string            `json:"answer"`
	NoContext  bool              `json:"no_context"`
	Degraded   bool              `json:"degraded"`
	Partial    bool              `json:"partial"`
	Reranked   bool              `json:"reranked"`
	Sources    []Source          `json:"sources"`
	// Evaluation is nil when retrieval was empty and no answer was generated.
	Evaluation *evaluation.Record `json:"evaluation,omitempty"`
	Usage      llm.Usage         `json:"usage"`
	LatencyMS  int               `json:"latency_ms"`
}

type Source struct {
	Rank          int      `json:"rank"`
	ChunkID       string   `json:"chunk_id"`
	SourceID      string   `json:"source_id"`
	Identifier    string   `json:"identifier,omitempty"`
	Text          string   `json:"text"`
	SemanticScore float64  `json:"semantic_score"`
	LexicalScore  float64  `json:"lexical_score"`
	CombinedScore float64  `json:"combined_score"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
}

type Stage string

const (
	StageEmbedding  Stage = "embedding"
	StageRetrieval  Stage = "retrieval"
	StageGeneration Stage = "generation"
	StageEvaluation Stage = "evaluation"
)

// ProgressFunc receives stage updates while a query runs.
type ProgressFunc func(stage Stage, detail map[string]any)

func NewEngine(retriever Retriever, evaluator *evaluation.Evaluator, opts Options) *Engine {
	if opts.CacheType == "" {
		opts.CacheType = "embedding"
	}
	return &Engine{
		retriever:      retriever,
		evaluator:      evaluator,
		embedder:       opts.Embedder,
		generator:      opts.Generator,
		store:          opts.Store,
		cache:          opts.Cache,
		cacheTTL:       opts.CacheTTL,
		cacheType:      opts.CacheType,
		embeddingModel: opts.EmbeddingModel,
		modelName:      opts.ModelName,
		defaults:       opts.Retrieval,
		timeout:        opts.Timeout,
	}
}

func (e *Engine) DefaultConfig() retrieval.Config {
	return e.defaults
}

func (e *Engine) Evaluator() *evaluation.Evaluator {
	return e.evaluator
}

func (e *Engine) ProcessQuery(ctx context.Context, req Request) (*Response, error) {
	return e.ProcessQueryWithProgress(ctx, req, nil)
}

func (e *Engine) ProcessQueryWithProgress(ctx context.Context, req Request, progress ProgressFunc) (*Response, error) {
	startTime := time.Now()
	queryID := uuid.New().String()
	notify := func(stage Stage, detail map[string]any) {
		if progress != nil {
			progress(stage, detail)
		}
	}

	logger.Info("Processing query",
		zap.String("query_id", queryID),
		zap.String("query", req.Query),
	)

	result, err := e.retrieve(ctx, req.Query, req.Config, notify)
	if err != nil {
		metrics.QueryTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	resp := &Response{
		ID:        queryID,
		Query:     req.Query,
		Degraded:  result.Degraded,
		Partial:   result.Partial,
		Reranked:  result.Reranked,
		Sources:   toSources(result.Candidates),
		NoContext: result.Empty(),
	}

	contexts := result.Texts()
	if resp.NoContext {
		resp.Answer = NoContextAnswer
		logger.Info("No relevant context found", zap.String("query_id", queryID))
	} else {
		notify(StageGeneration, map[string]any{"contexts": len(contexts)})
		genStart := time.Now()
		answer, err := e.generate(ctx, req.Query, contexts)
		metrics.QueryDuration.WithLabelValues(string(StageGeneration)).Observe(time.Since(genStart).Seconds())
		if err != nil {
			metrics.QueryTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		resp.Answer = answer.Content
		resp.Usage = answer.Usage
		metrics.LLMTokensUsed.WithLabelValues(e.modelName, "prompt").Add(float64(answer.Usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(e.modelName, "completion").Add(float64(answer.Usage.CompletionTokens))
	}

	if !resp.NoContext {
		notify(StageEvaluation, nil)
		record := e.evaluator.Evaluate(req.Query, contexts, resp.Answer, req.Reference)
		metrics.ObserveEvaluation(record)
		resp.Evaluation = &record
	}

	resp.LatencyMS = int(time.Since(startTime).Milliseconds())
	e.persist(req, resp)

	status := "success"
	if resp.NoContext {
		status = "no_context"
	}
	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.QueryDuration.WithLabelValues("total").Observe(time.Since(startTime).Seconds())

	fields := []zap.Field{
		zap.String("query_id", queryID),
		zap.Int("sources", len(resp.Sources)),
		zap.Bool("degraded", resp.Degraded),
		zap.Int("latency_ms", resp.LatencyMS),
	}
	if resp.Evaluation != nil {
		fields = append(fields, zap.Float64("faithfulness", resp.Evaluation.Faithfulness))
	}
	logger.Info("Query processed successfully", fields...)

	return resp, nil
}

// Retrieve runs the embedding and retrieval stages only.
func (e *Engine) Retrieve(ctx context.Context, queryText string, cfg *retrieval.Config) (*retrieval.Result, error) {
	return e.retrieve(ctx, queryText, cfg, func(Stage, map[string]any) {})
}

func (e *Engine) retrieve(ctx context.Context, queryText string, override *retrieval.Config, notify ProgressFunc) (*retrieval.Result, error) {
	cfg := e.defaults
	if override != nil {
		cfg = *override
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	notify(StageEmbedding, nil)
	vector := e.embed(ctx, queryText)

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	notify(StageRetrieval, nil)
	start := time.Now()
	result, err := e.retriever.Retrieve(ctx, queryText, vector, cfg)
	metrics.QueryDuration.WithLabelValues(string(StageRetrieval)).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	metrics.RetrievalResultsCount.Observe(float64(len(result.Candidates)))
	if result.Degraded {
		metrics.RetrievalOutcomes.WithLabelValues("degraded").Inc()
	}
	if result.Empty() {
		metrics.RetrievalOutcomes.WithLabelValues("empty").Inc()
	}
	if result.Partial {
		metrics.RetrievalOutcomes.WithLabelValues("partial").Inc()
	}
	if result.Reranked {
		metrics.RetrievalOutcomes.WithLabelValues("reranked").Inc()
	}

	return result, nil
}

// embed returns nil when no vector can be produced; retrieval then runs
// lexical-only and reports itself degraded.
func (e *Engine) embed(ctx context.Context, text string) []float32 {
	if e.embedder == nil || strings.TrimSpace(text) == "" {
		return nil
	}

	key := cache.EmbeddingKey(e.embeddingModel, text)
	if e.cache != nil {
		vec, found, err := e.cache.GetEmbedding(ctx, key)
		if err != nil {
			logger.Warn("Embedding cache lookup failed", zap.Error(err))
		}
		if found {
			metrics.CacheHits.WithLabelValues(e.cacheType).Inc()
			return vec
		}
		metrics.CacheMisses.WithLabelValues(e.cacheType).Inc()
	}

	start := time.Now()
	vec, err := e.embedder.GenerateEmbedding(ctx, text)
	metrics.QueryDuration.WithLabelValues(string(StageEmbedding)).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Warn("Query embedding failed, continuing lexical-only", zap.Error(err))
		return nil
	}

	if e.cache != nil {
		if err := e.cache.SetEmbedding(ctx, key, vec, e.cacheTTL); err != nil {
			logger.Warn("Failed to cache embedding", zap.Error(err))
		}
	}
	return vec
}

func (e *Engine) generate(ctx context.Context, queryText string, contexts []string) (*llm.Answer, error) {
	if e.generator == nil {
		return nil, fmt.Errorf("failed to generate answer: no generator configured")
	}
	answer, err := e.generator.GenerateAnswer(ctx, queryText, contexts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}

func (e *Engine) persist(req Request, resp *Response) {
	if e.store == nil {
		return
	}

	err := e.store.InsertQueryRecord(&models.QueryRecord{
		ID:          resp.ID,
		UserID:      req.UserID,
		QueryText:   req.Query,
		Response:    resp.Answer,
		ResultCount: len(resp.Sources),
		NoContext:   resp.NoContext,
		Degraded:    resp.Degraded,
		Reranked:    resp.Reranked,
		LatencyMS:   resp.LatencyMS,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to persist query record", zap.String("query_id", resp.ID), zap.Error(err))
		return
	}

	for _, s := range resp.Sources {
		err := e.store.InsertQuerySource(&models.QuerySource{
			QueryID:       resp.ID,
			ChunkID:       s.ChunkID,
			SourceID:      s.SourceID,
			Rank:          s.Rank,
			SemanticScore: s.SemanticScore,
			LexicalScore:  s.LexicalScore,
			CombinedScore: s.CombinedScore,
			RerankScore:   s.RerankScore,
		})
		if err != nil {
			logger.Warn("Failed to persist query source", zap.String("query_id", resp.ID), zap.Error(err))
		}
	}

	// The canned no-context reply is not a generated answer, so it has no
	// evaluation row.
	ev := resp.Evaluation
	if ev == nil {
		return
	}
	err = e.store.InsertEvaluation(&models.EvaluationRecord{
		QueryID:           resp.ID,
		K:                 ev.K,
		PrecisionAtK:      ev.PrecisionAtK,
		RecallAtK:         ev.RecallAtK,
		Faithfulness:      ev.Faithfulness,
		HallucinationRate: ev.HallucinationRate,
		AnswerRelevancy:   ev.AnswerRelevancy,
		WER:               ev.WER,
	})
	if err != nil {
		logger.Warn("Failed to persist evaluation", zap.String("query_id", resp.ID), zap.Error(err))
	}
}

func toSources(cands []retrieval.Candidate) []Source {
	sources := make([]Source, len(cands))
	for i, c := range cands {
		sources[i] = Source{
			Rank:          i + 1,
			ChunkID:       c.Chunk.ID,
			SourceID:      c.Chunk.SourceID,
			Identifier:    c.Chunk.Identifier,
			Text:          c.Chunk.Text,
			SemanticScore: c.SemanticScore,
			LexicalScore:  c.LexicalScore,
			CombinedScore: c.CombinedScore,
			RerankScore:   c.RerankScore,
		}
	}
	return sources
}
