package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hybrid-rag/backend/internal/evaluation"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hybrid_rag_query_duration_seconds",
			Help:    "Query processing duration in seconds, by stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybrid_rag_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	RetrievalResultsCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hybrid_rag_retrieval_results_count",
			Help:    "Number of candidates returned per retrieval",
			Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)

	RetrievalOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybrid_rag_retrieval_outcomes_total",
			Help: "Retrievals flagged as degraded, empty, partial or reranked",
		},
		[]string{"outcome"},
	)

	EvaluationScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "hybrid_rag_evaluation_score",
			Help:    "Answer quality metrics per evaluated answer",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"metric"},
	)

	WordErrorRate = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hybrid_rag_word_error_rate",
			Help:    "Word error rate against reference answers",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 1, 1.5, 2, 5},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybrid_rag_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	UserFeedback = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybrid_rag_feedback_total",
			Help: "User feedback submissions",
		},
		[]string{"helpful"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybrid_rag_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hybrid_rag_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	CorpusChunks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "hybrid_rag_corpus_chunks",
			Help: "Chunks in the loaded corpus snapshot",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueryTotal)
		prometheus.MustRegister(RetrievalResultsCount)
		prometheus.MustRegister(RetrievalOutcomes)
		prometheus.MustRegister(EvaluationScore)
		prometheus.MustRegister(WordErrorRate)
		prometheus.MustRegister(LLMTokensUsed)
		prometheus.MustRegister(UserFeedback)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(CorpusChunks)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}

// ObserveEvaluation records every score of an evaluated answer. WER is only
// observed when a reference was supplied.
func ObserveEvaluation(r evaluation.Record) {
	EvaluationScore.WithLabelValues("precision_at_k").Observe(r.PrecisionAtK)
	EvaluationScore.WithLabelValues("recall_at_k").Observe(r.RecallAtK)
	EvaluationScore.WithLabelValues("faithfulness").Observe(r.Faithfulness)
	EvaluationScore.WithLabelValues("hallucination_rate").Observe(r.HallucinationRate)
	EvaluationScore.WithLabelValues("answer_relevancy").Observe(r.AnswerRelevancy)
	if r.WER != nil {
		WordErrorRate.Observe(*r.WER)
	}
}
