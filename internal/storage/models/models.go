package models

import "time"

// Chunk is the persisted form of a retrievable chunk. Embedding is optional
// and feeds the in-process index when no vector database is configured.
type Chunk struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	Text       string    `json:"text"`
	Identifier string    `json:"identifier,omitempty"`
	Section    string    `json:"section,omitempty"`
	Page       int       `json:"page,omitempty"`
	Embedding  []float32 `json:"embedding,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type QueryRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	QueryText   string    `json:"query_text"`
	Response    string    `json:"response"`
	ResultCount int       `json:"result_count"`
	NoContext   bool      `json:"no_context"`
	Degraded    bool      `json:"degraded"`
	Reranked    bool      `json:"reranked"`
	LatencyMS   int       `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

type QuerySource struct {
	ID            int      `json:"id"`
	QueryID       string   `json:"query_id"`
	ChunkID       string   `json:"chunk_id"`
	SourceID      string   `json:"source_id"`
	Rank          int      `json:"rank"`
	SemanticScore float64  `json:"semantic_score"`
	LexicalScore  float64  `json:"lexical_score"`
	CombinedScore float64  `json:"combined_score"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
}

type EvaluationRecord struct {
	ID                int       `json:"id"`
	QueryID           string    `json:"query_id"`
	K                 int       `json:"k"`
	PrecisionAtK      float64   `json:"precision_at_k"`
	RecallAtK         float64   `json:"recall_at_k"`
	Faithfulness      float64   `json:"faithfulness"`
	HallucinationRate float64   `json:"hallucination_rate"`
	AnswerRelevancy   float64   `json:"answer_relevancy"`
	WER               *float64  `json:"wer,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type Feedback struct {
	ID            int       `json:"id"`
	QueryID       string    `json:"query_id"`
	Helpful       bool      `json:"helpful"`
	IssueCategory string    `json:"issue_category"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}

type SystemMetric struct {
	ID          int
	MetricName  string
	MetricValue float64
	Tags        string
	Timestamp   time.Time
}
