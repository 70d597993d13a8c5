package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/storage/models"
	"github.com/hybrid-rag/backend/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping() error {
	return c.db.Ping()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		identifier TEXT,
		section TEXT,
		page INTEGER,
		embedding TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_id);

	CREATE TABLE IF NOT EXISTS query_history (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		query_text TEXT NOT NULL,
		response TEXT,
		result_count INTEGER,
		no_context INTEGER DEFAULT 0,
		degraded INTEGER DEFAULT 0,
		reranked INTEGER DEFAULT 0,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_query_user ON query_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_query_created ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS query_sources (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		chunk_id TEXT NOT NULL,
		source_id TEXT,
		rank_position INTEGER NOT NULL,
		semantic_score REAL,
		lexical_score REAL,
		combined_score REAL,
		rerank_score REAL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_sources_query ON query_sources(query_id);

	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		helpful INTEGER NOT NULL,
		issue_category TEXT,
		comment TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_query ON feedback(query_id);

	CREATE TABLE IF NOT EXISTS evaluation_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query_id TEXT NOT NULL,
		k INTEGER NOT NULL,
		precision_at_k REAL NOT NULL,
		recall_at_k REAL NOT NULL,
		faithfulness REAL NOT NULL,
		hallucination_rate REAL NOT NULL,
		answer_relevancy REAL NOT NULL,
		wer REAL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (query_id) REFERENCES query_history(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_eval_query ON evaluation_results(query_id);

	CREATE TABLE IF NOT EXISTS system_metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		metric_name TEXT NOT NULL,
		metric_value REAL NOT NULL,
		tags TEXT,
		timestamp INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_name ON system_metrics(metric_name);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertChunk(chunk *models.Chunk) error {
	var embedding sql.NullString
	if len(chunk.Embedding) > 0 {
		data, err := json.Marshal(chunk.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		embedding = sql.NullString{String: string(data), Valid: true}
	}

	createdAt := chunk.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO chunks (id, source_id, text, identifier, section, page, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source_id = excluded.source_id,
			text = excluded.text,
			identifier = excluded.identifier,
			section = excluded.section,
			page = excluded.page,
			embedding = COALESCE(excluded.embedding, chunks.embedding)
	`

	_, err := c.db.Exec(
		query,
		chunk.ID,
		chunk.SourceID,
		chunk.Text,
		chunk.Identifier,
		chunk.Section,
		chunk.Page,
		embedding,
		createdAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert chunk: %w", err)
	}

	logger.Debug("Chunk upserted", zap.String("chunk_id", chunk.ID), zap.String("source_id", chunk.SourceID))
	return nil
}

// LoadChunks returns every chunk in insertion order, which is the corpus
// order retrieval uses as its final tie-break.
func (c *Client) LoadChunks() ([]models.Chunk, error) {
	query := `
		SELECT id, source_id, text, COALESCE(identifier, ''), COALESCE(section, ''), COALESCE(page, 0), embedding, created_at
		FROM chunks
		ORDER BY rowid
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var ch models.Chunk
		var embedding sql.NullString
		var createdAt int64

		err := rows.Scan(&ch.ID, &ch.SourceID, &ch.Text, &ch.Identifier, &ch.Section, &ch.Page, &embedding, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		if embedding.Valid && embedding.String != "" {
			if err := json.Unmarshal([]byte(embedding.String), &ch.Embedding); err != nil {
				logger.Warn("Skipping malformed stored embedding", zap.String("chunk_id", ch.ID), zap.Error(err))
				ch.Embedding = nil
			}
		}

		ch.CreatedAt = time.Unix(createdAt, 0)
		chunks = append(chunks, ch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunks: %w", err)
	}

	return chunks, nil
}

func (c *Client) InsertQueryRecord(record *models.QueryRecord) error {
	query := `
		INSERT INTO query_history (id, user_id, query_text, response, result_count, no_context,
			degraded, reranked, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		record.ID,
		record.UserID,
		record.QueryText,
		record.Response,
		record.ResultCount,
		boolToInt(record.NoContext),
		boolToInt(record.Degraded),
		boolToInt(record.Reranked),
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query record: %w", err)
	}

	logger.Info("Query recorded",
		zap.String("query_id", record.ID),
		zap.Int("result_count", record.ResultCount),
		zap.Bool("no_context", record.NoContext),
	)

	return nil
}

func (c *Client) InsertQuerySource(source *models.QuerySource) error {
	query := `
		INSERT INTO query_sources (query_id, chunk_id, source_id, rank_position, semantic_score, lexical_score, combined_score, rerank_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(
		query,
		source.QueryID,
		source.ChunkID,
		source.SourceID,
		source.Rank,
		source.SemanticScore,
		source.LexicalScore,
		source.CombinedScore,
		nullFloat(source.RerankScore),
	)

	if err != nil {
		return fmt.Errorf("failed to insert query source: %w", err)
	}

	return nil
}

func (c *Client) GetQuerySources(queryID string) ([]models.QuerySource, error) {
	query := `
		SELECT id, query_id, chunk_id, COALESCE(source_id, ''), rank_position, semantic_score, lexical_score, combined_score, rerank_score
		FROM query_sources
		WHERE query_id = ?
		ORDER BY rank_position
	`

	rows, err := c.db.Query(query, queryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.QuerySource
	for rows.Next() {
		var s models.QuerySource
		var rerank sql.NullFloat64

		err := rows.Scan(&s.ID, &s.QueryID, &s.ChunkID, &s.SourceID, &s.Rank, &s.SemanticScore, &s.LexicalScore, &s.CombinedScore, &rerank)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		s.RerankScore = floatPtr(rerank)
		sources = append(sources, s)
	}

	return sources, rows.Err()
}

func (c *Client) InsertEvaluation(record *models.EvaluationRecord) error {
	query := `
		INSERT INTO evaluation_results (query_id, k, precision_at_k, recall_at_k, faithfulness,
			hallucination_rate, answer_relevancy, wer, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := c.db.Exec(
		query,
		record.QueryID,
		record.K,
		record.PrecisionAtK,
		record.RecallAtK,
		record.Faithfulness,
		record.HallucinationRate,
		record.AnswerRelevancy,
		nullFloat(record.WER),
		createdAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert evaluation: %w", err)
	}

	logger.Debug("Evaluation stored",
		zap.String("query_id", record.QueryID),
		zap.Float64("faithfulness", record.Faithfulness),
	)

	return nil
}

func (c *Client) GetEvaluation(queryID string) (*models.EvaluationRecord, error) {
	query := `
		SELECT id, query_id, k, precision_at_k, recall_at_k, faithfulness, hallucination_rate, answer_relevancy, wer, created_at
		FROM evaluation_results
		WHERE query_id = ?
		ORDER BY id DESC
		LIMIT 1
	`

	var r models.EvaluationRecord
	var wer sql.NullFloat64
	var createdAt int64

	err := c.db.QueryRow(query, queryID).Scan(
		&r.ID,
		&r.QueryID,
		&r.K,
		&r.PrecisionAtK,
		&r.RecallAtK,
		&r.Faithfulness,
		&r.HallucinationRate,
		&r.AnswerRelevancy,
		&wer,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("evaluation for query %s: %w", queryID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}

	r.WER = floatPtr(wer)
	r.CreatedAt = time.Unix(createdAt, 0)

	return &r, nil
}

func (c *Client) GetQueryHistory(userID string, limit int) ([]models.QueryRecord, error) {
	query := `
		SELECT id, COALESCE(user_id, ''), query_text, COALESCE(response, ''), COALESCE(result_count, 0),
			no_context, degraded, reranked, COALESCE(latency_ms, 0), created_at
		FROM query_history
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get query history: %w", err)
	}
	defer rows.Close()

	records := make([]models.QueryRecord, 0)
	for rows.Next() {
		var r models.QueryRecord
		var noContext, degraded, reranked int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.UserID, &r.QueryText, &r.Response, &r.ResultCount,
			&noContext, &degraded, &reranked, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.NoContext = noContext == 1
		r.Degraded = degraded == 1
		r.Reranked = reranked == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) StoreFeedback(feedback *models.Feedback) error {
	var exists int
	err := c.db.QueryRow(`SELECT COUNT(1) FROM query_history WHERE id = ?`, feedback.QueryID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up query: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("query %s: %w", feedback.QueryID, ErrNotFound)
	}

	query := `INSERT INTO feedback (query_id, helpful, issue_category, comment, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err = c.db.Exec(
		query,
		feedback.QueryID,
		boolToInt(feedback.Helpful),
		feedback.IssueCategory,
		feedback.Comment,
		time.Now().Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to store feedback: %w", err)
	}

	logger.Info("Feedback stored",
		zap.String("query_id", feedback.QueryID),
		zap.Bool("helpful", feedback.Helpful),
	)

	return nil
}

func (c *Client) RecordMetric(name string, value float64, tags map[string]string) error {
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `INSERT INTO system_metrics (metric_name, metric_value, tags, timestamp) VALUES (?, ?, ?, ?)`

	_, err = c.db.Exec(query, name, value, string(tagsJSON), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to record metric: %w", err)
	}

	return nil
}

func (c *Client) GetMetrics(name string, limit int) ([]models.SystemMetric, error) {
	query := `SELECT id, metric_name, metric_value, COALESCE(tags, ''), timestamp FROM system_metrics WHERE metric_name = ? ORDER BY id DESC LIMIT ?`

	rows, err := c.db.Query(query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics: %w", err)
	}
	defer rows.Close()

	var metrics []models.SystemMetric
	for rows.Next() {
		var m models.SystemMetric
		var ts int64
		if err := rows.Scan(&m.ID, &m.MetricName, &m.MetricValue, &m.Tags, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		m.Timestamp = time.Unix(ts, 0)
		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
