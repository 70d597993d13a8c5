package retrieval

import "context"

// Chunk is an indexed unit of text. The core only reads chunks.
type Chunk struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Text     string `json:"text"`
	// Identifier is an explicit label other passages may cite, e.g. "ISO 27001".
	Identifier string `json:"identifier,omitempty"`
	Section    string `json:"section,omitempty"`
	Page       int    `json:"page,omitempty"`
}

// Candidate is a chunk scored against one query. It lives for a single call.
type Candidate struct {
	Chunk         Chunk    `json:"chunk"`
	SemanticScore float64  `json:"semantic_score"`
	LexicalScore  float64  `json:"lexical_score"`
	CombinedScore float64  `json:"combined_score"`
	RerankScore   *float64 `json:"rerank_score,omitempty"`
	// Position is the chunk's corpus order, the last ranking tie-break.
	Position int `json:"-"`
}

// Score is the ordering key of the candidate in its final result.
func (c Candidate) Score() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.CombinedScore
}

type Result struct {
	Candidates []Candidate `json:"candidates"`
	// Degraded is set when the semantic signal was unavailable and ranking
	// ran on lexical scores alone.
	Degraded bool `json:"degraded"`
	// Partial is set when a best-effort call ran out of time.
	Partial  bool `json:"partial"`
	Reranked bool `json:"reranked"`
}

// Empty reports the "no relevant context found" outcome.
func (r *Result) Empty() bool {
	return r == nil || len(r.Candidates) == 0
}

// Texts returns the candidate passages in rank order.
func (r *Result) Texts() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		out[i] = c.Chunk.Text
	}
	return out
}

// Hit is one nearest-neighbour match from the semantic index.
type Hit struct {
	ChunkID    string
	Similarity float64
}

// SemanticIndex is the read-only view of an external nearest-neighbour store.
// Search returns at most k hits ordered by descending cosine similarity.
type SemanticIndex interface {
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}

// Corpus exposes the chunk snapshot lexical scoring runs over.
type Corpus interface {
	Chunks() []Chunk
}
